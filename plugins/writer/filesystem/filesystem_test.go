package filesystem

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scoutfmt/pkg/contract"
)

func noTemp(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".tmp-"), "tmp file not cleaned: %s", e.Name())
	}
}

// 原子写回覆盖已存在的源文件
func TestWriteAtomicReplaceExisting(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "A-1.json")
	require.NoError(t, os.WriteFile(p, []byte(`["10","Alice",5]`), 0o644))

	w := New(nil)
	err := w.Write(context.Background(), contract.NormalizeFileID(p), bytes.NewBufferString(`{"Team":"10"}`))
	require.NoError(t, err)

	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, `{"Team":"10"}`, string(b))
	noTemp(t, dir)
}

func TestWriteOverwrite(t *testing.T) {
	dir := t.TempDir()
	a := false
	w := New(&Options{Root: dir, Atomic: &a, BufSize: 4, PermFile: 0o600, PermDir: 0o700})
	require.NoError(t, w.Write(context.Background(), "out/all.json", bytes.NewBufferString("v1 long")))
	require.NoError(t, w.Write(context.Background(), "out/all.json", bytes.NewBufferString("v2")))
	b, err := os.ReadFile(filepath.Join(dir, "out", "all.json"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(b))
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

// 拷贝失败时目标保持原状且无临时文件残留
func TestWriteAtomicCopyError(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "A-1.json")
	require.NoError(t, os.WriteFile(p, []byte("orig"), 0o644))

	err := New(nil).Write(context.Background(), contract.FileID(p), errReader{})
	require.Error(t, err)
	b, _ := os.ReadFile(p)
	assert.Equal(t, "orig", string(b))
	noTemp(t, dir)
}

// Create/Abort：未提交内容不可见
func TestCreateAbort(t *testing.T) {
	dir := t.TempDir()
	w := New(&Options{Root: dir})
	f, err := w.Create(context.Background(), "table.csv")
	require.NoError(t, err)
	_, err = f.Write([]byte("Team,Name\n"))
	require.NoError(t, err)
	require.NoError(t, f.Abort())
	_, err = os.Stat(filepath.Join(dir, "table.csv"))
	assert.True(t, os.IsNotExist(err))
	noTemp(t, dir)

	// 重复 Abort、Abort 后 Write/Commit
	assert.NoError(t, f.Abort())
	_, err = f.Write([]byte("x"))
	assert.ErrorIs(t, err, os.ErrClosed)
	assert.ErrorIs(t, f.Commit(), os.ErrClosed)
}

// Commit 后 Abort 为 no-op
func TestCreateCommitThenAbort(t *testing.T) {
	dir := t.TempDir()
	f, err := New(&Options{Root: dir}).Create(context.Background(), "table.csv")
	require.NoError(t, err)
	_, _ = f.Write([]byte("a,b\n"))
	require.NoError(t, f.Commit())
	require.NoError(t, f.Abort())
	b, err := os.ReadFile(filepath.Join(dir, "table.csv"))
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(b))
}

// 目标为目录或父路径为文件时报告 ErrResource
func TestCreateUnopenable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "out.csv"), 0o755))
	_, err := New(&Options{Root: dir}).Create(context.Background(), "out.csv")
	assert.ErrorIs(t, err, contract.ErrResource)

	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	_, err = New(nil).Create(context.Background(), contract.FileID(filepath.Join(blocker, "x.csv")))
	assert.ErrorIs(t, err, contract.ErrResource)
}

func TestMapPathInvalid(t *testing.T) {
	w := New(&Options{Root: t.TempDir()})
	for _, id := range []string{"..", ".", "", "../escape.json", filepath.Join(string(filepath.Separator), "abs")} {
		_, err := w.mapPath(contract.FileID(id))
		assert.ErrorIs(t, err, contract.ErrPathInvalid, id)
	}
	_, err := New(nil).mapPath("")
	assert.ErrorIs(t, err, contract.ErrPathInvalid)
}

// 已取消的 ctx
func TestWriteCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := New(&Options{Root: t.TempDir()}).Write(ctx, "a.json", strings.NewReader("data"))
	assert.ErrorIs(t, err, context.Canceled)

	r := readerWithCtx(ctx, strings.NewReader("data"))
	_, err = r.Read(make([]byte, 1))
	assert.ErrorIs(t, err, context.Canceled)
}
