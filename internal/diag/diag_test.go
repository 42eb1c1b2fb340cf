package diag

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"scoutfmt/pkg/contract"
)

// 日志轮转写入
func TestRotatingFile(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 30)
	_, err := w.Write([]byte("first line that is very long\n"))
	require.NoError(t, err, "写入失败")
	_, err = w.Write([]byte("second\n"))
	require.NoError(t, err, "第二次写入失败")
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())

	ents, err := os.ReadDir(dir)
	require.NoError(t, err)
	hasCurrent, hasRotated := false, false
	for _, e := range ents {
		if e.Name() == currentLogName {
			hasCurrent = true
		} else if strings.HasPrefix(e.Name(), "scoutfmt-") && strings.HasSuffix(e.Name(), ".log") {
			hasRotated = true
		}
	}
	assert.True(t, hasCurrent, "缺少当前日志文件")
	assert.True(t, hasRotated, "缺少轮转文件")

	b, err := os.ReadFile(filepath.Join(dir, currentLogName))
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(b))
}

// 未打开时 Sync/Close 均为 no-op
func TestRotatingFileIdle(t *testing.T) {
	w := NewRotatingFile(t.TempDir(), 0)
	assert.NoError(t, w.Sync())
	assert.NoError(t, w.Close())
	assert.Equal(t, int64(10*1024*1024), w.maxBytes)
}

func TestMetrics(t *testing.T) {
	Reset()
	IncOp("labeler", "finish", "success")
	IncOp("labeler", "finish", "success")
	IncError("labeler", "corrupt")
	snap := Snapshot()
	assert.Equal(t, int64(2), snap["op_total{labeler,finish,success}"])
	assert.Equal(t, int64(1), snap["error_total{labeler,corrupt}"])
	assert.Equal(t, "error_total{labeler,corrupt}=1 op_total{labeler,finish,success}=2", SnapshotString())
	Reset()
	assert.Empty(t, Snapshot())
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{nil, CodeUnknown},
		{context.Canceled, CodeCancel},
		{fmt.Errorf("load: %w", contract.ErrConfig), CodeConfig},
		{contract.ErrNoInput, CodeNoInput},
		{fmt.Errorf("A-1.json: %w", contract.ErrCorrupt), CodeCorrupt},
		{contract.ErrAlreadyFormatted, CodeFormatted},
		{contract.ErrProjection, CodeProjection},
		{contract.ErrResource, CodeResource},
		{contract.ErrPathInvalid, CodeResource},
		{&fs.PathError{Op: "open", Path: "/", Err: errors.New("x")}, CodeIO},
		{errors.New("other"), CodeUnknown},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Classify(c.err), "%v", c.err)
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 3, ExitCode(fmt.Errorf("x: %w", contract.ErrConfig)))
	assert.Equal(t, 1, ExitCode(contract.ErrNoInput))
	assert.Equal(t, 1, ExitCode(errors.New("boom")))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel(" error "))
	assert.Equal(t, zapcore.InfoLevel, parseLevel(""))
}

// Logger 事件字段
func TestLoggerFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core))

	tm := l.StartWith("labeler", "label", "A-1.json")
	tm.Finish("label", 1)
	l.Info("labeler", "labeled", "A-1.json")
	l.Warn("labeler", string(CodeCorrupt), "corrupt", "B-2.json")
	start := time.Now()
	l.Error("pipeline", string(CodeNoInput), "no input", &start)
	l.DebugKV("config", "effective", map[string]string{"target_csv": "out.csv"})

	entries := logs.All()
	require.Len(t, entries, 6)
	assert.Equal(t, "start", entries[0].ContextMap()["stage"])
	assert.Equal(t, "finish", entries[1].ContextMap()["stage"])
	assert.Equal(t, int64(1), entries[1].ContextMap()["count"])
	assert.Equal(t, zapcore.InfoLevel, entries[2].Level)
	assert.Equal(t, "A-1.json", entries[2].ContextMap()["file_id"])
	assert.Equal(t, zapcore.WarnLevel, entries[3].Level)
	assert.Equal(t, "corrupt", entries[3].ContextMap()["code"])
	assert.Equal(t, zapcore.ErrorLevel, entries[4].Level)
	assert.Equal(t, "no_input", entries[4].ContextMap()["code"])
	assert.Equal(t, "out.csv", entries[5].ContextMap()["target_csv"])
}

// 控制台与文件双写
func TestNewLoggerConsoleAndFile(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer
	l := NewLogger(Options{CorrID: "c1", Level: "info", Dir: dir, Console: zapcore.AddSync(&console)})
	l.Info("pipeline", "done", "")
	l.StartWith("labeler", "hidden at info", "x").Finish("hidden", 0)
	require.NoError(t, l.Sync())

	assert.True(t, strings.HasPrefix(console.String(), "INFO: done"), console.String())
	assert.NotContains(t, console.String(), "hidden")

	b, err := os.ReadFile(filepath.Join(dir, currentLogName))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"corr_id":"c1"`)
	assert.Contains(t, string(b), `"msg":"done"`)
}

// nil 接收者安全
func TestNilLogger(t *testing.T) {
	var l *Logger
	assert.Nil(t, l.Start("c", "m"))
	l.Info("c", "m", "")
	l.Warn("c", "x", "m", "")
	l.Error("c", "x", "m", nil)
	l.DebugKV("c", "m", nil)
	assert.NoError(t, l.Sync())
	var tm *Timer
	tm.Finish("m", 0)
	NewNop().Info("c", "m", "")
}
