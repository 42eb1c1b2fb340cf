package filesystem

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"scoutfmt/pkg/contract"
)

// Options: 最小必要选项。
type Options struct {
	// Root: 可选输出根目录。为空时 FileID 直接作为路径（相对 CWD 或绝对路径）；
	// 非空时 FileID 必须为根内相对路径。
	Root string `json:"root,omitempty"`
	// Atomic: 是否使用原子替换（同目录临时文件 + rename）。
	// 默认值：true。未提供该字段时采用原子写；显式 false 可关闭。
	Atomic *bool `json:"atomic,omitempty"`
	// PermFile/PermDir: 可选权限；为 0 表示使用实现默认。
	PermFile os.FileMode `json:"perm_file,omitempty"`
	PermDir  os.FileMode `json:"perm_dir,omitempty"`
	// BufSize: 写缓冲区大小；<=0 使用实现默认。
	BufSize int `json:"buf_size,omitempty"`
}

type FS struct {
	root    string
	atomic  bool
	permF   os.FileMode
	permD   os.FileMode
	bufSize int
}

// New 创建文件系统 Writer 实现。
func New(opts *Options) *FS {
	w := &FS{atomic: true, permF: 0o644, permD: 0o755, bufSize: 64 * 1024}
	if opts == nil {
		return w
	}
	w.root = strings.TrimSpace(opts.Root)
	if opts.Atomic != nil {
		w.atomic = *opts.Atomic
	}
	if opts.PermFile != 0 {
		w.permF = opts.PermFile
	}
	if opts.PermDir != 0 {
		w.permD = opts.PermDir
	}
	if opts.BufSize > 0 {
		w.bufSize = opts.BufSize
	}
	return w
}

var _ contract.Writer = (*FS)(nil)

// Write 将 r 的全部字节写入 id 对应路径；任一步失败时目标保持原状（原子模式）。
func (w *FS) Write(ctx context.Context, id contract.FileID, r io.Reader) error {
	f, err := w.Create(ctx, id)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, readerWithCtx(ctx, r)); err != nil {
		_ = f.Abort()
		return err
	}
	return f.Commit()
}

// Create 获取目标句柄。原子模式下写入同目录临时文件，Commit 时替换目标；
// 否则直接截断目标写入。打开失败包装为 ErrResource。
func (w *FS) Create(ctx context.Context, id contract.FileID) (contract.Artifact, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	dest, err := w.mapPath(id)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, w.permD); err != nil {
		return nil, fmt.Errorf("%w: %v", contract.ErrResource, err)
	}
	if !w.atomic {
		fh, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, w.permF)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", contract.ErrResource, err)
		}
		return &File{f: fh, bw: bufio.NewWriterSize(fh, w.bufSize), dest: dest}, nil
	}
	// 目标本身是目录时提前失败，避免 rename 阶段才暴露
	if st, err := os.Stat(dest); err == nil && st.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", contract.ErrResource, dest)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contract.ErrResource, err)
	}
	_ = os.Chmod(tmp.Name(), w.permF)
	return &File{f: tmp, bw: bufio.NewWriterSize(tmp, w.bufSize), dest: dest, tmp: tmp.Name()}, nil
}

// mapPath: Clean + 可选 Join + 越界校验。
func (w *FS) mapPath(id contract.FileID) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(string(id)))
	if rel == "." || rel == "" {
		return "", contract.ErrPathInvalid
	}
	if w.root == "" {
		return rel, nil
	}
	// 有根：禁止绝对路径、父级逃逸、Windows 卷名
	if filepath.IsAbs(rel) || filepath.VolumeName(rel) != "" {
		return "", contract.ErrPathInvalid
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", contract.ErrPathInvalid
	}
	return filepath.Join(w.root, rel), nil
}

// File 为 Create 返回的一次性句柄。
type File struct {
	f    *os.File
	bw   *bufio.Writer
	dest string
	tmp  string // 非空表示原子模式
	done bool
}

func (a *File) Write(p []byte) (int, error) {
	if a.done {
		return 0, os.ErrClosed
	}
	return a.bw.Write(p)
}

// Commit 刷新、落盘并发布内容；只能成功一次。
func (a *File) Commit() error {
	if a.done {
		return os.ErrClosed
	}
	a.done = true
	if err := a.bw.Flush(); err != nil {
		a.discard()
		return err
	}
	if a.tmp == "" {
		return a.f.Close()
	}
	if err := a.f.Sync(); err != nil {
		a.discard()
		return err
	}
	if err := a.f.Close(); err != nil {
		_ = os.Remove(a.tmp)
		return err
	}
	if err := osReplace(a.tmp, a.dest); err != nil {
		_ = os.Remove(a.tmp)
		return err
	}
	// 最佳努力：同步父目录，提升崩溃安全性
	_ = syncDir(filepath.Dir(a.dest))
	return nil
}

// Abort 丢弃未提交内容；Commit 之后为 no-op。
// 非原子模式下目标已被截断，只能关闭句柄。
func (a *File) Abort() error {
	if a.done {
		return nil
	}
	a.done = true
	a.discard()
	return nil
}

func (a *File) discard() {
	_ = a.f.Close()
	if a.tmp != "" {
		_ = os.Remove(a.tmp)
	}
}

// readerWithCtx: 在每次 Read 前检查 ctx 是否已取消。
func readerWithCtx(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *ctxReader) Read(p []byte) (int, error) {
	select {
	case <-cr.ctx.Done():
		return 0, cr.ctx.Err()
	default:
	}
	return cr.r.Read(p)
}
