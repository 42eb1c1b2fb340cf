package filesystem

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"scoutfmt/pkg/contract"
)

// Options 为 FileSystem Reader 的可选配置（最小必要）。
type Options struct {
	// BufSize 为读缓冲区大小（字节）。默认 64KiB。
	BufSize int `json:"buf_size"`
	// Contains: 基名需同时包含的全部子串。默认 [".json", "-"]。
	Contains []string `json:"contains"`
	// Exclude: 额外排除的路径（通常为本次运行的输出目标）。
	Exclude []string `json:"exclude"`
}

// FileSystem 实现基于单个工作目录的 Reader。
type FileSystem struct {
	bufSize  int
	contains []string
	exclude  map[contract.FileID]struct{}
}

// New 创建 FileSystem Reader。
func New(opts *Options) *FileSystem {
	const defaultBuf = 64 * 1024
	r := &FileSystem{bufSize: defaultBuf, contains: []string{".json", "-"}, exclude: map[contract.FileID]struct{}{}}
	if opts == nil {
		return r
	}
	if opts.BufSize > 0 {
		r.bufSize = opts.BufSize
	}
	if len(opts.Contains) > 0 {
		r.contains = append([]string(nil), opts.Contains...)
	}
	for _, p := range opts.Exclude {
		if strings.TrimSpace(p) == "" {
			continue
		}
		r.exclude[absID(p)] = struct{}{}
	}
	return r
}

var _ contract.Reader = (*FileSystem)(nil)

// Scan 列出 dir 下（不递归）基名满足过滤条件的常规文件，按基名字典序返回。
// 指向常规文件的符号链接保留；目录与其它类型忽略。
func (r *FileSystem) Scan(ctx context.Context, dir string) ([]contract.FileID, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var out []contract.FileID
	for _, e := range entries {
		if e.IsDir() || !r.match(e.Name()) {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if e.Type()&os.ModeSymlink != 0 {
			t, err := os.Stat(p)
			if err != nil {
				return nil, err
			}
			if !t.Mode().IsRegular() {
				continue
			}
		} else if !e.Type().IsRegular() {
			continue
		}
		if _, skip := r.exclude[absID(p)]; skip {
			continue
		}
		out = append(out, contract.NormalizeFileID(p))
	}
	return out, nil
}

func (r *FileSystem) match(name string) bool {
	for _, s := range r.contains {
		if !strings.Contains(name, s) {
			return false
		}
	}
	return true
}

// Open 以缓冲方式打开单个文件；调用方负责 Close。
func (r *FileSystem) Open(ctx context.Context, id contract.FileID) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(filepath.FromSlash(string(id)))
	if err != nil {
		return nil, err
	}
	return newBufferedCloser(f, r.bufSize), nil
}

func absID(p string) contract.FileID {
	if a, err := filepath.Abs(p); err == nil {
		p = a
	}
	return contract.NormalizeFileID(p)
}

// bufferedCloser 将 bufio.Reader 与底层 Closer 组合为 ReadCloser。
type bufferedCloser struct {
	*bufio.Reader
	c io.Closer
}

func newBufferedCloser(c io.ReadCloser, bufSize int) *bufferedCloser {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	return &bufferedCloser{Reader: bufio.NewReaderSize(c, bufSize), c: c}
}

func (b *bufferedCloser) Close() error { return b.c.Close() }
