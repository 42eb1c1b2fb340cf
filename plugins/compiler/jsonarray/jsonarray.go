// Package jsonarray 将有序文件列表汇编为单个 JSON 数组文档。
package jsonarray

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"scoutfmt/pkg/contract"
)

// Separator 为相邻元素之间的字面分隔符。
const Separator = ", \n"

// Compiler 写出 "[" + 各文件原文以 Separator 连接 + "]"。
// 不重新解析或校验内容：结果是否为合法 JSON 取决于上游标注是否成功。
type Compiler struct {
	src contract.Source
	w   contract.Writer
}

// New 创建汇编器。src 通常为 contract.Reader；非破坏模式下为内存覆盖层。
func New(src contract.Source, w contract.Writer) *Compiler { return &Compiler{src: src, w: w} }

var _ contract.Compiler = (*Compiler)(nil)

// Compile 按 files 给定顺序读取并写出到 out，返回各文件去首尾空白后的原文。
// 顺序与数量只取自 files，不再扫描存储。
func (c *Compiler) Compile(ctx context.Context, files []contract.FileID, out contract.FileID) ([]json.RawMessage, error) {
	dst, err := c.w.Create(ctx, out)
	if err != nil {
		return nil, err
	}
	defer dst.Abort()

	texts := make([]json.RawMessage, 0, len(files))
	if _, err := io.WriteString(dst, "["); err != nil {
		return nil, err
	}
	for i, id := range files {
		b, err := c.read(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", id, err)
		}
		if i > 0 {
			if _, err := io.WriteString(dst, Separator); err != nil {
				return nil, err
			}
		}
		if _, err := dst.Write(b); err != nil {
			return nil, err
		}
		texts = append(texts, json.RawMessage(bytes.TrimSpace(b)))
	}
	if _, err := io.WriteString(dst, "]"); err != nil {
		return nil, err
	}
	if err := dst.Commit(); err != nil {
		return nil, err
	}
	return texts, nil
}

// read 打开、读取并立即释放单个文件句柄。
func (c *Compiler) read(ctx context.Context, id contract.FileID) ([]byte, error) {
	rc, err := c.src.Open(ctx, id)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
