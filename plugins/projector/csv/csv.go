// Package csv 将已标注集合投影为 CSV 表：首行为表头，其后每条记录一行。
package csv

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"scoutfmt/pkg/contract"
)

// Options: 最小必要选项。
type Options struct {
	// Comma: 单字符分隔符，默认 ","。
	Comma string `json:"comma,omitempty"`
	// UseCRLF: 行尾使用 \r\n。
	UseCRLF bool `json:"use_crlf,omitempty"`
}

// Projector 严格模式：记录键集合必须与表头完全一致，值按表头键查找。
type Projector struct {
	w      contract.Writer
	comma  rune
	crlf   bool
	dst    contract.Artifact
	cw     *csv.Writer
	header contract.LabelOrder
	rows   int
}

// New 创建投影器；Comma 非单字符时报错。
func New(w contract.Writer, opts *Options) (*Projector, error) {
	p := &Projector{w: w, comma: ','}
	if opts == nil {
		return p, nil
	}
	if opts.Comma != "" {
		r, n := utf8.DecodeRuneInString(opts.Comma)
		if n != len(opts.Comma) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
			return nil, fmt.Errorf("%w: invalid csv comma %q", contract.ErrConfig, opts.Comma)
		}
		p.comma = r
	}
	p.crlf = opts.UseCRLF
	return p, nil
}

var _ contract.Projector = (*Projector)(nil)

var errState = errors.New("projector: invalid state")

// Initialize 获取输出并写入表头。
func (p *Projector) Initialize(ctx context.Context, out contract.FileID, header contract.LabelOrder) error {
	if p.dst != nil {
		return errState
	}
	dst, err := p.w.Create(ctx, out)
	if err != nil {
		return err
	}
	p.dst = dst
	p.cw = csv.NewWriter(dst)
	p.cw.Comma = p.comma
	p.cw.UseCRLF = p.crlf
	p.header = header.Clone()
	if err := p.cw.Write(p.header); err != nil {
		return err
	}
	p.rows = 1
	return nil
}

// Append 逐条写出；遇到键集合不符的记录立即失败。
func (p *Projector) Append(c contract.Collection) error {
	if p.cw == nil {
		return errState
	}
	row := make([]string, len(p.header))
	for i, rec := range c {
		if err := p.checkKeys(rec); err != nil {
			return fmt.Errorf("%w: record %d: %v", contract.ErrProjection, i, err)
		}
		for j, h := range p.header {
			v, _ := rec.Get(h)
			cell, err := Cell(v)
			if err != nil {
				return fmt.Errorf("%w: record %d field %q: %v", contract.ErrProjection, i, h, err)
			}
			row[j] = cell
		}
		if err := p.cw.Write(row); err != nil {
			return err
		}
		p.rows++
	}
	return nil
}

// Rows 返回已写出的行数（含表头）。
func (p *Projector) Rows() int { return p.rows }

// Finalize 刷新并发布输出；只能调用一次。
func (p *Projector) Finalize() error {
	if p.cw == nil {
		return errState
	}
	p.cw.Flush()
	if err := p.cw.Error(); err != nil {
		_ = p.dst.Abort()
		p.cw = nil
		return err
	}
	p.cw = nil
	return p.dst.Commit()
}

// Abort 丢弃未发布的输出；Finalize 之后或未初始化时为 no-op。
func (p *Projector) Abort() error {
	if p.dst == nil {
		return nil
	}
	p.cw = nil
	return p.dst.Abort()
}

func (p *Projector) checkKeys(rec contract.LabeledRecord) error {
	if rec.Len() != len(p.header) {
		return fmt.Errorf("has %d keys, header has %d", rec.Len(), len(p.header))
	}
	seen := make(map[string]struct{}, rec.Len())
	for _, k := range rec.Keys {
		if _, dup := seen[k]; dup {
			return fmt.Errorf("duplicate key %q", k)
		}
		seen[k] = struct{}{}
	}
	for _, h := range p.header {
		if _, ok := seen[h]; !ok {
			return fmt.Errorf("missing key %q", h)
		}
	}
	return nil
}

// Cell 将单个 JSON 值渲染为单元格文本：
// 字符串去引号；null 为空；数字/布尔取字面量；数组/对象取紧凑 JSON。
func Cell(v json.RawMessage) (string, error) {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return "", nil
	}
	switch v[0] {
	case '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err != nil {
			return "", err
		}
		return buf.String(), nil
	default:
		if !json.Valid(v) {
			return "", fmt.Errorf("invalid value %q", v)
		}
		return string(v), nil
	}
}
