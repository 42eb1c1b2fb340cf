// Package positional 实现位置数组标注：第 i 个值绑定第 i 个标签。
package positional

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"scoutfmt/pkg/contract"
)

// Labeler 无状态；每次调用返回全新的记录，调用之间不共享缓冲。
type Labeler struct{}

// New 创建标注器。
func New() *Labeler { return &Labeler{} }

var _ contract.Labeler = (*Labeler)(nil)

// Label 将原始文本解析为位置数组并按 order 标注。
//   - 非法 JSON（含多个文档/尾随垃圾）：ErrCorrupt
//   - 非数组或长度与 order 不一致：ErrAlreadyFormatted
func (Labeler) Label(raw []byte, order contract.LabelOrder) (contract.LabeledRecord, error) {
	if !json.Valid(raw) {
		return contract.LabeledRecord{}, fmt.Errorf("%w: invalid JSON", contract.ErrCorrupt)
	}
	vals, ok := decodeArray(raw)
	if !ok {
		return contract.LabeledRecord{}, fmt.Errorf("%w: not a positional array", contract.ErrAlreadyFormatted)
	}
	if len(vals) != len(order) {
		return contract.LabeledRecord{}, fmt.Errorf("%w: %d values for %d labels", contract.ErrAlreadyFormatted, len(vals), len(order))
	}
	rec := contract.LabeledRecord{
		Keys:   make([]string, len(order)),
		Values: make([]json.RawMessage, len(vals)),
	}
	copy(rec.Keys, order)
	for i, v := range vals {
		rec.Values[i] = append(json.RawMessage(nil), bytes.TrimSpace(v)...)
	}
	return rec, nil
}

// decodeArray 仅接受顶层数组；元素保持原始文本。
func decodeArray(raw []byte) ([]json.RawMessage, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, false
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, false
	}
	vals := []json.RawMessage{}
	for dec.More() {
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, false
		}
		vals = append(vals, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	return vals, true
}
