package contract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// LabeledRecord: 标签 → 值 的有序映射，插入顺序即标签顺序。
// 值保持原始 JSON 文本（数字不经 float64 往返，保留字面形式）。
type LabeledRecord struct {
	Keys   []string
	Values []json.RawMessage
}

// Len 返回键值对数量。
func (r LabeledRecord) Len() int { return len(r.Keys) }

// Get 按键查找值；不存在时 ok=false。
func (r LabeledRecord) Get(key string) (json.RawMessage, bool) {
	for i, k := range r.Keys {
		if k == key {
			return r.Values[i], true
		}
	}
	return nil, false
}

// MarshalJSON 按插入顺序输出对象。
func (r LabeledRecord) MarshalJSON() ([]byte, error) {
	if len(r.Keys) != len(r.Values) {
		return nil, fmt.Errorf("labeled record: %d keys but %d values", len(r.Keys), len(r.Values))
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		v := r.Values[i]
		if len(v) == 0 {
			v = json.RawMessage("null")
		}
		if err := json.Compact(&buf, v); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON 解析 JSON 对象并保留文档中的键顺序；非对象返回普通错误，由调用方归类。
// 重复键按出现顺序全部保留，交由投影阶段判定。
func (r *LabeledRecord) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("labeled record: expected object, got %T", tok)
	}
	var keys []string
	var vals []json.RawMessage
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		k, ok := kt.(string)
		if !ok {
			return fmt.Errorf("labeled record: key is %T", kt)
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return err
		}
		keys = append(keys, k)
		vals = append(vals, json.RawMessage(bytes.TrimSpace(v)))
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("labeled record: trailing data after object")
	}
	r.Keys, r.Values = keys, vals
	return nil
}
