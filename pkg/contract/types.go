package contract

import (
	"fmt"
	"strings"
)

// FileID: 逻辑文件标识（通常为路径，需规范化，跨平台一致）。
type FileID string

// LabelOrder: 标签顺序；同时决定对象键顺序与 CSV 列顺序，单次运行内不可变。
type LabelOrder []string

// Validate 检查标签顺序：非空、标签非空白、无重复。
// 重复标签会使“键集合等于标签顺序”失去意义，因此视为配置错误。
func (o LabelOrder) Validate() error {
	if len(o) == 0 {
		return fmt.Errorf("%w: label order empty", ErrConfig)
	}
	seen := make(map[string]struct{}, len(o))
	for i, l := range o {
		if strings.TrimSpace(l) == "" {
			return fmt.Errorf("%w: label %d is blank", ErrConfig, i)
		}
		if _, dup := seen[l]; dup {
			return fmt.Errorf("%w: duplicate label %q", ErrConfig, l)
		}
		seen[l] = struct{}{}
	}
	return nil
}

// Clone 返回独立副本。
func (o LabelOrder) Clone() LabelOrder {
	if o == nil {
		return nil
	}
	out := make(LabelOrder, len(o))
	copy(out, o)
	return out
}

// Collection: 汇编后的已标注记录序列，每个输入文件一条，顺序同文件列表。
type Collection []LabeledRecord
