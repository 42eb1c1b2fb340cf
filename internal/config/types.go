package config

import (
	"encoding/json"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// 键使用 snake_case；未知字段在解析期失败（JSON 与 YAML 相同）。
type Config struct {
	// WorkingDirectory: 待处理文件所在目录（不递归）。
	WorkingDirectory string `json:"working_directory"`
	// TargetJSON / TargetCSV: 汇编与投影输出路径，二者必须不同。
	TargetJSON string `json:"target_json"`
	TargetCSV  string `json:"target_csv"`
	// LabelOrder: 有序标签；非空、唯一。
	LabelOrder []string `json:"label_order"`
	// InPlace: 是否覆盖写回源文件；nil 表示未设置（默认 true）。
	InPlace *bool   `json:"in_place,omitempty"`
	Logging Logging `json:"logging"`

	// 组件名选择（空则使用默认名）。
	Components Components `json:"components"`

	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options"`
}

// Logging: 日志等级与文件目录；轮转策略为固定默认。
type Logging struct {
	Level string `json:"level"`
	Dir   string `json:"dir,omitempty"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Reader    string `json:"reader"`
	Writer    string `json:"writer"`
	Labeler   string `json:"labeler"`
	Compiler  string `json:"compiler"`
	Projector string `json:"projector"`
}

// Options: 各组件的原样 JSON Options（labeler/compiler 无选项）。
type Options struct {
	Reader    json.RawMessage `json:"reader,omitempty"`
	Writer    json.RawMessage `json:"writer,omitempty"`
	Projector json.RawMessage `json:"projector,omitempty"`
}

// EffectiveInPlace 返回 in_place 的有效值。
func (c Config) EffectiveInPlace() bool {
	if c.InPlace == nil {
		return true
	}
	return *c.InPlace
}
