package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"scoutfmt/pkg/contract"
)

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// 工作目录为当前目录，输出写到 compiled.json / compiled.csv，
// 选项包含全部键并给出中性默认值。
func DefaultTemplateConfig() Config {
	d := Defaults()
	cfg := Config{
		WorkingDirectory: ".",
		TargetJSON:       "compiled.json",
		TargetCSV:        "compiled.csv",
		LabelOrder:       []string{"Team", "Match", "Auto", "Teleop", "Endgame"},
		InPlace:          d.InPlace,
		Logging:          d.Logging,
		Components:       d.Components,
	}
	cfg.Options.Reader = json.RawMessage(`{
  "buf_size": 65536,
  "contains": [".json", "-"],
  "exclude": []
}`)
	cfg.Options.Writer = json.RawMessage(`{
  "atomic": true,
  "buf_size": 65536,
  "perm_dir": 0,
  "perm_file": 0
}`)
	cfg.Options.Projector = json.RawMessage(`{
  "comma": ",",
  "use_crlf": false
}`)
	return cfg
}

// Render 将配置序列化为 "json" 或 "yaml" 文本。
func Render(cfg Config, format string) ([]byte, error) {
	js, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(format) {
	case "", "json":
		return append(js, '\n'), nil
	case "yaml", "yml":
		// 经由通用树转换，options 子树以 YAML 映射呈现
		var tree yaml.Node
		if err := yaml.Unmarshal(js, &tree); err != nil {
			return nil, err
		}
		blockStyle(&tree)
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(&tree); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: unknown template format %q", contract.ErrConfig, format)
	}
}

// blockStyle 清除 JSON 输入带来的流式/引号风格，保留键顺序。
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
