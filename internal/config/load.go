package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"scoutfmt/pkg/contract"
)

// EnvPrefix 为全部环境变量键的公共前缀。
const EnvPrefix = "SCOUTFMT_"

// Defaults 返回带有安全默认值的 Config 雏形。
// 注意：目录、目标与标签不设默认（必须由文件/ENV/CLI 提供）。
func Defaults() Config {
	inPlace := true
	return Config{
		InPlace: &inPlace,
		Logging: Logging{Level: "info", Dir: "logs"},
		Components: Components{
			Reader:    "fs",
			Writer:    "fs",
			Labeler:   "positional",
			Compiler:  "jsonarray",
			Projector: "csv",
		},
	}
}

// LoadFile 按扩展名解析配置文件：.yaml/.yml 走 YAML，其余按 JSON。
func LoadFile(path string) (Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %w", contract.ErrConfig, err)
		}
		defer f.Close()
		raw, err := yamlToJSON(f)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s: %w", contract.ErrConfig, path, err)
		}
		return LoadJSON("", raw)
	default:
		return LoadJSON(path, nil)
	}
}

// yamlToJSON 将 YAML 文档转为等价 JSON，使两种格式共用同一严格解码路径。
func yamlToJSON(r io.Reader) ([]byte, error) {
	var tree any
	if err := yaml.NewDecoder(r).Decode(&tree); err != nil {
		if errors.Is(err, io.EOF) {
			return []byte("{}"), nil
		}
		return nil, err
	}
	if tree == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(tree)
}

// LoadJSON 从文件路径或原始 JSON 解析 Config（严格拒绝未知字段）。
func LoadJSON(path string, raw []byte) (Config, error) {
	var cfg Config
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("%w: %w", contract.ErrConfig, err)
		}
		defer f.Close()
		r = f
	default:
		return cfg, fmt.Errorf("%w: no config source provided", contract.ErrConfig)
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: %w", contract.ErrConfig, err)
	}
	if dec.More() {
		return cfg, fmt.Errorf("%w: trailing data after config object", contract.ErrConfig)
	}
	return cfg, nil
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/原样 JSON 为“替换”；不做深度合并。
func Merge(base, over Config) Config {
	out := base
	if s := strings.TrimSpace(over.WorkingDirectory); s != "" {
		out.WorkingDirectory = s
	}
	if s := strings.TrimSpace(over.TargetJSON); s != "" {
		out.TargetJSON = s
	}
	if s := strings.TrimSpace(over.TargetCSV); s != "" {
		out.TargetCSV = s
	}
	if len(over.LabelOrder) > 0 {
		out.LabelOrder = cloneStrings(over.LabelOrder)
	}
	// in_place 的 false 具有语义，只看是否设置
	if over.InPlace != nil {
		v := *over.InPlace
		out.InPlace = &v
	}
	if s := strings.TrimSpace(over.Logging.Level); s != "" {
		out.Logging.Level = s
	}
	if s := strings.TrimSpace(over.Logging.Dir); s != "" {
		out.Logging.Dir = s
	}

	// 组件名（空不覆盖）
	if over.Components.Reader != "" {
		out.Components.Reader = over.Components.Reader
	}
	if over.Components.Writer != "" {
		out.Components.Writer = over.Components.Writer
	}
	if over.Components.Labeler != "" {
		out.Components.Labeler = over.Components.Labeler
	}
	if over.Components.Compiler != "" {
		out.Components.Compiler = over.Components.Compiler
	}
	if over.Components.Projector != "" {
		out.Components.Projector = over.Components.Projector
	}

	// Options（完整替换对应键）
	if len(over.Options.Reader) > 0 {
		out.Options.Reader = cloneRaw(over.Options.Reader)
	}
	if len(over.Options.Writer) > 0 {
		out.Options.Writer = cloneRaw(over.Options.Writer)
	}
	if len(over.Options.Projector) > 0 {
		out.Options.Projector = cloneRaw(over.Options.Projector)
	}
	return out
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 支持：WORKING_DIRECTORY, TARGET_JSON, TARGET_CSV, LABEL_ORDER, IN_PLACE,
// LOG_LEVEL, LOG_DIR, COMPONENTS_*, OPTIONS_{READER,WRITER,PROJECTOR}_JSON。
// 未列出的键忽略。
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len(EnvPrefix) {
			continue
		}
		key := strings.TrimPrefix(kv[:eq], EnvPrefix)
		val := strings.TrimSpace(kv[eq+1:])
		switch key {
		case "WORKING_DIRECTORY":
			over.WorkingDirectory = val
		case "TARGET_JSON":
			over.TargetJSON = val
		case "TARGET_CSV":
			over.TargetCSV = val
		case "LABEL_ORDER":
			over.LabelOrder = SplitLabels(val)
		case "IN_PLACE":
			if val == "" {
				continue
			}
			b, err := strconv.ParseBool(val)
			if err != nil {
				return over, fmt.Errorf("%w: %sIN_PLACE=%q", contract.ErrConfig, EnvPrefix, val)
			}
			over.InPlace = &b
		case "LOG_LEVEL":
			over.Logging.Level = val
		case "LOG_DIR":
			over.Logging.Dir = val
		case "COMPONENTS_READER":
			over.Components.Reader = val
		case "COMPONENTS_WRITER":
			over.Components.Writer = val
		case "COMPONENTS_LABELER":
			over.Components.Labeler = val
		case "COMPONENTS_COMPILER":
			over.Components.Compiler = val
		case "COMPONENTS_PROJECTOR":
			over.Components.Projector = val
		case "OPTIONS_READER_JSON", "OPTIONS_WRITER_JSON", "OPTIONS_PROJECTOR_JSON":
			// 原样 JSON；空值视为未设置
			if val == "" {
				continue
			}
			if !json.Valid([]byte(val)) {
				return over, fmt.Errorf("%w: %s%s is not valid JSON", contract.ErrConfig, EnvPrefix, key)
			}
			switch key {
			case "OPTIONS_READER_JSON":
				over.Options.Reader = json.RawMessage(val)
			case "OPTIONS_WRITER_JSON":
				over.Options.Writer = json.RawMessage(val)
			default:
				over.Options.Projector = json.RawMessage(val)
			}
		}
	}
	return over, nil
}

// SplitLabels 解析逗号分隔的标签列表；保留空项以便校验报告空白标签。
func SplitLabels(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
