package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"scoutfmt/internal/pipeline"
	"scoutfmt/pkg/contract"
	"scoutfmt/pkg/registry"
)

// Validate 对最小必要边界做静态校验；失败一律包装 contract.ErrConfig。
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.WorkingDirectory) == "" {
		return fmt.Errorf("%w: working_directory empty", contract.ErrConfig)
	}
	if strings.TrimSpace(cfg.TargetJSON) == "" {
		return fmt.Errorf("%w: target_json empty", contract.ErrConfig)
	}
	if strings.TrimSpace(cfg.TargetCSV) == "" {
		return fmt.Errorf("%w: target_csv empty", contract.ErrConfig)
	}
	if sameFile(cfg.TargetJSON, cfg.TargetCSV) {
		return fmt.Errorf("%w: target_json and target_csv must differ", contract.ErrConfig)
	}
	if err := contract.LabelOrder(cfg.LabelOrder).Validate(); err != nil {
		return fmt.Errorf("label_order: %w", err)
	}
	if _, err := ParseLevel(cfg.Logging.Level); err != nil {
		return err
	}
	d := Defaults().Components
	if name := effName(cfg.Components.Reader, d.Reader); registry.Reader[name] == nil {
		return fmt.Errorf("%w: reader %q not registered", contract.ErrConfig, name)
	}
	if name := effName(cfg.Components.Writer, d.Writer); registry.Writer[name] == nil {
		return fmt.Errorf("%w: writer %q not registered", contract.ErrConfig, name)
	}
	if name := effName(cfg.Components.Labeler, d.Labeler); registry.Labeler[name] == nil {
		return fmt.Errorf("%w: labeler %q not registered", contract.ErrConfig, name)
	}
	if name := effName(cfg.Components.Compiler, d.Compiler); registry.Compiler[name] == nil {
		return fmt.Errorf("%w: compiler %q not registered", contract.ErrConfig, name)
	}
	if name := effName(cfg.Components.Projector, d.Projector); registry.Projector[name] == nil {
		return fmt.Errorf("%w: projector %q not registered", contract.ErrConfig, name)
	}
	return nil
}

// ParseLevel 校验日志等级名；空串视为 info。
func ParseLevel(s string) (string, error) {
	switch l := strings.ToLower(strings.TrimSpace(s)); l {
	case "":
		return "info", nil
	case "debug", "info", "warn", "error":
		return l, nil
	default:
		return "", fmt.Errorf("%w: unknown log level %q", contract.ErrConfig, s)
	}
}

// Assemble 构造 Components 与 Settings。
// 严格 Options 解析在 registry（工厂）层进行；此处只传 raw JSON。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	// 有效名称
	d := Defaults().Components
	rn := effName(cfg.Components.Reader, d.Reader)
	wn := effName(cfg.Components.Writer, d.Writer)
	ln := effName(cfg.Components.Labeler, d.Labeler)
	cn := effName(cfg.Components.Compiler, d.Compiler)
	pn := effName(cfg.Components.Projector, d.Projector)

	// 输出目标位于工作目录内时不得被当作输入
	readerOpts, err := withExclude(cfg.Options.Reader, cfg.TargetJSON, cfg.TargetCSV)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	// 构造实例
	r, err := registry.Reader[rn](readerOpts)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, optErr("reader", err)
	}
	w, err := registry.Writer[wn](cfg.Options.Writer)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, optErr("writer", err)
	}
	l, err := registry.Labeler[ln]()
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, optErr("labeler", err)
	}
	p, err := registry.Projector[pn](cfg.Options.Projector, w)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, optErr("projector", err)
	}
	newCompiler := registry.Compiler[cn]

	comp := pipeline.Components{
		Reader:    r,
		Writer:    w,
		Labeler:   l,
		Projector: p,
		NewCompiler: func(src contract.Source) (contract.Compiler, error) {
			return newCompiler(src, w)
		},
	}
	set := pipeline.Settings{
		WorkingDirectory: strings.TrimSpace(cfg.WorkingDirectory),
		TargetJSON:       contract.NormalizeFileID(strings.TrimSpace(cfg.TargetJSON)),
		TargetCSV:        contract.NormalizeFileID(strings.TrimSpace(cfg.TargetCSV)),
		LabelOrder:       contract.LabelOrder(cfg.LabelOrder).Clone(),
		InPlace:          cfg.EffectiveInPlace(),
	}
	return comp, set, nil
}

// withExclude 将输出目标追加到 reader options 的 exclude 列表。
func withExclude(raw json.RawMessage, paths ...string) (json.RawMessage, error) {
	m := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("%w: options.reader: %w", contract.ErrConfig, err)
		}
	}
	var ex []any
	if cur, ok := m["exclude"].([]any); ok {
		ex = cur
	}
	for _, p := range paths {
		ex = append(ex, p)
	}
	m["exclude"] = ex
	return json.Marshal(m)
}

func optErr(comp string, err error) error {
	return fmt.Errorf("%w: options.%s: %w", contract.ErrConfig, comp, err)
}

func sameFile(a, b string) bool {
	aa, err1 := filepath.Abs(strings.TrimSpace(a))
	bb, err2 := filepath.Abs(strings.TrimSpace(b))
	if err1 != nil || err2 != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return aa == bb
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}
