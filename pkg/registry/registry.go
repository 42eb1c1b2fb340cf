package registry

import (
	"bytes"
	"encoding/json"

	"scoutfmt/pkg/contract"
	cjson "scoutfmt/plugins/compiler/jsonarray"
	lpos "scoutfmt/plugins/labeler/positional"
	pcsv "scoutfmt/plugins/projector/csv"
	rfs "scoutfmt/plugins/reader/filesystem"
	wfs "scoutfmt/plugins/writer/filesystem"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// NewReader 工厂签名：接收原样 JSON Options。
type NewReader func(raw json.RawMessage) (contract.Reader, error)

// NewWriter 工厂签名：接收原样 JSON Options。
type NewWriter func(raw json.RawMessage) (contract.Writer, error)

// NewLabeler 工厂签名：标注器无选项。
type NewLabeler func() (contract.Labeler, error)

// NewCompiler 工厂签名：依赖输入源与 Writer。
type NewCompiler func(src contract.Source, w contract.Writer) (contract.Compiler, error)

// NewProjector 工厂签名：接收原样 JSON Options 与 Writer。
type NewProjector func(raw json.RawMessage, w contract.Writer) (contract.Projector, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 单目录文件系统 Reader
	"fs": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts), nil
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 文件系统 Writer（覆盖写/原子替换可配置）
	"fs": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts), nil
	},
}

// Labeler 工厂注册表。
var Labeler = map[string]NewLabeler{
	// positional: 第 i 个值绑定第 i 个标签
	"positional": func() (contract.Labeler, error) { return lpos.New(), nil },
}

// Compiler 工厂注册表。
var Compiler = map[string]NewCompiler{
	// jsonarray: "[" + 原文以 ", \n" 连接 + "]"
	"jsonarray": func(src contract.Source, w contract.Writer) (contract.Compiler, error) {
		return cjson.New(src, w), nil
	},
}

// Projector 工厂注册表。
var Projector = map[string]NewProjector{
	// csv: 严格键集合校验的 CSV 投影
	"csv": func(raw json.RawMessage, w contract.Writer) (contract.Projector, error) {
		var opts pcsv.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return pcsv.New(w, &opts)
	},
}
