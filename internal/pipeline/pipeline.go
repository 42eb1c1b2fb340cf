package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"scoutfmt/internal/diag"
	"scoutfmt/pkg/contract"
)

// - 单线程顺序执行：逐文件标注 → 全部尝试结束后汇编 → 汇编完成后投影。
// - 文件列表只扫描一次，标注与汇编共用同一有序列表。
// - 单文件错误（损坏/已标注）隔离，不中断批次；汇编与投影阶段错误一律致命。
// - 同一时刻至多一个输入句柄与一个输出句柄。

// Components 聚合运行所需的原子组件。
type Components struct {
	Reader    contract.Reader
	Writer    contract.Writer
	Labeler   contract.Labeler
	Projector contract.Projector
	// NewCompiler 按实际输入源构造汇编器（非破坏模式下输入源为内存覆盖层）。
	NewCompiler func(src contract.Source) (contract.Compiler, error)
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	WorkingDirectory string
	TargetJSON       contract.FileID
	TargetCSV        contract.FileID
	LabelOrder       contract.LabelOrder
	// InPlace: true 时将标注结果覆盖写回源文件（破坏性，无备份）；
	// false 时源文件保持不变，标注结果仅在内存中交给汇编阶段。
	InPlace bool
}

// Summary 为一次运行的计数结果。
type Summary struct {
	Scanned          int
	Labeled          int
	AlreadyFormatted int
	Corrupt          int
	Compiled         int
	Rows             int // 含表头
}

// Run 执行完整流水线：Scan → Label(逐文件) → 写回 → Compile → Project。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (Summary, error) {
	var sum Summary
	if err := sanity(comp, set); err != nil {
		return sum, fmt.Errorf("sanity: %w", err)
	}

	// 1) 扫描（仅一次）
	st := logger.Start("reader", "scan")
	files, err := comp.Reader.Scan(ctx, set.WorkingDirectory)
	if err != nil {
		return sum, fmt.Errorf("scan %s: %w", set.WorkingDirectory, err)
	}
	st.Finish("scan", int64(len(files)))
	sum.Scanned = len(files)
	if len(files) == 0 {
		return sum, fmt.Errorf("%w: no eligible files in %s", contract.ErrNoInput, set.WorkingDirectory)
	}

	// 2) 逐文件标注
	var overlay map[contract.FileID][]byte
	if !set.InPlace {
		overlay = make(map[contract.FileID][]byte, len(files))
	}
	compileList := make([]contract.FileID, 0, len(files))
	for _, id := range files {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		out, err := labelOne(ctx, comp, set, id, logger)
		switch {
		case err == nil:
			sum.Labeled++
			if overlay != nil {
				overlay[id] = out
			}
			logger.Info("labeler", "labeled "+id.Base(), string(id))
			diag.IncOp("labeler", "finish", "success")
		case errors.Is(err, contract.ErrAlreadyFormatted):
			sum.AlreadyFormatted++
			logger.Warn("labeler", string(diag.CodeFormatted), id.Base()+" may already be formatted: "+err.Error(), string(id))
			diag.IncOp("labeler", "finish", "skip")
			diag.IncError("labeler", string(diag.CodeFormatted))
		case errors.Is(err, contract.ErrCorrupt):
			sum.Corrupt++
			logger.Warn("labeler", string(diag.CodeCorrupt), id.Base()+" is corrupt or duplicated: "+err.Error(), string(id))
			diag.IncOp("labeler", "finish", "skip")
			diag.IncError("labeler", string(diag.CodeCorrupt))
			// 损坏文件无法构成合法数组元素，不进入汇编
			continue
		default:
			logger.ErrorWith("labeler", string(diag.Classify(err)), "label failed", nil, string(id))
			diag.IncOp("labeler", "finish", "error")
			return sum, fmt.Errorf("label %s: %w", id, err)
		}
		compileList = append(compileList, id)
	}
	if len(compileList) == 0 {
		return sum, fmt.Errorf("%w: every file in %s is corrupt", contract.ErrNoInput, set.WorkingDirectory)
	}

	// 3) 汇编（复用同一有序列表）
	var src contract.Source = comp.Reader
	if overlay != nil {
		src = memSource{mem: overlay, next: comp.Reader}
	}
	compiler, err := comp.NewCompiler(src)
	if err != nil {
		return sum, fmt.Errorf("compiler: %w", err)
	}
	ct := logger.Start("compiler", "compile")
	texts, err := compiler.Compile(ctx, compileList, set.TargetJSON)
	if err != nil {
		diag.IncError("compiler", string(diag.Classify(err)))
		return sum, fmt.Errorf("compile %s: %w", set.TargetJSON, err)
	}
	ct.Finish("compile", int64(len(texts)))
	sum.Compiled = len(texts)
	logger.Info("compiler", "created compiled JSON "+string(set.TargetJSON), "")

	coll, err := collect(compileList, texts)
	if err != nil {
		diag.IncError("projector", string(diag.CodeProjection))
		return sum, err
	}

	// 4) 投影（所有退出路径上释放输出）
	pt := logger.Start("projector", "project")
	defer comp.Projector.Abort()
	if err := comp.Projector.Initialize(ctx, set.TargetCSV, set.LabelOrder); err != nil {
		return sum, fmt.Errorf("project %s: %w", set.TargetCSV, err)
	}
	if err := comp.Projector.Append(coll); err != nil {
		diag.IncError("projector", string(diag.Classify(err)))
		return sum, fmt.Errorf("project %s: %w", set.TargetCSV, err)
	}
	if err := comp.Projector.Finalize(); err != nil {
		return sum, fmt.Errorf("project %s: %w", set.TargetCSV, err)
	}
	sum.Rows = len(coll) + 1
	pt.Finish("project", int64(sum.Rows))
	logger.Info("projector", "created compiled CSV "+string(set.TargetCSV), "")
	diag.IncOp("pipeline", "finish", "success")
	return sum, nil
}

// labelOne 读取（并立即释放）单个文件，标注，并在原地模式下写回。
// 返回标注后的 JSON 文本。
func labelOne(ctx context.Context, comp Components, set Settings, id contract.FileID, logger *diag.Logger) ([]byte, error) {
	t := logger.StartWith("labeler", "label", string(id))
	raw, err := readAll(ctx, comp.Reader, id)
	if err != nil {
		return nil, err
	}
	rec, err := comp.Labeler.Label(raw, set.LabelOrder)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	if set.InPlace {
		if err := comp.Writer.Write(ctx, id, bytes.NewReader(out)); err != nil {
			return nil, fmt.Errorf("write back: %w", err)
		}
	}
	t.Finish("label", int64(rec.Len()))
	return out, nil
}

func readAll(ctx context.Context, src contract.Source, id contract.FileID) ([]byte, error) {
	rc, err := src.Open(ctx, id)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// collect 将汇编返回的原文解码为有序集合；非对象元素说明上游未完成标注，属于致命错误。
func collect(ids []contract.FileID, texts []json.RawMessage) (contract.Collection, error) {
	coll := make(contract.Collection, 0, len(texts))
	for i, txt := range texts {
		var rec contract.LabeledRecord
		if err := json.Unmarshal(txt, &rec); err != nil {
			return nil, fmt.Errorf("%w: %s is not a labeled record: %v", contract.ErrProjection, ids[i], err)
		}
		coll = append(coll, rec)
	}
	return coll, nil
}

// memSource: 非破坏模式的输入覆盖层，优先返回内存中的标注结果。
type memSource struct {
	mem  map[contract.FileID][]byte
	next contract.Source
}

func (m memSource) Open(ctx context.Context, id contract.FileID) (io.ReadCloser, error) {
	if b, ok := m.mem[id]; ok {
		return io.NopCloser(bytes.NewReader(b)), nil
	}
	return m.next.Open(ctx, id)
}

func sanity(c Components, s Settings) error {
	if c.Reader == nil || c.Writer == nil || c.Labeler == nil || c.Projector == nil || c.NewCompiler == nil {
		return fmt.Errorf("%w: missing component", contract.ErrConfig)
	}
	if strings.TrimSpace(s.WorkingDirectory) == "" {
		return fmt.Errorf("%w: working directory empty", contract.ErrConfig)
	}
	if strings.TrimSpace(string(s.TargetJSON)) == "" || strings.TrimSpace(string(s.TargetCSV)) == "" {
		return fmt.Errorf("%w: target path empty", contract.ErrConfig)
	}
	return s.LabelOrder.Validate()
}
