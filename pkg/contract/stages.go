package contract

import (
	"context"
	"encoding/json"
)

// Labeler: 原始位置记录 + 标签顺序 → 已标注记录。纯函数，无 I/O。
// 失败时返回包装 ErrCorrupt 或 ErrAlreadyFormatted 的错误。
type Labeler interface {
	Label(raw []byte, order LabelOrder) (LabeledRecord, error)
}

// Compiler: 按调用方给定的有序文件列表汇编为单个 JSON 数组文档。
// 返回各文件的原文（按顺序），供投影阶段直接在内存中使用。
type Compiler interface {
	Compile(ctx context.Context, files []FileID, out FileID) ([]json.RawMessage, error)
}

// Projector: 将集合投影为表格行。Initialize → Append* → Finalize，
// 调用方应 defer Abort 以覆盖所有退出路径。
type Projector interface {
	Initialize(ctx context.Context, out FileID, header LabelOrder) error
	Append(c Collection) error
	Finalize() error
	Abort() error
}
