package contract

import "errors"

// 最小错误分类（哨兵）；各层以 %w 包装后上抛，由 diag.Classify 归类。
var (
	// ErrConfig: 运行配置缺失或非法（致命，处理前终止）。
	ErrConfig = errors.New("configuration invalid")
	// ErrNoInput: 工作目录下没有符合条件的输入文件（致命）。
	ErrNoInput = errors.New("no input files")
	// ErrCorrupt: 文件内容不是合法 JSON（可恢复：跳过该文件）。
	ErrCorrupt = errors.New("record corrupt")
	// ErrAlreadyFormatted: 形状不是期望的原始位置数组（可恢复：可能已标注过）。
	ErrAlreadyFormatted = errors.New("record already formatted")
	// ErrProjection: 已标注记录的键集合与表头不一致（投影阶段致命）。
	ErrProjection = errors.New("projection mismatch")
	// ErrResource: 目标输出无法打开/创建（致命）。
	ErrResource = errors.New("resource unavailable")
	// ErrPathInvalid: 目标标识映射为无效/越界路径（例如 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
)

// Recoverable 报告 err 是否属于“单文件可恢复”类错误。
func Recoverable(err error) bool {
	return errors.Is(err, ErrCorrupt) || errors.Is(err, ErrAlreadyFormatted)
}
