package diag

import (
	"context"
	"errors"
	"os"
	"time"

	"scoutfmt/pkg/contract"
)

// Code 是最小错误分类代码。
// 用于日志/指标汇总；CLI 据此选择退出码。
type Code string

const (
	CodeUnknown    Code = "unknown"
	CodeConfig     Code = "config"
	CodeNoInput    Code = "no_input"
	CodeCorrupt    Code = "corrupt"
	CodeFormatted  Code = "formatted"
	CodeProjection Code = "projection"
	CodeResource   Code = "resource"
	CodeCancel     Code = "cancel"
	CodeIO         Code = "io"
)

// Classify 将错误归为最小分类。
// 说明：仅依赖哨兵错误与标准库错误类型，不做字符串匹配。
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	// 取消优先
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancel
	}
	switch {
	case errors.Is(err, contract.ErrConfig):
		return CodeConfig
	case errors.Is(err, contract.ErrNoInput):
		return CodeNoInput
	case errors.Is(err, contract.ErrCorrupt):
		return CodeCorrupt
	case errors.Is(err, contract.ErrAlreadyFormatted):
		return CodeFormatted
	case errors.Is(err, contract.ErrProjection):
		return CodeProjection
	case errors.Is(err, contract.ErrResource), errors.Is(err, contract.ErrPathInvalid):
		return CodeResource
	}
	var perr *os.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	return CodeUnknown
}

// ExitCode 将分类映射为进程退出码：配置错误 3，其余致命错误 1。
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if Classify(err) == CodeConfig {
		return 3
	}
	return 1
}

// NowUTC 返回 RFC3339 UTC 时间字符串。
func NowUTC() string { return time.Now().UTC().Format(time.RFC3339) }
