package contract

import (
	"context"
	"io"
)

// Source: 按 FileID 打开原始字节流，不做解码/业务解析。
type Source interface {
	Open(ctx context.Context, id FileID) (io.ReadCloser, error)
}

// Reader: 输入源抽象。
// 约束：
// 1) Scan 只扫描一次，返回稳定有序的文件列表，之后各阶段共用该列表；
// 2) 调用方负责关闭 Open 返回的句柄；
// 3) 不在内部起并发。
type Reader interface {
	Source
	Scan(ctx context.Context, dir string) ([]FileID, error)
}
