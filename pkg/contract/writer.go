package contract

import (
	"context"
	"io"
)

// Artifact: 一次性写出的目标句柄。Commit 之前内容对外不可见；
// Abort 丢弃未提交内容，Commit 之后调用 Abort 为 no-op。
type Artifact interface {
	io.Writer
	Commit() error
	Abort() error
}

// Writer: 将字节流持久化到目标介质。
// 约束：
//  1. 同一 FileID 单写者；
//  2. 按字节透传，不读取/修改业务内容；
//  3. 错误直接上抛（不做重试/回退）。
type Writer interface {
	Write(ctx context.Context, id FileID, r io.Reader) error
	Create(ctx context.Context, id FileID) (Artifact, error)
}
