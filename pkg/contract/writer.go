package contract

import (
	"context"
	"io"
)

// ArtifactID: 与 FileID 等价的持久化工件标识（索引缓存、报告等）。
type ArtifactID = FileID

// Writer: 将工件以流式方式持久化到目标介质。
// 约束：
//  1. 同一 ArtifactID 单写者；
//  2. 流式写入，按字节透传；
//  3. ctx 取消需尽快返回；
//  4. 错误直接上抛（不做重试）。
type Writer interface {
	Write(ctx context.Context, id ArtifactID, r io.Reader) error
}

// ArtifactOpener: 可选能力，读回 Writer 先前写出的工件（例如索引缓存）。
// 工件不存在时返回的错误需满足 errors.Is(err, fs.ErrNotExist)。
type ArtifactOpener interface {
	Open(ctx context.Context, id ArtifactID) (io.ReadCloser, error)
}
