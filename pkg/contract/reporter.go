package contract

import (
	"context"
	"io"
	"time"
)

// Summary: 一次运行的对外结果。
type Summary struct {
	Ciphertexts int
	Words       int
	Pairs       []string
	Matches     []Match
	Elapsed     time.Duration
}

// Reporter: 将 Summary 渲染为可写出的字节流（文本/JSONL 等）。
// 约束：按 Matches 原顺序输出，不重排、不丢弃。
type Reporter interface {
	Render(ctx context.Context, s Summary) (io.Reader, error)
}
