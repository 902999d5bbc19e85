package contract

import (
	"context"
	"io"
)

// CipherParser: 将单个密文文件解析为有序密文列表。
// 无法识别的行直接返回 ErrMalformedLine（致命，不重试）。
type CipherParser interface {
	ParseCiphertexts(ctx context.Context, fileID FileID, r io.Reader) ([]Ciphertext, error)
}

// WordParser: 将单个词表文件解析为候选词（已小写、已过滤短词）。
// 非法 UTF-8 的行跳过并计入 skipped，不视为错误。
type WordParser interface {
	ParseWords(ctx context.Context, fileID FileID, r io.Reader) (words []string, skipped int, err error)
}
