package diag

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"mtpcrib/pkg/contract"
)

// Code 是最小错误分类代码。
// 仅用于日志/指标汇总，与退出码解耦。
type Code string

const (
	CodeUnknown   Code = "unknown"
	CodeInput     Code = "input"
	CodeInvariant Code = "invariant"
	CodeCancel    Code = "cancel"
	CodeIO        Code = "io"
)

// Classify 将错误归为最小分类。
// 仅依赖哨兵错误与标准库错误类型，不做字符串匹配。
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancel
	}
	// 不变量优先于输入：越界切片同时包装 ErrOffsetRange 时仍视为内部错误
	if errors.Is(err, contract.ErrInvariantViolation) || errors.Is(err, contract.ErrOffsetRange) {
		return CodeInvariant
	}
	if errors.Is(err, contract.ErrInvalidInput) ||
		errors.Is(err, contract.ErrLengthMismatch) ||
		errors.Is(err, contract.ErrMalformedLine) ||
		errors.Is(err, contract.ErrEmptyCorpus) ||
		errors.Is(err, contract.ErrDecodeSkipped) ||
		errors.Is(err, contract.ErrPathInvalid) ||
		errors.Is(err, contract.ErrCorruptBlob) {
		return CodeInput
	}
	var perr *fs.PathError
	if errors.As(err, &perr) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return CodeIO
	}
	return CodeUnknown
}

// NowUTC 返回 RFC3339 UTC 时间字符串（用于结构化日志字段 ts）。
func NowUTC() string { return time.Now().UTC().Format(time.RFC3339) }
