package contract

import "errors"

// 最小错误分类（哨兵）。上层通过 errors.Is 判定，不做字符串匹配。
var (
	// ErrLengthMismatch: 两段字节序列长度不等，无法逐字节异或。
	ErrLengthMismatch = errors.New("length mismatch")
	// ErrMalformedLine: 密文行既不是十六进制也不是 8 位对齐的二进制串。
	ErrMalformedLine = errors.New("malformed ciphertext line")
	// ErrOffsetRange: 切片请求越过已存储的异或结果。
	ErrOffsetRange = errors.New("offset out of range")
	// ErrEmptyCorpus: 词典为空；索引退化为恒 false，仅用于日志提示。
	ErrEmptyCorpus = errors.New("empty corpus")
	// ErrDecodeSkipped: 词表行非法 UTF-8，已跳过（非致命）。
	ErrDecodeSkipped = errors.New("decode skipped")
	// ErrInvariantViolation: 领域不变量违例（通用哨兵）。
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrInvalidInput: 参数或数据集不满足最小前置条件。
	ErrInvalidInput = errors.New("invalid input")
	// ErrPathInvalid: 目标标识映射为无效/越界路径（例如绝对路径或 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
	// ErrCorruptBlob: 持久化索引损坏（魔数/版本/校验和不符）。
	ErrCorruptBlob = errors.New("corrupt index blob")
)
