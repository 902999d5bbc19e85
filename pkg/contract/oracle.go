package contract

// SubstringOracle: 词典子串存在性查询（只读，可并发调用）。
type SubstringOracle interface {
	SubstringExists(pattern []byte) bool
}

// Validator: 判定候选片段是否为可信英文。
// 约束：
//   - 纯函数，不做 I/O、不修改入参；
//   - 校验失败是正常的否定结果，不是错误；
//   - 可被多个 worker 并发调用。
type Validator interface {
	Validate(fragment []byte, oracle SubstringOracle) bool
}
