package contract

// FileID: 逻辑输入ID（通常为路径，需规范化，跨平台一致）。
type FileID string

// Ciphertext: 单条密文（原始字节）。
type Ciphertext []byte

// SuffixEntry: 后缀数组中的一个位置。
// Offset 为拼接缓冲区中的全局起点；Word 为来源词下标。
// 后缀文本不落存储，由词表与 Offset 还原。
type SuffixEntry struct {
	Offset int32
	Word   int32
}

// Shard: 词典的一个连续分片。
type Shard struct {
	Index int
	Words []string
}

// Match: 一次命中记录，创建后不可修改。
// 约束：
// - 同一 Word 至多一条（首中即停）；
// - Pair 为锚点组中按 (i,j) 升序的第一个异或对标签；
// - Fragments 与锚点组内的异或对一一对应（顺序一致）。
type Match struct {
	Word      string
	Pair      string
	Offset    int
	Anchor    int
	Fragments []Fragment
}

// Fragment: 某个异或对在命中位置还原出的候选明文片段。
type Fragment struct {
	Pair  string
	Text  string
	Valid bool
}
