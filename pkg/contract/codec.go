package contract

import "io"

// IndexCodec: 后缀索引的持久化编解码（磁盘格式由实现自决）。
// 仅承载“词表 + 排序后的后缀位置”，不重新排序。
type IndexCodec interface {
	Encode(w io.Writer, words []string, order []SuffixEntry) error
	Decode(r io.Reader) (words []string, order []SuffixEntry, err error)
}
