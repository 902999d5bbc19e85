package contract

// Sharder: 将完整词典切分为 n 个互不相交的连续分片。
// 约束：
//  1. 相同输入与 n 必须产出相同分片（确定性）；
//  2. 分片大小之差至多为 1；
//  3. 所有分片长度之和等于去重后的词数；
//  4. 不修改入参切片。
type Sharder interface {
	Partition(words []string, n int) ([]Shard, error)
}
