package contiguous

import (
	"fmt"
	"sort"

	"mtpcrib/pkg/contract"
)

// Sharder 将排序去重后的词表切成 n 个连续分片：
// 每片 floor(N/n) 个词，前 N mod n 片各多一个。
type Sharder struct{}

// New 创建连续切分器（无可选项）。
func New() *Sharder { return &Sharder{} }

// Partition 实现 contract.Sharder。
// n 大于词数时，尾部分片为空，但分片数仍为 n，保证 worker 编号稳定。
func (s *Sharder) Partition(words []string, n int) ([]contract.Shard, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: sharder: shard count must be > 0, got %d", contract.ErrInvalidInput, n)
	}
	sorted := dedupSorted(words)
	total := len(sorted)
	base, extra := total/n, total%n

	shards := make([]contract.Shard, n)
	from := 0
	for i := 0; i < n; i++ {
		size := base
		if i < extra {
			size++
		}
		// 三索引切片：防止下游 append 越界写入相邻分片
		shards[i] = contract.Shard{Index: i, Words: sorted[from : from+size : from+size]}
		from += size
	}
	return shards, nil
}

// dedupSorted 返回排序去重后的副本；不修改入参。
func dedupSorted(words []string) []string {
	out := make([]string, len(words))
	copy(out, words)
	sort.Strings(out)
	w := 0
	for i, s := range out {
		if i > 0 && s == out[w-1] {
			continue
		}
		out[w] = s
		w++
	}
	return out[:w]
}
