// Package sfxindex 实现词典上的广义后缀数组，作为候选片段的子串存在性判定器。
//
// 索引一次构建、之后只读；所有查询方法可被多个 goroutine 并发调用。
package sfxindex

import (
	"fmt"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"mtpcrib/pkg/contract"
)

// Index: 广义后缀数组。
// 不变量：
//   - order 按后缀串字节序非降序；
//   - order[i] 所指后缀完全落在 words[order[i].Word] 内，不跨越哨兵；
//   - starts[k] 为 words[k] 在拼接缓冲区中的起点（构建期一次算出）。
type Index struct {
	words  []string
	starts []int32
	order  []contract.SuffixEntry
}

var _ contract.SubstringOracle = (*Index)(nil)

// Build 从互不重复的词表构建索引。词表顺序即拼接顺序，调用方负责让其确定。
// 空词表得到恒 false 的索引。
func Build(words []string) *Index {
	ws := make([]string, len(words))
	copy(ws, words)
	text, starts := symbols(ws)
	sa := suffixOrder(text, len(ws)+256)

	owner := make([]int32, len(text))
	for k := range ws {
		end := int(starts[k]) + len(ws[k])
		for p := int(starts[k]); p <= end; p++ {
			owner[p] = int32(k)
		}
	}
	sentinel := int32(len(ws))
	order := make([]contract.SuffixEntry, 0, len(text)-len(ws))
	for _, p := range sa {
		if text[p] < sentinel {
			continue
		}
		order = append(order, contract.SuffixEntry{Offset: p, Word: owner[p]})
	}
	return &Index{words: ws, starts: starts, order: order}
}

// FromOrder 以已排序的后缀位置重建索引（不重新排序）。
// 仅校验每个位置落在所属词内；排序正确性由导出方保证。
func FromOrder(words []string, order []contract.SuffixEntry) (*Index, error) {
	ws := make([]string, len(words))
	copy(ws, words)
	starts := make([]int32, len(ws))
	var off int32
	for k, w := range ws {
		starts[k] = off
		off += int32(len(w)) + 1
	}
	ord := make([]contract.SuffixEntry, len(order))
	for i, e := range order {
		if e.Word < 0 || int(e.Word) >= len(ws) {
			return nil, fmt.Errorf("%w: entry %d word %d out of range", contract.ErrInvalidInput, i, e.Word)
		}
		rel := e.Offset - starts[e.Word]
		if rel < 0 || int(rel) >= len(ws[e.Word]) {
			return nil, fmt.Errorf("%w: entry %d offset %d outside word %d", contract.ErrInvalidInput, i, e.Offset, e.Word)
		}
		ord[i] = e
	}
	return &Index{words: ws, starts: starts, order: ord}, nil
}

// Order 导出排序后的后缀位置（副本）。
func (x *Index) Order() []contract.SuffixEntry {
	out := make([]contract.SuffixEntry, len(x.order))
	copy(out, x.order)
	return out
}

// Words 导出词表（副本，顺序即拼接顺序）。
func (x *Index) Words() []string {
	out := make([]string, len(x.words))
	copy(out, x.words)
	return out
}

// Len 返回后缀条目数。
func (x *Index) Len() int { return len(x.order) }

// suffix 还原第 i 个后缀串（不分配）。
func (x *Index) suffix(i int) string {
	e := x.order[i]
	return x.words[e.Word][e.Offset-x.starts[e.Word]:]
}

// lowerBound 返回第一个 >= p 的后缀位置。
func (x *Index) lowerBound(p string) int {
	return sort.Search(len(x.order), func(i int) bool { return x.suffix(i) >= p })
}

// SubstringExists 判断是否存在包含 pattern 的词。按字节比较，任意字节序列都是合法查询。
func (x *Index) SubstringExists(pattern []byte) bool {
	if len(pattern) == 0 || len(x.order) == 0 {
		return false
	}
	p := string(pattern)
	i := x.lowerBound(p)
	return i < len(x.order) && strings.HasPrefix(x.suffix(i), p)
}

// span 返回以 p 为前缀的后缀区间 [lo, hi)。
// 共享前缀的后缀在排序中连续，故从锚点向两侧线性扩展。
func (x *Index) span(p string) (lo, hi int) {
	anchor := x.lowerBound(p)
	if anchor >= len(x.order) || !strings.HasPrefix(x.suffix(anchor), p) {
		return anchor, anchor
	}
	lo, hi = anchor, anchor+1
	for lo > 0 && strings.HasPrefix(x.suffix(lo-1), p) {
		lo--
	}
	for hi < len(x.order) && strings.HasPrefix(x.suffix(hi), p) {
		hi++
	}
	return lo, hi
}

// FindWordsContaining 返回包含 pattern 的全部词（去重，字典序）。
func (x *Index) FindWordsContaining(pattern []byte) []string {
	if len(pattern) == 0 || len(x.order) == 0 {
		return nil
	}
	lo, hi := x.span(string(pattern))
	if lo == hi {
		return nil
	}
	seen := mapset.NewThreadUnsafeSet[int32]()
	for i := lo; i < hi; i++ {
		seen.Add(x.order[i].Word)
	}
	out := make([]string, 0, seen.Cardinality())
	for _, w := range seen.ToSlice() {
		out = append(out, x.words[w])
	}
	sort.Strings(out)
	return out
}

// CountWordsContaining 返回包含 pattern 的不同词个数。
func (x *Index) CountWordsContaining(pattern []byte) int {
	return len(x.FindWordsContaining(pattern))
}
