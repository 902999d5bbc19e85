// Package engine 实现单个词典分片上的拖词（crib-drag）搜索。
//
// 对每个词、每个偏移、每个锚点明文，将词与锚点相关的全部异或对切片相异或，
// 得到其余明文在该位置的候选片段；达到法定数量的片段全部通过校验才算命中。
// 每个词至多命中一次（首中即停），不回溯。
package engine

import (
	"fmt"
	"sort"

	"mtpcrib/internal/xormatrix"
	"mtpcrib/pkg/contract"
)

// Settings: 单分片搜索参数。
type Settings struct {
	// MinLen: 短于此长度的词跳过；<=0 不限制。
	MinLen int
	// MaxOffsets: 每个词最多尝试的偏移数；<=0 表示不限（仅受密文长度约束）。
	MaxOffsets int
	// Quorum: 锚点组内需通过校验的异或对数量；<=0 或超过组大小时要求全部通过。
	Quorum int
}

// Engine 持有只读的共享结构；自身无可变状态，可被多个 worker 并发使用。
type Engine struct {
	matrix    *xormatrix.Matrix
	oracle    contract.SubstringOracle
	validator contract.Validator
	set       Settings
}

// New 创建引擎。matrix/oracle/validator 在整个运行期只读共享。
func New(m *xormatrix.Matrix, oracle contract.SubstringOracle, v contract.Validator, set Settings) (*Engine, error) {
	if m == nil || oracle == nil || v == nil {
		return nil, fmt.Errorf("%w: engine: missing matrix, oracle or validator", contract.ErrInvalidInput)
	}
	return &Engine{matrix: m, oracle: oracle, validator: v, set: set}, nil
}

// quorum 返回锚点组大小为 size 时需要通过的数量。
func (e *Engine) quorum(size int) int {
	if e.set.Quorum <= 0 || e.set.Quorum > size {
		return size
	}
	return e.set.Quorum
}

// Run 在分片上执行搜索，返回按词字典序排列的命中记录。
// 切片越界意味着偏移边界计算有误，属于不变量违例，直接返回错误而不是截断。
func (e *Engine) Run(shard []string) ([]contract.Match, error) {
	words := make([]string, len(shard))
	copy(words, shard)
	sort.Strings(words)

	var matches []contract.Match
	scratch := make([]byte, 0, 64)
	for _, w := range words {
		m, ok, err := e.drag(w, scratch)
		if err != nil {
			return matches, err
		}
		if ok {
			matches = append(matches, m)
		}
	}
	return matches, nil
}

// drag 对单个词执行 Scanning(offset) → Matched | Exhausted。
func (e *Engine) drag(word string, scratch []byte) (contract.Match, bool, error) {
	crib := []byte(word)
	if e.set.MinLen > 0 && len(crib) < e.set.MinLen {
		return contract.Match{}, false, nil
	}
	maxOffset := e.matrix.Len() - len(crib) + 1
	if maxOffset <= 0 || len(crib) == 0 {
		return contract.Match{}, false, nil
	}
	if e.set.MaxOffsets > 0 && maxOffset > e.set.MaxOffsets {
		maxOffset = e.set.MaxOffsets
	}
	if cap(scratch) < len(crib) {
		scratch = make([]byte, 0, len(crib))
	}
	frag := scratch[:len(crib)]

	for offset := 0; offset < maxOffset; offset++ {
		for a := 0; a < e.matrix.Count(); a++ {
			group := e.matrix.Anchor(a)
			need := e.quorum(len(group))
			passed := 0
			for gi, k := range group {
				// 剩余对全部通过也达不到法定数时提前放弃
				if passed+len(group)-gi < need {
					break
				}
				x, err := e.matrix.Slice(k, offset, len(crib))
				if err != nil {
					return contract.Match{}, false, fmt.Errorf("%w: word %q offset %d: %v",
						contract.ErrInvariantViolation, word, offset, err)
				}
				for i := range frag {
					frag[i] = x[i] ^ crib[i]
				}
				if e.validator.Validate(frag, e.oracle) {
					passed++
				}
			}
			if passed >= need {
				return e.record(word, crib, offset, a, group), true, nil
			}
		}
	}
	return contract.Match{}, false, nil
}

// record 生成命中记录，附带锚点组内每个对的还原片段。
func (e *Engine) record(word string, crib []byte, offset, anchor int, group []int) contract.Match {
	pairs := e.matrix.Pairs()
	frags := make([]contract.Fragment, 0, len(group))
	for _, k := range group {
		x, _ := e.matrix.Slice(k, offset, len(crib))
		text := make([]byte, len(crib))
		for i := range text {
			text[i] = x[i] ^ crib[i]
		}
		frags = append(frags, contract.Fragment{
			Pair:  pairs[k].Label,
			Text:  string(text),
			Valid: e.validator.Validate(text, e.oracle),
		})
	}
	return contract.Match{
		Word:      word,
		Pair:      pairs[group[0]].Label,
		Offset:    offset,
		Anchor:    anchor,
		Fragments: frags,
	}
}
