// Package xormatrix 计算密文两两异或的结果表，并提供按偏移切片的只读视图。
package xormatrix

import (
	"fmt"

	"mtpcrib/pkg/contract"
)

// Options: 构建选项。
type Options struct {
	// TrimToShortest: 将全部密文截断到最短长度后再配对；默认 false（长度不等即失败）。
	TrimToShortest bool
}

// Pair: 一个无序异或对 {I,J}（I<J）及其结果。
type Pair struct {
	I, J  int
	Label string
	xor   []byte
}

// Matrix: 扁平的异或对表，按 (I,J) 升序排列。构建后不可变，可无锁共享。
type Matrix struct {
	n       int
	length  int
	pairs   []Pair
	anchors [][]int
}

// Build 对每个无序下标对计算异或。至少两条密文；长度不等在此一次性报错。
func Build(cts []contract.Ciphertext, opts Options) (*Matrix, error) {
	n := len(cts)
	if n < 2 {
		return nil, fmt.Errorf("%w: need at least two ciphertexts, got %d", contract.ErrInvalidInput, n)
	}
	length := len(cts[0])
	for _, c := range cts[1:] {
		if len(c) < length {
			length = len(c)
		}
	}
	if !opts.TrimToShortest {
		for i, c := range cts {
			if len(c) != len(cts[0]) {
				return nil, fmt.Errorf("%w: ciphertext #%d has %d bytes, #1 has %d",
					contract.ErrLengthMismatch, i+1, len(c), len(cts[0]))
			}
		}
	}

	m := &Matrix{n: n, length: length, pairs: make([]Pair, 0, n*(n-1)/2), anchors: make([][]int, n)}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			x, err := XOR(cts[i][:length], cts[j][:length])
			if err != nil {
				return nil, err
			}
			k := len(m.pairs)
			m.pairs = append(m.pairs, Pair{I: i, J: j, Label: contract.PairLabel(i, j), xor: x})
			m.anchors[i] = append(m.anchors[i], k)
			m.anchors[j] = append(m.anchors[j], k)
		}
	}
	return m, nil
}

// Count 返回密文条数。
func (m *Matrix) Count() int { return m.n }

// Len 返回每个异或结果的长度（即参与攻击的最短密文长度）。
func (m *Matrix) Len() int { return m.length }

// Pairs 返回全部异或对（只读，勿修改）。
func (m *Matrix) Pairs() []Pair { return m.pairs }

// Labels 返回全部异或对标签，如 "x12 = p1 ^ p2"。
func (m *Matrix) Labels() []string {
	out := make([]string, len(m.pairs))
	for k, p := range m.pairs {
		out[k] = fmt.Sprintf("%s = p%d ^ p%d", p.Label, p.I+1, p.J+1)
	}
	return out
}

// Pair 返回 {i,j} 在表中的位置；{i,j} 与 {j,i} 等价。
func (m *Matrix) Pair(i, j int) (int, bool) {
	if i > j {
		i, j = j, i
	}
	if i < 0 || j >= m.n || i == j {
		return 0, false
	}
	// 行 i 之前共有 i*(2n-i-1)/2 个对
	return i*(2*m.n-i-1)/2 + (j - i - 1), true
}

// Anchor 返回与明文 a 相关的全部异或对位置（按 (I,J) 升序）。
func (m *Matrix) Anchor(a int) []int {
	if a < 0 || a >= m.n {
		return nil
	}
	return m.anchors[a]
}

// Slice 返回第 k 个异或对自 offset 起 length 个字节的只读视图。
func (m *Matrix) Slice(k, offset, length int) ([]byte, error) {
	if k < 0 || k >= len(m.pairs) {
		return nil, fmt.Errorf("%w: pair %d of %d", contract.ErrOffsetRange, k, len(m.pairs))
	}
	x := m.pairs[k].xor
	if offset < 0 || length < 0 || offset+length > len(x) {
		return nil, fmt.Errorf("%w: [%d:%d] of %d bytes", contract.ErrOffsetRange, offset, offset+length, len(x))
	}
	return x[offset : offset+length : offset+length], nil
}
