// Package dictword 实现基于词典子串判定的候选片段校验策略。
package dictword

import (
	"bytes"

	"mtpcrib/pkg/contract"
)

// DefaultPunctuation: 允许出现在片段中的标点（空格另计）。
const DefaultPunctuation = `!,.:;'"?`

// Options 为校验器的可选配置。
type Options struct {
	// Punctuation: 允许的标点集合；为空采用 DefaultPunctuation。
	Punctuation string `json:"punctuation"`
}

// Validator: 字符类 + 词典子串双重判定。
// 规则：
//  1. 每个字节须为字母、数字、允许的标点或空格；
//  2. 按空格切分，每个 token 去掉首尾标点并转小写后，须为某个词典词的子串；
//  3. 不含任何 token 的片段拒绝；首个失败即返回。
type Validator struct {
	allowed [256]bool
	punct   [256]bool
}

var _ contract.Validator = (*Validator)(nil)

// New 创建校验器。
func New(opts *Options) *Validator {
	p := DefaultPunctuation
	if opts != nil && opts.Punctuation != "" {
		p = opts.Punctuation
	}
	v := &Validator{}
	for c := 'a'; c <= 'z'; c++ {
		v.allowed[c] = true
		v.allowed[c-'a'+'A'] = true
	}
	for c := '0'; c <= '9'; c++ {
		v.allowed[c] = true
	}
	v.allowed[' '] = true
	for i := 0; i < len(p); i++ {
		v.allowed[p[i]] = true
		v.punct[p[i]] = true
	}
	return v
}

// Printable 判断片段是否只含允许的字符。
func (v *Validator) Printable(fragment []byte) bool {
	for _, c := range fragment {
		if !v.allowed[c] {
			return false
		}
	}
	return true
}

// Validate 实现 contract.Validator。
func (v *Validator) Validate(fragment []byte, oracle contract.SubstringOracle) bool {
	if !v.Printable(fragment) {
		return false
	}
	var buf [64]byte
	tokens := 0
	for _, tok := range bytes.Fields(fragment) {
		tok = v.trim(tok)
		if len(tok) == 0 {
			return false
		}
		tokens++
		if !oracle.SubstringExists(lower(buf[:0], tok)) {
			return false
		}
	}
	return tokens > 0
}

// trim 去掉 token 首尾的允许标点。
func (v *Validator) trim(tok []byte) []byte {
	for len(tok) > 0 && v.punct[tok[0]] {
		tok = tok[1:]
	}
	for len(tok) > 0 && v.punct[tok[len(tok)-1]] {
		tok = tok[:len(tok)-1]
	}
	return tok
}

// lower 将 ASCII 大写转小写，写入 dst（容量足够时不分配）。
func lower(dst, src []byte) []byte {
	for _, c := range src {
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		dst = append(dst, c)
	}
	return dst
}
