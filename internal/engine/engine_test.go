package engine

import (
	"crypto/rand"
	"errors"
	"testing"

	"mtpcrib/internal/sfxindex"
	"mtpcrib/internal/xormatrix"
	"mtpcrib/pkg/contract"
	"mtpcrib/plugins/validator/dictword"
)

// 只接受白名单片段的校验器桩件
type allowValidator map[string]bool

func (a allowValidator) Validate(fragment []byte, _ contract.SubstringOracle) bool {
	return a[string(fragment)]
}

func encrypt(t *testing.T, plains ...string) []contract.Ciphertext {
	t.Helper()
	key := make([]byte, len(plains[0]))
	if _, err := rand.Read(key); err != nil {
		t.Fatal(err)
	}
	out := make([]contract.Ciphertext, len(plains))
	for i, p := range plains {
		c, err := xormatrix.XOR([]byte(p), key)
		if err != nil {
			t.Fatal(err)
		}
		out[i] = c
	}
	return out
}

func mustMatrix(t *testing.T, cts []contract.Ciphertext) *xormatrix.Matrix {
	t.Helper()
	m, err := xormatrix.Build(cts, xormatrix.Options{})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

// 端到端：两条 12 字节密文共用密钥，hello 在偏移 0 还原出 goodm
func TestTwoCiphertextScenario(t *testing.T) {
	m := mustMatrix(t, encrypt(t, "helloworldx.", "goodmorning."))
	idx := sfxindex.Build([]string{"goodmorning"})
	e, err := New(m, idx, dictword.New(nil), Settings{})
	if err != nil {
		t.Fatal(err)
	}
	got, err := e.Run([]string{"hello"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("应恰好命中 1 次, got %d: %+v", len(got), got)
	}
	mt := got[0]
	if mt.Word != "hello" || mt.Offset != 0 || mt.Pair != "x12" || mt.Anchor != 0 {
		t.Fatalf("命中记录错误: %+v", mt)
	}
	if len(mt.Fragments) != 1 || mt.Fragments[0].Text != "goodm" || !mt.Fragments[0].Valid {
		t.Fatalf("片段错误: %+v", mt.Fragments)
	}
}

// 三条密文：正确放置的词在全部对上同时成立
func TestAllPairsAgree(t *testing.T) {
	m := mustMatrix(t, encrypt(t, "the cat sat", "big red hat", "dog ran far"))
	idx := sfxindex.Build([]string{"the", "cat", "sat", "big", "red", "hat", "dog", "ran", "far"})
	e, _ := New(m, idx, dictword.New(nil), Settings{})
	got, err := e.Run([]string{"the"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Offset != 0 || got[0].Anchor != 0 {
		t.Fatalf("the 应在偏移 0 / 锚点 0 命中: %+v", got)
	}
	texts := []string{got[0].Fragments[0].Text, got[0].Fragments[1].Text}
	if texts[0] != "big" || texts[1] != "dog" {
		t.Fatalf("片段 %v", texts)
	}
}

// 法定数：全部通过 vs 任一通过
func TestQuorumPolicy(t *testing.T) {
	// 零密钥：密文即明文，便于手算片段
	cts := []contract.Ciphertext{[]byte("aaaa"), []byte("bbbb"), []byte("cccc")}
	m := mustMatrix(t, cts)
	v := allowValidator{"bb": true}
	oracle := sfxindex.Build(nil)

	strict, _ := New(m, oracle, v, Settings{})
	got, err := strict.Run([]string{"aa"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("全部通过策略下不应命中: %+v", got)
	}

	loose, _ := New(m, oracle, v, Settings{Quorum: 1})
	got, err = loose.Run([]string{"aa"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Offset != 0 || got[0].Anchor != 0 {
		t.Fatalf("quorum=1 应在偏移 0 锚点 0 命中: %+v", got)
	}
	if !got[0].Fragments[0].Valid || got[0].Fragments[1].Valid {
		t.Fatalf("片段有效性标记错误: %+v", got[0].Fragments)
	}

	over, _ := New(m, oracle, v, Settings{Quorum: 99})
	if got, _ := over.Run([]string{"aa"}); len(got) != 0 {
		t.Fatalf("超出组大小的 quorum 等同全部通过: %+v", got)
	}
}

// 首中即停：同一词只记录最早偏移
func TestFirstMatchOnly(t *testing.T) {
	cts := []contract.Ciphertext{[]byte("abab"), []byte("abab")}
	m := mustMatrix(t, cts) // 异或全零，片段即 crib 本身
	v := allowValidator{"ab": true, "ba": true}
	e, _ := New(m, sfxindex.Build(nil), v, Settings{})
	got, _ := e.Run([]string{"ab", "ba"})
	if len(got) != 2 {
		t.Fatalf("got %+v", got)
	}
	for _, mt := range got {
		if mt.Offset != 0 {
			t.Fatalf("%s 应在偏移 0 命中, got %d", mt.Word, mt.Offset)
		}
	}
}

func TestSkipsAndBounds(t *testing.T) {
	cts := []contract.Ciphertext{[]byte("xxxxx"), []byte("xxxxx")}
	m := mustMatrix(t, cts)
	v := allowValidator{"toolong": true, "ab": true, "abc": true, "cde": true}
	e, _ := New(m, sfxindex.Build(nil), v, Settings{MinLen: 3})
	got, _ := e.Run([]string{"toolong", "ab", "abc"})
	if len(got) != 1 || got[0].Word != "abc" {
		t.Fatalf("超长词与短词应跳过: %+v", got)
	}

	// 异或为 00 00 00 03 03：crib "ab" 仅在偏移 3 还原出 "ba"
	m = mustMatrix(t, []contract.Ciphertext{[]byte("aaaaa"), []byte("aaabb")})
	only := allowValidator{"ba": true}
	free, _ := New(m, sfxindex.Build(nil), only, Settings{})
	if got, _ := free.Run([]string{"ab"}); len(got) != 1 || got[0].Offset != 3 {
		t.Fatalf("应在偏移 3 命中: %+v", got)
	}
	bounded, _ := New(m, sfxindex.Build(nil), only, Settings{MaxOffsets: 3})
	if got, _ := bounded.Run([]string{"ab"}); len(got) != 0 {
		t.Fatalf("偏移上限 3 时不应命中: %+v", got)
	}
}

// 输出按词字典序，且不修改入参
func TestDeterministicOrder(t *testing.T) {
	cts := []contract.Ciphertext{[]byte("zzzz"), []byte("zzzz")}
	m := mustMatrix(t, cts)
	v := allowValidator{"cat": true, "ant": true, "bee": true}
	e, _ := New(m, sfxindex.Build(nil), v, Settings{})
	shard := []string{"cat", "bee", "ant"}
	got, _ := e.Run(shard)
	if len(got) != 3 || got[0].Word != "ant" || got[1].Word != "bee" || got[2].Word != "cat" {
		t.Fatalf("顺序错误: %+v", got)
	}
	if shard[0] != "cat" {
		t.Fatalf("入参被修改")
	}
}

func TestNewRejectsMissing(t *testing.T) {
	if _, err := New(nil, nil, nil, Settings{}); !errors.Is(err, contract.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput got %v", err)
	}
}
