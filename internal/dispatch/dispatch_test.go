package dispatch

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"mtpcrib/internal/engine"
	"mtpcrib/internal/sfxindex"
	"mtpcrib/internal/xormatrix"
	"mtpcrib/pkg/contract"
	"mtpcrib/plugins/sharder/contiguous"
)

// 两条相同密文：异或全零，片段即 crib 本身
func zeroMatrix(t *testing.T, n int) *xormatrix.Matrix {
	t.Helper()
	c := contract.Ciphertext(strings.Repeat("k", n))
	m, err := xormatrix.Build([]contract.Ciphertext{c, c}, xormatrix.Options{})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

// 接受以 'a' 开头的片段；遇到 "boom" 时 panic
type stubValidator struct{}

func (stubValidator) Validate(fragment []byte, _ contract.SubstringOracle) bool {
	if string(fragment) == "boom" {
		panic("validator exploded")
	}
	return len(fragment) > 0 && fragment[0] == 'a'
}

func corpus(n int) []string {
	out := make([]string, n)
	for i := range out {
		p := "b"
		if i%3 == 0 {
			p = "a"
		}
		out[i] = fmt.Sprintf("%s%03d", p, i)
	}
	return out
}

func words(ms []contract.Match) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Word
	}
	return out
}

// 不同 worker 数的归并结果与单 worker 完全一致
func TestRunMatchesSequential(t *testing.T) {
	m := zeroMatrix(t, 8)
	oracle := sfxindex.Build(nil)
	in := corpus(100)

	eng, _ := engine.New(m, oracle, stubValidator{}, engine.Settings{})
	want, err := eng.Run(in)
	if err != nil {
		t.Fatal(err)
	}
	for _, workers := range []int{1, 2, 3, 7, 16, 200} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			res, err := Run(context.Background(), in, m, oracle, stubValidator{}, Settings{Workers: workers}, contiguous.New(), nil)
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if !reflect.DeepEqual(words(res.Matches), words(want)) {
				t.Fatalf("结果与顺序执行不一致:\n got %v\nwant %v", words(res.Matches), words(want))
			}
			if len(res.Shards) != workers {
				t.Fatalf("分片数 want %d got %d", workers, len(res.Shards))
			}
			total := 0
			for i, sh := range res.Shards {
				if sh.Index != i || sh.Err != nil {
					t.Fatalf("分片 %d 异常: %+v", i, sh)
				}
				total += sh.Words
			}
			if total != len(in) {
				t.Fatalf("分片词数之和 want %d got %d", len(in), total)
			}
		})
	}
}

// worker panic 转为该分片错误，其余分片结果保留
func TestRunRecoversPanic(t *testing.T) {
	m := zeroMatrix(t, 8)
	in := append(corpus(30), "boom")
	res, err := Run(context.Background(), in, m, sfxindex.Build(nil), stubValidator{}, Settings{Workers: 4}, contiguous.New(), nil)
	if err == nil {
		t.Fatalf("应返回 panic 转换的错误")
	}
	if !errors.Is(err, contract.ErrInvariantViolation) || !strings.Contains(err.Error(), "validator exploded") {
		t.Fatalf("错误内容不符: %v", err)
	}
	failed := 0
	for _, sh := range res.Shards {
		if sh.Err != nil {
			failed++
		}
	}
	if failed != 1 {
		t.Fatalf("应仅一个分片失败, got %d", failed)
	}
	if len(res.Matches) == 0 {
		t.Fatalf("其余分片的部分结果应保留")
	}
	// "boom" 排在 "b..." 之后，位于最后一个分片
	if !strings.HasPrefix(err.Error(), "shard 3:") {
		t.Fatalf("首错应来自分片 3: %v", err)
	}
}

// 派发前检查取消
func TestRunCanceledBeforeFanOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := zeroMatrix(t, 4)
	_, err := Run(ctx, corpus(5), m, sfxindex.Build(nil), stubValidator{}, Settings{Workers: 2}, contiguous.New(), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled got %v", err)
	}
}

func TestRunMissingParts(t *testing.T) {
	m := zeroMatrix(t, 4)
	if _, err := Run(context.Background(), nil, m, sfxindex.Build(nil), stubValidator{}, Settings{}, nil, nil); !errors.Is(err, contract.ErrInvalidInput) {
		t.Fatalf("nil sharder: %v", err)
	}
	if _, err := Run(context.Background(), nil, nil, sfxindex.Build(nil), stubValidator{}, Settings{}, contiguous.New(), nil); !errors.Is(err, contract.ErrInvalidInput) {
		t.Fatalf("nil matrix: %v", err)
	}
}

// 默认 worker 数：空词表也能完成
func TestRunDefaultWorkersEmpty(t *testing.T) {
	m := zeroMatrix(t, 4)
	res, err := Run(context.Background(), nil, m, sfxindex.Build(nil), stubValidator{}, Settings{}, contiguous.New(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Matches) != 0 || len(res.Shards) == 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func BenchmarkRun(b *testing.B) {
	c := contract.Ciphertext(strings.Repeat("k", 64))
	m, _ := xormatrix.Build([]contract.Ciphertext{c, c, c}, xormatrix.Options{})
	in := make([]string, 5000)
	for i := range in {
		in[i] = fmt.Sprintf("w%05d", i)
	}
	oracle := sfxindex.Build(in)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Run(context.Background(), in, m, oracle, stubValidator{}, Settings{Workers: 4}, contiguous.New(), nil)
	}
}
