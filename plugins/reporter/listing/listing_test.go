package listing

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"mtpcrib/pkg/contract"
)

func summary() contract.Summary {
	return contract.Summary{
		Ciphertexts: 2,
		Words:       10,
		Pairs:       []string{"x12 = p1 ^ p2"},
		Elapsed:     1500 * time.Millisecond,
		Matches: []contract.Match{
			{Word: "hello", Pair: "x12", Offset: 0, Anchor: 0,
				Fragments: []contract.Fragment{{Pair: "x12", Text: "goodm", Valid: true}}},
			{Word: "attack", Pair: "x12", Offset: 4, Anchor: 1,
				Fragments: []contract.Fragment{{Pair: "x12", Text: "q\"x", Valid: false}}},
		},
	}
}

func render(t *testing.T, opts *Options, s contract.Summary) string {
	t.Helper()
	r, err := New(opts)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	rd, err := r.Render(context.Background(), s)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	b, _ := io.ReadAll(rd)
	return string(b)
}

func TestRenderText(t *testing.T) {
	out := render(t, nil, summary())
	for _, want := range []string{"ciphertexts: 2", "matches: 2", "elapsed: 1.5s", "x12 = p1 ^ p2", "WORD", "hello", "attack"} {
		if !strings.Contains(out, want) {
			t.Fatalf("缺少 %q:\n%s", want, out)
		}
	}
	// 保持原顺序
	if strings.Index(out, "hello") > strings.Index(out, "attack") {
		t.Fatalf("命中顺序被改变:\n%s", out)
	}
	if strings.Contains(out, "goodm") {
		t.Fatalf("默认不输出片段")
	}
	if out = render(t, &Options{Fragments: true}, summary()); !strings.Contains(out, `"goodm"`) {
		t.Fatalf("应输出片段:\n%s", out)
	}
}

func TestRenderTextNoMatches(t *testing.T) {
	s := summary()
	s.Matches = nil
	if out := render(t, nil, s); strings.Contains(out, "WORD") {
		t.Fatalf("无命中时不输出表头:\n%s", out)
	}
}

func TestRenderJSONL(t *testing.T) {
	out := render(t, &Options{Format: "jsonl"}, summary())
	sc := bufio.NewScanner(strings.NewReader(out))
	var rows []row
	for sc.Scan() {
		var r row
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatalf("invalid jsonl line %q: %v", sc.Text(), err)
		}
		rows = append(rows, r)
	}
	if len(rows) != 2 || rows[0].Word != "hello" || rows[1].Offset != 4 || rows[1].Anchor != 2 {
		t.Fatalf("rows: %+v", rows)
	}
	if rows[1].Fragments[0].Text != "q\"x" {
		t.Fatalf("片段转义错误: %+v", rows[1].Fragments)
	}
}

func TestNewBadFormat(t *testing.T) {
	if _, err := New(&Options{Format: "xml"}); !errors.Is(err, contract.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput got %v", err)
	}
}

func TestRenderCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r, _ := New(nil)
	if _, err := r.Render(ctx, summary()); !errors.Is(err, context.Canceled) {
		t.Fatalf("want canceled got %v", err)
	}
}
