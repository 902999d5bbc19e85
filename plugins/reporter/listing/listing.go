package listing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"mtpcrib/pkg/contract"
)

// Options 为报告渲染的可选配置。
type Options struct {
	// Format: "text"（默认）或 "jsonl"。
	Format string `json:"format"`
	// Fragments: 文本格式下是否逐行列出锚点组内各异或对的还原片段。
	Fragments bool `json:"fragments"`
}

// Reporter 将运行结果渲染为文本表或 JSONL（每个命中一行）。
type Reporter struct {
	jsonl     bool
	fragments bool
}

// New 创建报告器。
func New(opts *Options) (*Reporter, error) {
	r := &Reporter{}
	if opts != nil {
		switch strings.ToLower(strings.TrimSpace(opts.Format)) {
		case "", "text":
		case "jsonl":
			r.jsonl = true
		default:
			return nil, fmt.Errorf("%w: listing: format must be text|jsonl, got %q", contract.ErrInvalidInput, opts.Format)
		}
		r.fragments = opts.Fragments
	}
	return r, nil
}

var _ contract.Reporter = (*Reporter)(nil)

// Render 按 s.Matches 原顺序输出。
func (r *Reporter) Render(ctx context.Context, s contract.Summary) (io.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	var err error
	if r.jsonl {
		err = r.renderJSONL(&buf, s)
	} else {
		err = r.renderText(&buf, s)
	}
	if err != nil {
		return nil, err
	}
	return &buf, nil
}

type row struct {
	Word      string    `json:"word"`
	Pair      string    `json:"pair"`
	Offset    int       `json:"offset"`
	Anchor    int       `json:"anchor"`
	Fragments []rowFrag `json:"fragments,omitempty"`
}

type rowFrag struct {
	Pair  string `json:"pair"`
	Text  string `json:"text"`
	Valid bool   `json:"valid"`
}

func (r *Reporter) renderJSONL(w io.Writer, s contract.Summary) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, m := range s.Matches {
		out := row{Word: m.Word, Pair: m.Pair, Offset: m.Offset, Anchor: m.Anchor + 1}
		for _, f := range m.Fragments {
			out.Fragments = append(out.Fragments, rowFrag{Pair: f.Pair, Text: f.Text, Valid: f.Valid})
		}
		if err := enc.Encode(&out); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reporter) renderText(w io.Writer, s contract.Summary) error {
	fmt.Fprintf(w, "ciphertexts: %d\nwords: %d\nmatches: %d\nelapsed: %s\n",
		s.Ciphertexts, s.Words, len(s.Matches), s.Elapsed.Round(time.Millisecond))
	for _, p := range s.Pairs {
		fmt.Fprintf(w, "  %s\n", p)
	}
	if len(s.Matches) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WORD\tPAIR\tOFFSET\tANCHOR")
	for _, m := range s.Matches {
		fmt.Fprintf(tw, "%s\t%s\t%d\tp%d\n", m.Word, m.Pair, m.Offset, m.Anchor+1)
		if !r.fragments {
			continue
		}
		for _, f := range m.Fragments {
			mark := "ok"
			if !f.Valid {
				mark = "--"
			}
			fmt.Fprintf(tw, "\t%s\t%q\t%s\n", f.Pair, f.Text, mark)
		}
	}
	return tw.Flush()
}
