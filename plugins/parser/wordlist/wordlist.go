package wordlist

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"mtpcrib/pkg/contract"
)

// Options 为词表解析器的可选配置。
type Options struct {
	// MinLen: 最短保留长度（按字符计）。<=0 时默认 3，即丢弃长度 <=2 的词。
	MinLen int `json:"min_len"`
	// FirstField: 行内含空白时只取第一列（适配 "word<TAB>count" 频率表）。
	FirstField bool `json:"first_field"`
}

// Parser 每行一个词；去空白、转小写、丢弃短词。非法 UTF-8 行跳过并计数。
// 单文件内不去重（跨层去重由 corpus 负责）。
type Parser struct {
	minLen     int
	firstField bool
}

// New 创建词表解析器。
func New(opts *Options) *Parser {
	p := &Parser{minLen: 3}
	if opts != nil {
		if opts.MinLen > 0 {
			p.minLen = opts.MinLen
		}
		p.firstField = opts.FirstField
	}
	return p
}

// ParseWords 实现 contract.WordParser。
func (p *Parser) ParseWords(ctx context.Context, fileID contract.FileID, r io.Reader) ([]string, int, error) {
	br := bufio.NewReader(r)
	var words []string
	skipped := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, skipped, err
		}
		line, eof, err := readTrimmedLine(br)
		if err != nil {
			return nil, skipped, err
		}
		if eof {
			break
		}
		if !utf8.ValidString(line) {
			skipped++
			continue
		}
		w := strings.TrimSpace(line)
		if p.firstField {
			if f := strings.Fields(w); len(f) > 0 {
				w = f[0]
			}
		}
		w = strings.ToLower(w)
		if utf8.RuneCountInString(w) < p.minLen {
			continue
		}
		words = append(words, w)
	}
	return words, skipped, nil
}

// readTrimmedLine 读取一行并去除结尾 \n / \r\n；返回该行、是否已到 EOF 且无内容。
func readTrimmedLine(br *bufio.Reader) (line string, eof bool, err error) {
	s, err := br.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", false, err
		}
		eof = true
	}
	s = strings.TrimSuffix(s, "\n")
	s = strings.TrimSuffix(s, "\r")
	return s, eof && s == "", nil
}
