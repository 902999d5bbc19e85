package cipherline

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"mtpcrib/pkg/contract"
)

// Options 为密文行解析器的可选配置。
type Options struct {
	// Prefer: 同时满足两种编码的行（仅含 0/1 且长度为 8 的倍数）按哪种解码。
	// "binary"（默认）或 "hex"。
	Prefer string `json:"prefer"`
}

// Parser 每行一条密文：十六进制（可带 0x/0X 前缀）或 MSB 在前的 0/1 串。
// 空行跳过；其他内容返回 ErrMalformedLine。
type Parser struct {
	preferHex bool
}

// New 创建解析器。
func New(opts *Options) (*Parser, error) {
	p := &Parser{}
	if opts != nil {
		switch strings.ToLower(strings.TrimSpace(opts.Prefer)) {
		case "", "binary":
		case "hex":
			p.preferHex = true
		default:
			return nil, fmt.Errorf("%w: cipherline: prefer must be hex|binary, got %q", contract.ErrInvalidInput, opts.Prefer)
		}
	}
	return p, nil
}

// ParseCiphertexts 实现 contract.CipherParser。行号从 1 开始计。
func (p *Parser) ParseCiphertexts(ctx context.Context, fileID contract.FileID, r io.Reader) ([]contract.Ciphertext, error) {
	br := bufio.NewReader(r)
	var out []contract.Ciphertext
	for lineNo := 1; ; lineNo++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line, eof, err := readTrimmedLine(br)
		if err != nil {
			return nil, err
		}
		if eof {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ct, ok := p.decode(line)
		if !ok {
			return nil, fmt.Errorf("%w: %s:%d: %q", contract.ErrMalformedLine, fileID, lineNo, clip(line, 40))
		}
		out = append(out, ct)
	}
	return out, nil
}

func (p *Parser) decode(line string) (contract.Ciphertext, bool) {
	if !p.preferHex {
		if b, ok := decodeBinary(line); ok {
			return b, true
		}
	}
	if b, ok := decodeHex(line); ok {
		return b, true
	}
	return decodeBinary(line)
}

func decodeHex(s string) ([]byte, bool) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	if s == "" || len(s)%2 != 0 {
		return nil, false
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, false
	}
	return b, true
}

// decodeBinary 每 8 位一组，最高位在前。
func decodeBinary(s string) ([]byte, bool) {
	if s == "" || len(s)%8 != 0 {
		return nil, false
	}
	out := make([]byte, len(s)/8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '0' && c != '1' {
			return nil, false
		}
		out[i/8] = out[i/8]<<1 | (c - '0')
	}
	return out, true
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
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
