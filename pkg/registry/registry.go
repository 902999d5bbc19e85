package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"mtpcrib/pkg/contract"
	sfxbin "mtpcrib/plugins/codec/sfxbin"
	cline "mtpcrib/plugins/parser/cipherline"
	wlist "mtpcrib/plugins/parser/wordlist"
	rfs "mtpcrib/plugins/reader/filesystem"
	listing "mtpcrib/plugins/reporter/listing"
	contig "mtpcrib/plugins/sharder/contiguous"
	dword "mtpcrib/plugins/validator/dictword"
	wfs "mtpcrib/plugins/writer/filesystem"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: options: %v", contract.ErrInvalidInput, err)
	}
	return nil
}

// NewReader 工厂签名：接收原样 JSON Options。
type NewReader func(raw json.RawMessage) (contract.Reader, error)

// NewCipherParser 工厂签名：接收原样 JSON Options。
type NewCipherParser func(raw json.RawMessage) (contract.CipherParser, error)

// NewWordParser 工厂签名：接收原样 JSON Options。
type NewWordParser func(raw json.RawMessage) (contract.WordParser, error)

// NewSharder 工厂签名：接收原样 JSON Options。
type NewSharder func(raw json.RawMessage) (contract.Sharder, error)

// NewValidator 工厂签名：接收原样 JSON Options。
type NewValidator func(raw json.RawMessage) (contract.Validator, error)

// NewCodec 工厂签名：接收原样 JSON Options。
type NewCodec func(raw json.RawMessage) (contract.IndexCodec, error)

// NewWriter 工厂签名：接收原样 JSON Options。
type NewWriter func(raw json.RawMessage) (contract.Writer, error)

// NewReporter 工厂签名：接收原样 JSON Options。
type NewReporter func(raw json.RawMessage) (contract.Reporter, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 文件系统/STDIN Reader
	"fs": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts), nil
	},
}

// CipherParser 工厂注册表。
var CipherParser = map[string]NewCipherParser{
	// line: 每行一条十六进制或二进制密文
	"line": func(raw json.RawMessage) (contract.CipherParser, error) {
		var opts cline.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return cline.New(&opts)
	},
}

// WordParser 工厂注册表。
var WordParser = map[string]NewWordParser{
	// tier: 每行一个词的词表
	"tier": func(raw json.RawMessage) (contract.WordParser, error) {
		var opts wlist.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wlist.New(&opts), nil
	},
}

// Sharder 工厂注册表。
var Sharder = map[string]NewSharder{
	"contiguous": func(raw json.RawMessage) (contract.Sharder, error) {
		var opts struct{}
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return contig.New(), nil
	},
}

// Validator 工厂注册表。
var Validator = map[string]NewValidator{
	// dict: 字符类 + 词典子串
	"dict": func(raw json.RawMessage) (contract.Validator, error) {
		var opts dword.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return dword.New(&opts), nil
	},
}

// Codec 工厂注册表。
var Codec = map[string]NewCodec{
	"sfxbin": func(raw json.RawMessage) (contract.IndexCodec, error) {
		var opts struct{}
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return sfxbin.New(), nil
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 文件系统 Writer（覆盖写/原子替换可配置）
	"fs": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts)
	},
}

// Reporter 工厂注册表。text 与 jsonl 共用 listing 实现，仅默认格式不同。
var Reporter = map[string]NewReporter{
	"text":  newListing("text"),
	"jsonl": newListing("jsonl"),
}

func newListing(format string) NewReporter {
	return func(raw json.RawMessage) (contract.Reporter, error) {
		var opts listing.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		if opts.Format == "" {
			opts.Format = format
		}
		return listing.New(&opts)
	}
}

// Names 返回各类组件的已注册名（排序），供 --list 输出。
func Names() map[string][]string {
	return map[string][]string{
		"reader":        keys(Reader),
		"cipher_parser": keys(CipherParser),
		"word_parser":   keys(WordParser),
		"sharder":       keys(Sharder),
		"validator":     keys(Validator),
		"codec":         keys(Codec),
		"writer":        keys(Writer),
		"reporter":      keys(Reporter),
	}
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
