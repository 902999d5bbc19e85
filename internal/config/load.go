package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// EnvPrefix 环境变量前缀。
const EnvPrefix = "MTPCRIB_"

// Defaults 返回带有安全默认值的 Config 雏形。
// 注意：密文与词典不设默认（必须由 JSON/ENV/CLI 提供）。
func Defaults() Config {
	return Config{
		MinLen:  3,
		Logging: Logging{Level: "info"},
		Components: Components{
			Reader:       "fs",
			CipherParser: "line",
			WordParser:   "tier",
			Sharder:      "contiguous",
			Validator:    "dict",
			Codec:        "sfxbin",
			Writer:       "fs",
			Reporter:     "text",
		},
	}
}

// LoadJSON 从文件路径或原始 JSON 解析 Config（严格拒绝未知字段）。
// 结果是覆盖层：缺省的整型键保持 Unset 的 -1，需经 Merge 叠加到 Defaults 上使用。
func LoadJSON(path string, raw []byte) (Config, error) {
	cfg := Unset()
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		r = f
	default:
		return cfg, errors.New("no config source provided")
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Unset 构造一个“全部未设置”的覆盖层：整型字段取 -1，
// 以便 Merge 区分“未覆盖”与“显式设置为 0”。
func Unset() Config {
	return Config{Workers: -1, MinLen: -1, MaxOffsets: -1, Quorum: -1}
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/原样 JSON 为“替换”；不做深度合并。
// 整型字段 0 有语义（workers=0 为 CPU 数，quorum=0 为全部），over 中 <0 视为未覆盖。
// trim_to_shortest 只能被打开，不能被覆盖层关闭。
func Merge(base, over Config) Config {
	out := base
	if len(over.Ciphertexts) > 0 {
		out.Ciphertexts = cloneStrings(over.Ciphertexts)
	}
	if len(over.Dictionaries) > 0 {
		out.Dictionaries = cloneStrings(over.Dictionaries)
	}
	if over.Workers >= 0 {
		out.Workers = over.Workers
	}
	if over.MinLen >= 0 {
		out.MinLen = over.MinLen
	}
	if over.MaxOffsets >= 0 {
		out.MaxOffsets = over.MaxOffsets
	}
	if over.Quorum >= 0 {
		out.Quorum = over.Quorum
	}
	if over.TrimToShortest {
		out.TrimToShortest = true
	}
	if s := strings.TrimSpace(over.IndexCache); s != "" {
		out.IndexCache = s
	}
	if s := strings.TrimSpace(over.Report); s != "" {
		out.Report = s
	}
	if s := strings.TrimSpace(over.Logging.Level); s != "" {
		out.Logging.Level = s
	}
	if s := strings.TrimSpace(over.Logging.Dir); s != "" {
		out.Logging.Dir = s
	}

	// 组件名（空不覆盖）
	setName(&out.Components.Reader, over.Components.Reader)
	setName(&out.Components.CipherParser, over.Components.CipherParser)
	setName(&out.Components.WordParser, over.Components.WordParser)
	setName(&out.Components.Sharder, over.Components.Sharder)
	setName(&out.Components.Validator, over.Components.Validator)
	setName(&out.Components.Codec, over.Components.Codec)
	setName(&out.Components.Writer, over.Components.Writer)
	setName(&out.Components.Reporter, over.Components.Reporter)

	// Options（完整替换对应键）
	setRaw(&out.Options.Reader, over.Options.Reader)
	setRaw(&out.Options.CipherParser, over.Options.CipherParser)
	setRaw(&out.Options.WordParser, over.Options.WordParser)
	setRaw(&out.Options.Sharder, over.Options.Sharder)
	setRaw(&out.Options.Validator, over.Options.Validator)
	setRaw(&out.Options.Codec, over.Options.Codec)
	setRaw(&out.Options.Writer, over.Options.Writer)
	setRaw(&out.Options.Reporter, over.Options.Reporter)
	return out
}

func setName(dst *string, v string) {
	if t := strings.TrimSpace(v); t != "" {
		*dst = t
	}
}

func setRaw(dst *json.RawMessage, v json.RawMessage) {
	if len(v) > 0 {
		*dst = cloneRaw(v)
	}
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 规则：前缀 MTPCRIB_；集合之外的键忽略。
// 支持：CIPHERTEXTS, DICTIONARIES, WORKERS, MIN_LEN, MAX_OFFSETS, QUORUM,
// TRIM_TO_SHORTEST, INDEX_CACHE, REPORT, LOG_LEVEL, LOG_DIR, COMPONENTS_*,
// 以及 OPTIONS_<COMPONENT>_JSON（原样 JSON）。
// 数值无法解析时返回错误，避免静默忽略。
func EnvOverlay(environ []string) (Config, error) {
	over := Unset()
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len(EnvPrefix) {
			continue
		}
		key := kv[len(EnvPrefix):eq]
		val := kv[eq+1:]
		var err error
		switch key {
		case "CIPHERTEXTS":
			over.Ciphertexts = splitComma(val)
		case "DICTIONARIES":
			over.Dictionaries = splitComma(val)
		case "WORKERS":
			over.Workers, err = atoi(val)
		case "MIN_LEN":
			over.MinLen, err = atoi(val)
		case "MAX_OFFSETS":
			over.MaxOffsets, err = atoi(val)
		case "QUORUM":
			over.Quorum, err = atoi(val)
		case "TRIM_TO_SHORTEST":
			switch strings.ToLower(strings.TrimSpace(val)) {
			case "1", "true", "yes":
				over.TrimToShortest = true
			}
		case "INDEX_CACHE":
			over.IndexCache = strings.TrimSpace(val)
		case "REPORT":
			over.Report = strings.TrimSpace(val)
		case "LOG_LEVEL":
			over.Logging.Level = strings.TrimSpace(val)
		case "LOG_DIR":
			over.Logging.Dir = strings.TrimSpace(val)
		case "COMPONENTS_READER":
			over.Components.Reader = strings.TrimSpace(val)
		case "COMPONENTS_CIPHER_PARSER":
			over.Components.CipherParser = strings.TrimSpace(val)
		case "COMPONENTS_WORD_PARSER":
			over.Components.WordParser = strings.TrimSpace(val)
		case "COMPONENTS_SHARDER":
			over.Components.Sharder = strings.TrimSpace(val)
		case "COMPONENTS_VALIDATOR":
			over.Components.Validator = strings.TrimSpace(val)
		case "COMPONENTS_CODEC":
			over.Components.Codec = strings.TrimSpace(val)
		case "COMPONENTS_WRITER":
			over.Components.Writer = strings.TrimSpace(val)
		case "COMPONENTS_REPORTER":
			over.Components.Reporter = strings.TrimSpace(val)
		default:
			// OPTIONS_<COMPONENT>_JSON；空值视为未设置，避免清空 config.json
			if dst := optionSlot(&over.Options, key); dst != nil && strings.TrimSpace(val) != "" {
				if !json.Valid([]byte(val)) {
					err = errors.New("invalid JSON")
				} else {
					*dst = json.RawMessage(val)
				}
			}
		}
		if err != nil {
			return Config{}, fmt.Errorf("env %s%s: %w", EnvPrefix, key, err)
		}
	}
	return over, nil
}

func optionSlot(o *Options, key string) *json.RawMessage {
	switch key {
	case "OPTIONS_READER_JSON":
		return &o.Reader
	case "OPTIONS_CIPHER_PARSER_JSON":
		return &o.CipherParser
	case "OPTIONS_WORD_PARSER_JSON":
		return &o.WordParser
	case "OPTIONS_SHARDER_JSON":
		return &o.Sharder
	case "OPTIONS_VALIDATOR_JSON":
		return &o.Validator
	case "OPTIONS_CODEC_JSON":
		return &o.Codec
	case "OPTIONS_WRITER_JSON":
		return &o.Writer
	case "OPTIONS_REPORTER_JSON":
		return &o.Reporter
	}
	return nil
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func atoi(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &n)
	if err != nil {
		return 0, err
	}
	return n, nil
}
