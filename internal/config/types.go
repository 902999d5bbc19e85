package config

import (
	"encoding/json"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// JSON 使用 snake_case；未知字段在解析期失败。
type Config struct {
	// Ciphertexts: 密文文件或目录（按给定顺序读取，"-" 表示 STDIN）。
	Ciphertexts []string `json:"ciphertexts"`
	// Dictionaries: 词典层，按优先级从高到低。
	Dictionaries []string `json:"dictionaries"`
	// Workers: 分片数即 worker 数；0 表示 CPU 数。
	Workers int `json:"workers"`

	// 拖词引擎参数。
	MinLen     int `json:"min_len"`
	MaxOffsets int `json:"max_offsets"`
	// Quorum: 0 表示锚点组内全部异或对须通过。
	Quorum         int  `json:"quorum"`
	TrimToShortest bool `json:"trim_to_shortest"`

	// IndexCache / Report: 写入 Writer 输出目录下的工件名；空表示不产出。
	IndexCache string `json:"index_cache"`
	Report     string `json:"report"`

	Logging Logging `json:"logging"`

	// 组件名选择（空则使用默认名）。
	Components Components `json:"components"`

	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options"`
}

// Logging: 日志等级与目录；目录为空使用 diag.DefaultLogDir。
type Logging struct {
	Level string `json:"level"`
	Dir   string `json:"dir"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Reader       string `json:"reader"`
	CipherParser string `json:"cipher_parser"`
	WordParser   string `json:"word_parser"`
	Sharder      string `json:"sharder"`
	Validator    string `json:"validator"`
	Codec        string `json:"codec"`
	Writer       string `json:"writer"`
	Reporter     string `json:"reporter"`
}

// Options: 各组件的原样 JSON Options。
type Options struct {
	Reader       json.RawMessage `json:"reader"`
	CipherParser json.RawMessage `json:"cipher_parser"`
	WordParser   json.RawMessage `json:"word_parser"`
	Sharder      json.RawMessage `json:"sharder"`
	Validator    json.RawMessage `json:"validator"`
	Codec        json.RawMessage `json:"codec"`
	Writer       json.RawMessage `json:"writer"`
	Reporter     json.RawMessage `json:"reporter"`
}
