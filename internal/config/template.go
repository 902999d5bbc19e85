package config

import "encoding/json"

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// - 密文与词典取常见相对路径，按需修改；
// - Writer 输出到 ./out，报告与索引缓存都写在其中；
// - 选项包含所有键，值为中性默认。
func DefaultTemplateConfig() Config {
	d := Defaults()
	cfg := Config{
		Ciphertexts:  []string{"ciphertexts.txt"},
		Dictionaries: []string{"dict/common.txt", "dict/full.txt"},
		Workers:      0,
		MinLen:       d.MinLen,
		MaxOffsets:   0,
		Quorum:       0,
		IndexCache:   "index.sfx",
		Report:       "report.txt",
		Logging:      Logging{Level: "info", Dir: "logs"},
		Components:   d.Components,
	}
	cfg.Options.Reader = json.RawMessage(`{
  "buf_size": 65536,
  "exclude_dir_names": [".git"],
  "allow_exts": [],
  "include_hidden": false
}`)
	cfg.Options.CipherParser = json.RawMessage(`{
  "prefer": "binary"
}`)
	cfg.Options.WordParser = json.RawMessage(`{
  "min_len": 3,
  "first_field": false
}`)
	// contiguous 与 sfxbin 无配置项，保持空对象
	cfg.Options.Sharder = json.RawMessage(`{}`)
	cfg.Options.Codec = json.RawMessage(`{}`)
	cfg.Options.Validator = json.RawMessage(`{
  "punctuation": ""
}`)
	cfg.Options.Writer = json.RawMessage(`{
  "output_dir": "out",
  "atomic": true,
  "flat": false,
  "perm_file": 0,
  "perm_dir": 0,
  "buf_size": 65536
}`)
	cfg.Options.Reporter = json.RawMessage(`{
  "format": "text",
  "fragments": true
}`)
	return cfg
}
