package config

import (
	"errors"
	"fmt"
	"strings"

	"mtpcrib/internal/attack"
	"mtpcrib/internal/engine"
	"mtpcrib/internal/xormatrix"
	"mtpcrib/pkg/contract"
	"mtpcrib/pkg/registry"
)

// Validate 对最小必要边界做静态校验（要求已与 Defaults 合并）。
func Validate(cfg Config) error {
	if len(cfg.Ciphertexts) == 0 {
		return errors.New("config: ciphertexts empty")
	}
	if len(cfg.Dictionaries) == 0 {
		return errors.New("config: dictionaries empty")
	}
	// STDIN 只能读一次："-" 在两类输入中合计至多出现一次
	dash := 0
	for _, list := range [][]string{cfg.Ciphertexts, cfg.Dictionaries} {
		for _, r := range list {
			switch strings.TrimSpace(r) {
			case "":
				return errors.New("config: input path cannot be empty")
			case "-":
				dash++
			}
		}
	}
	if dash > 1 {
		return errors.New("config: '-' may appear only once across ciphertexts and dictionaries")
	}
	if cfg.Workers < 0 {
		return errors.New("config: workers must be >= 0")
	}
	if cfg.MinLen < 0 {
		return errors.New("config: min_len must be >= 0")
	}
	if cfg.MaxOffsets < 0 {
		return errors.New("config: max_offsets must be >= 0")
	}
	if cfg.Quorum < 0 {
		return errors.New("config: quorum must be >= 0")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: logging.level %q invalid", cfg.Logging.Level)
	}
	if cfg.IndexCache != "" && cfg.IndexCache == cfg.Report {
		return errors.New("config: index_cache and report must differ")
	}
	// 组件名若为空，使用默认名（由 Defaults() 提供）。此处只要最终有值即可。
	d := Defaults().Components
	checks := []struct {
		kind string
		name string
		ok   func(string) bool
	}{
		{"reader", effName(cfg.Components.Reader, d.Reader), func(n string) bool { return registry.Reader[n] != nil }},
		{"cipher_parser", effName(cfg.Components.CipherParser, d.CipherParser), func(n string) bool { return registry.CipherParser[n] != nil }},
		{"word_parser", effName(cfg.Components.WordParser, d.WordParser), func(n string) bool { return registry.WordParser[n] != nil }},
		{"sharder", effName(cfg.Components.Sharder, d.Sharder), func(n string) bool { return registry.Sharder[n] != nil }},
		{"validator", effName(cfg.Components.Validator, d.Validator), func(n string) bool { return registry.Validator[n] != nil }},
		{"codec", effName(cfg.Components.Codec, d.Codec), func(n string) bool { return registry.Codec[n] != nil }},
		{"writer", effName(cfg.Components.Writer, d.Writer), func(n string) bool { return registry.Writer[n] != nil }},
		{"reporter", effName(cfg.Components.Reporter, d.Reporter), func(n string) bool { return registry.Reporter[n] != nil }},
	}
	for _, c := range checks {
		if !c.ok(c.name) {
			return fmt.Errorf("config: %s %q not registered", c.kind, c.name)
		}
	}
	return nil
}

// Assemble 构造 Components 与 Settings。
// 严格 Options 解析在 registry（工厂）层进行；此处只传 raw JSON。
// Writer/Codec/Reporter 仅在配置了 index_cache 或 report 时构造，
// 避免未使用的 Writer 因缺少 output_dir 而失败。
func Assemble(cfg Config) (attack.Components, attack.Settings, error) {
	var comp attack.Components
	if err := Validate(cfg); err != nil {
		return comp, attack.Settings{}, fmt.Errorf("%w: %v", contract.ErrInvalidInput, err)
	}
	d := Defaults().Components
	var err error

	if comp.Reader, err = registry.Reader[effName(cfg.Components.Reader, d.Reader)](cfg.Options.Reader); err != nil {
		return comp, attack.Settings{}, fmt.Errorf("reader: %w", err)
	}
	if comp.CipherParser, err = registry.CipherParser[effName(cfg.Components.CipherParser, d.CipherParser)](cfg.Options.CipherParser); err != nil {
		return comp, attack.Settings{}, fmt.Errorf("cipher_parser: %w", err)
	}
	if comp.WordParser, err = registry.WordParser[effName(cfg.Components.WordParser, d.WordParser)](cfg.Options.WordParser); err != nil {
		return comp, attack.Settings{}, fmt.Errorf("word_parser: %w", err)
	}
	if comp.Sharder, err = registry.Sharder[effName(cfg.Components.Sharder, d.Sharder)](cfg.Options.Sharder); err != nil {
		return comp, attack.Settings{}, fmt.Errorf("sharder: %w", err)
	}
	if comp.Validator, err = registry.Validator[effName(cfg.Components.Validator, d.Validator)](cfg.Options.Validator); err != nil {
		return comp, attack.Settings{}, fmt.Errorf("validator: %w", err)
	}
	if cfg.IndexCache != "" || cfg.Report != "" {
		if comp.Writer, err = registry.Writer[effName(cfg.Components.Writer, d.Writer)](cfg.Options.Writer); err != nil {
			return comp, attack.Settings{}, fmt.Errorf("writer: %w", err)
		}
	}
	if cfg.IndexCache != "" {
		if comp.Codec, err = registry.Codec[effName(cfg.Components.Codec, d.Codec)](cfg.Options.Codec); err != nil {
			return comp, attack.Settings{}, fmt.Errorf("codec: %w", err)
		}
	}
	if cfg.Report != "" {
		if comp.Reporter, err = registry.Reporter[effName(cfg.Components.Reporter, d.Reporter)](cfg.Options.Reporter); err != nil {
			return comp, attack.Settings{}, fmt.Errorf("reporter: %w", err)
		}
	}

	set := attack.Settings{
		Ciphertexts:  cloneStrings(cfg.Ciphertexts),
		Dictionaries: cloneStrings(cfg.Dictionaries),
		Workers:      cfg.Workers,
		Engine: engine.Settings{
			MinLen:     cfg.MinLen,
			MaxOffsets: cfg.MaxOffsets,
			Quorum:     cfg.Quorum,
		},
		Matrix:     xormatrix.Options{TrimToShortest: cfg.TrimToShortest},
		IndexCache: cfg.IndexCache,
		Report:     cfg.Report,
	}
	return comp, set, nil
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}
