// Package corpus 合并分层词表为去重后的词典。
//
// 层按给定顺序处理：先出现的层优先，后续层中已存在的词不重复加入。
// 词典保持首次出现顺序（切分前由 sharder 排序）。
package corpus

import (
	"context"
	"fmt"
	"io"
	"strconv"

	mapset "github.com/deckarep/golang-set/v2"

	"mtpcrib/internal/diag"
	"mtpcrib/pkg/contract"
)

// TierStats 单层统计。
type TierStats struct {
	Source     string
	Read       int // 解析出的词数（已过滤短词）
	Added      int // 新增到词典的词数
	Duplicates int // 已在更早层或本层出现过
	Skipped    int // 非法 UTF-8 行
}

// Corpus 合并结果。
type Corpus struct {
	Words []string
	Tiers []TierStats
}

// Merger 增量合并各层。零值不可用，使用 NewMerger。
type Merger struct {
	seen  mapset.Set[string]
	words []string
	tiers []TierStats
}

// NewMerger 创建空的合并器。
func NewMerger() *Merger {
	return &Merger{seen: mapset.NewThreadUnsafeSet[string]()}
}

// Add 追加一层。
func (m *Merger) Add(source string, words []string, skipped int) TierStats {
	st := TierStats{Source: source, Read: len(words), Skipped: skipped}
	for _, w := range words {
		if !m.seen.Add(w) {
			st.Duplicates++
			continue
		}
		m.words = append(m.words, w)
		st.Added++
	}
	m.tiers = append(m.tiers, st)
	return st
}

// Corpus 返回当前合并结果（切片为副本）。
func (m *Merger) Corpus() *Corpus {
	return &Corpus{
		Words: append([]string(nil), m.words...),
		Tiers: append([]TierStats(nil), m.tiers...),
	}
}

// Load 通过 reader 依次读取 roots（目录内按文件名排序，每个文件为一层），
// 用 parser 解析并合并。词典为空时仅记录 warn，不返回错误。
func Load(ctx context.Context, reader contract.Reader, parser contract.WordParser, roots []string, logger *diag.Logger) (*Corpus, error) {
	if reader == nil || parser == nil {
		return nil, fmt.Errorf("%w: corpus: missing reader or parser", contract.ErrInvalidInput)
	}
	m := NewMerger()
	timer := logger.Start("corpus", "load")
	err := reader.Iterate(ctx, roots, func(fid contract.FileID, rc io.ReadCloser) error {
		defer rc.Close()
		words, skipped, err := parser.ParseWords(ctx, fid, rc)
		if err != nil {
			logger.Fail("parser", "parse words failed", err, string(fid), "")
			return fmt.Errorf("parse words %s: %w", fid, err)
		}
		st := m.Add(string(fid), words, skipped)
		if skipped > 0 {
			logger.Warn("parser", string(diag.Classify(contract.ErrDecodeSkipped)), contract.ErrDecodeSkipped.Error(),
				string(fid), map[string]string{"lines": strconv.Itoa(skipped)})
		}
		logger.Debug("corpus", "tier", string(fid), "", map[string]string{
			"read":       strconv.Itoa(st.Read),
			"added":      strconv.Itoa(st.Added),
			"duplicates": strconv.Itoa(st.Duplicates),
		})
		diag.GetTerminal().Input("tier", string(fid), st.Added)
		return nil
	})
	if err != nil {
		return nil, err
	}
	c := m.Corpus()
	if len(c.Words) == 0 {
		logger.Warn("corpus", string(diag.Classify(contract.ErrEmptyCorpus)), contract.ErrEmptyCorpus.Error(), "", nil)
	}
	timer.Finish("load", int64(len(c.Words)))
	return c, nil
}
