// Package attack 串联一次完整运行：
// 读取密文 → 合并词典 → 加载或构建后缀索引 → 构建异或矩阵 → 分片拖词 → 渲染并写出报告。
//
// 索引与矩阵在派发前一次性构建，之后只读共享；并发只发生在 dispatch 内部。
package attack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"slices"
	"strconv"
	"time"

	"mtpcrib/internal/corpus"
	"mtpcrib/internal/diag"
	"mtpcrib/internal/dispatch"
	"mtpcrib/internal/engine"
	"mtpcrib/internal/sfxindex"
	"mtpcrib/internal/xormatrix"
	"mtpcrib/pkg/contract"
)

// Components 聚合运行所需的原子组件。
// Codec/Writer/Reporter 仅在配置了 index_cache 或 report 时必需。
type Components struct {
	Reader       contract.Reader
	CipherParser contract.CipherParser
	WordParser   contract.WordParser
	Sharder      contract.Sharder
	Validator    contract.Validator
	Codec        contract.IndexCodec
	Writer       contract.Writer
	Reporter     contract.Reporter
}

// Settings 运行期配置。
type Settings struct {
	Ciphertexts  []string
	Dictionaries []string
	Workers      int
	Engine       engine.Settings
	Matrix       xormatrix.Options
	// IndexCache: 索引缓存工件名（相对 Writer 输出目录）；空表示不缓存。
	IndexCache string
	// Report: 报告工件名；空表示不写报告。
	Report string
}

// Outcome 一次运行的结果。运行失败时也尽量填充已完成部分。
type Outcome struct {
	Summary  contract.Summary
	Shards   []dispatch.ShardResult
	Tiers    []corpus.TierStats
	IndexHit bool // 索引来自缓存
}

// Run 执行完整流程。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (*Outcome, error) {
	if err := sanity(comp, set); err != nil {
		return nil, fmt.Errorf("sanity: %w", err)
	}
	start := time.Now()
	out := &Outcome{}

	cts, err := loadCiphertexts(ctx, comp, set.Ciphertexts, logger)
	if err != nil {
		return out, err
	}
	out.Summary.Ciphertexts = len(cts)

	mtimer := logger.Start("matrix", "build")
	m, err := xormatrix.Build(cts, set.Matrix)
	if err != nil {
		logger.Fail("matrix", "build failed", err, "", "")
		return out, fmt.Errorf("matrix build: %w", err)
	}
	mtimer.Finish("build", int64(len(m.Pairs())))
	out.Summary.Pairs = m.Labels()

	c, err := corpus.Load(ctx, comp.Reader, comp.WordParser, set.Dictionaries, logger)
	if err != nil {
		return out, fmt.Errorf("corpus: %w", err)
	}
	out.Tiers = c.Tiers
	out.Summary.Words = len(c.Words)

	idx, hit, err := loadIndex(ctx, comp, set.IndexCache, c.Words, logger)
	if err != nil {
		return out, err
	}
	out.IndexHit = hit

	res, runErr := dispatch.Run(ctx, c.Words, m, idx, comp.Validator,
		dispatch.Settings{Workers: set.Workers, Engine: set.Engine}, comp.Sharder, logger)
	out.Shards = res.Shards
	out.Summary.Matches = res.Matches
	out.Summary.Elapsed = time.Since(start)

	// 部分结果也写报告，便于排查
	if set.Report != "" {
		if err := writeReport(ctx, comp, set.Report, out.Summary, logger); err != nil {
			return out, errors.Join(runErr, err)
		}
	}
	if runErr != nil {
		return out, fmt.Errorf("dispatch: %w", runErr)
	}
	logger.InfoKV("attack", "summary", map[string]string{
		"ciphertexts": strconv.Itoa(out.Summary.Ciphertexts),
		"words":       strconv.Itoa(out.Summary.Words),
		"matches":     strconv.Itoa(len(out.Summary.Matches)),
		"index_cache": strconv.FormatBool(hit),
	})
	return out, nil
}

func sanity(c Components, s Settings) error {
	if c.Reader == nil || c.CipherParser == nil || c.WordParser == nil || c.Sharder == nil || c.Validator == nil {
		return fmt.Errorf("%w: attack: missing components", contract.ErrInvalidInput)
	}
	if len(s.Ciphertexts) == 0 {
		return fmt.Errorf("%w: attack: no ciphertext input", contract.ErrInvalidInput)
	}
	if s.IndexCache != "" && (c.Codec == nil || c.Writer == nil) {
		return fmt.Errorf("%w: attack: index_cache requires codec and writer", contract.ErrInvalidInput)
	}
	if s.Report != "" && (c.Reporter == nil || c.Writer == nil) {
		return fmt.Errorf("%w: attack: report requires reporter and writer", contract.ErrInvalidInput)
	}
	return nil
}

// loadCiphertexts 按 roots 顺序读取全部密文文件并拼接；至少需要两条。
func loadCiphertexts(ctx context.Context, comp Components, roots []string, logger *diag.Logger) ([]contract.Ciphertext, error) {
	var cts []contract.Ciphertext
	timer := logger.Start("reader", "ciphertexts")
	err := comp.Reader.Iterate(ctx, roots, func(fid contract.FileID, rc io.ReadCloser) error {
		defer rc.Close()
		got, err := comp.CipherParser.ParseCiphertexts(ctx, fid, rc)
		if err != nil {
			logger.Fail("parser", "parse ciphertexts failed", err, string(fid), "")
			return err
		}
		for i, ct := range got {
			logger.Debug("parser", "ciphertext", string(fid), "", map[string]string{
				"n":   strconv.Itoa(len(cts) + i + 1),
				"len": strconv.Itoa(len(ct)),
			})
		}
		cts = append(cts, got...)
		diag.GetTerminal().Input("cipher", string(fid), len(got))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ciphertexts: %w", err)
	}
	if len(cts) < 2 {
		err := fmt.Errorf("%w: need at least two ciphertexts, got %d", contract.ErrInvalidInput, len(cts))
		logger.Fail("reader", "too few ciphertexts", err, "", "")
		return nil, err
	}
	timer.Finish("ciphertexts", int64(len(cts)))
	return cts, nil
}

// loadIndex 优先读取缓存；缓存缺失、损坏或与当前词典不一致时重建并回写。
func loadIndex(ctx context.Context, comp Components, cache string, words []string, logger *diag.Logger) (*sfxindex.Index, bool, error) {
	if cache != "" {
		if idx, ok := readCache(ctx, comp, cache, words, logger); ok {
			return idx, true, nil
		}
	}
	timer := logger.StartWithKV("index", "build", "", "", map[string]string{"words": strconv.Itoa(len(words))})
	idx := sfxindex.Build(words)
	timer.Finish("build", int64(idx.Len()))
	if cache == "" {
		return idx, false, nil
	}

	wtimer := logger.StartWith("writer", "index_cache", cache, "")
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(comp.Codec.Encode(pw, idx.Words(), idx.Order()))
	}()
	if err := comp.Writer.Write(ctx, contract.ArtifactID(cache), pr); err != nil {
		_ = pr.CloseWithError(err)
		logger.Fail("writer", "index cache write failed", err, cache, "")
		return nil, false, fmt.Errorf("index cache write: %w", err)
	}
	wtimer.Finish("index_cache", int64(idx.Len()))
	return idx, false, nil
}

// readCache 返回可用的缓存索引；任何问题都只记录日志并回退到重建。
func readCache(ctx context.Context, comp Components, cache string, words []string, logger *diag.Logger) (*sfxindex.Index, bool) {
	opener, ok := comp.Writer.(contract.ArtifactOpener)
	if !ok {
		return nil, false
	}
	rc, err := opener.Open(ctx, contract.ArtifactID(cache))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("index", string(diag.Classify(err)), "index cache unreadable: "+err.Error(), cache, nil)
		}
		return nil, false
	}
	defer rc.Close()
	timer := logger.StartWith("index", "load", cache, "")
	cw, order, err := comp.Codec.Decode(rc)
	if err != nil {
		logger.Warn("index", string(diag.Classify(err)), "index cache rejected: "+err.Error(), cache, nil)
		return nil, false
	}
	if !slices.Equal(cw, words) {
		logger.Warn("index", "stale", "index cache built from a different dictionary", cache, nil)
		return nil, false
	}
	idx, err := sfxindex.FromOrder(cw, order)
	if err != nil {
		logger.Warn("index", string(diag.Classify(err)), "index cache rejected: "+err.Error(), cache, nil)
		return nil, false
	}
	timer.Finish("load", int64(idx.Len()))
	return idx, true
}

func writeReport(ctx context.Context, comp Components, id string, s contract.Summary, logger *diag.Logger) error {
	rtimer := logger.Start("reporter", "render")
	r, err := comp.Reporter.Render(ctx, s)
	if err != nil {
		logger.Fail("reporter", "render failed", err, id, "")
		return fmt.Errorf("reporter render: %w", err)
	}
	rtimer.Finish("render", int64(len(s.Matches)))
	wtimer := logger.StartWith("writer", "report", id, "")
	if err := comp.Writer.Write(ctx, contract.ArtifactID(id), r); err != nil {
		logger.Fail("writer", "report write failed", err, id, "")
		return fmt.Errorf("writer write: %w", err)
	}
	wtimer.Finish("report", 1)
	return nil
}
