// Package dispatch 将词典切分为分片，并发运行拖词引擎并归并结果。
//
// - 单点并发：仅此层创建 goroutine；引擎、索引与异或矩阵均为同步只读组件。
// - 私有累积：每个 worker 只写自己的结果槽位，join 之后单线程归并。
// - 首错：join 后按分片顺序返回第一个错误，连同其余分片的部分结果。
package dispatch

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"mtpcrib/internal/diag"
	"mtpcrib/internal/engine"
	"mtpcrib/internal/xormatrix"
	"mtpcrib/pkg/contract"
)

// Settings 运行期参数。
type Settings struct {
	// Workers: 分片数（即并发 worker 数）；<=0 时取 runtime.NumCPU()。
	Workers int
	Engine  engine.Settings
}

// ShardResult 单个分片的执行结果。
type ShardResult struct {
	Index   int
	Words   int
	Matches []contract.Match
	Elapsed time.Duration
	Err     error
}

// Result 归并后的结果。Matches 按分片顺序拼接；分片内按词字典序。
type Result struct {
	Matches []contract.Match
	Shards  []ShardResult
	Elapsed time.Duration
}

// Run 切分词典并发执行，阻塞直到全部 worker 结束。
// ctx 只在派发前检查一次；已启动的分片总会跑完。
func Run(ctx context.Context, words []string, m *xormatrix.Matrix, oracle contract.SubstringOracle,
	v contract.Validator, set Settings, sharder contract.Sharder, logger *diag.Logger) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if sharder == nil {
		return Result{}, fmt.Errorf("%w: dispatch: missing sharder", contract.ErrInvalidInput)
	}
	eng, err := engine.New(m, oracle, v, set.Engine)
	if err != nil {
		return Result{}, err
	}
	n := set.Workers
	if n <= 0 {
		n = runtime.NumCPU()
	}

	start := time.Now()
	ptimer := logger.StartWith("sharder", "partition", "", "")
	shards, err := sharder.Partition(words, n)
	if err != nil {
		logger.Fail("sharder", "partition failed", err, "", "")
		return Result{}, fmt.Errorf("sharder partition: %w", err)
	}
	ptimer.Finish("partition", int64(len(shards)))

	t := diag.GetTerminal()
	t.RunStart(n, len(shards), len(words))

	results := make([]ShardResult, len(shards))
	var wg sync.WaitGroup
	wg.Add(len(shards))
	for i := range shards {
		go func(i int) {
			defer wg.Done()
			results[i] = runShard(eng, shards[i], logger)
			t.ShardFinish(i, results[i].Words, len(results[i].Matches), results[i].Err != nil)
		}(i)
	}
	wg.Wait()

	res := Result{Shards: results}
	var firstErr error
	for _, r := range results {
		res.Matches = append(res.Matches, r.Matches...)
		if r.Err != nil && firstErr == nil {
			firstErr = fmt.Errorf("shard %d: %w", r.Index, r.Err)
		}
	}
	res.Elapsed = time.Since(start)
	return res, firstErr
}

// runShard 在当前 goroutine 执行一个分片；panic 转为该分片的错误（带栈）。
func runShard(eng *engine.Engine, sh contract.Shard, logger *diag.Logger) (out ShardResult) {
	out = ShardResult{Index: sh.Index, Words: len(sh.Words)}
	id := strconv.Itoa(sh.Index)
	timer := logger.StartWithKV("worker", "drag", "", id, map[string]string{"words": strconv.Itoa(len(sh.Words))})
	t0 := time.Now()
	defer func() {
		out.Elapsed = time.Since(t0)
		if r := recover(); r != nil {
			out.Err = errors.WithStack(fmt.Errorf("%w: worker panic: %v", contract.ErrInvariantViolation, r))
		}
		if out.Err != nil {
			logger.Fail("worker", "drag failed", out.Err, "", id)
			return
		}
		timer.Finish("drag", int64(len(out.Matches)))
	}()
	out.Matches, out.Err = eng.Run(sh.Words)
	return out
}
