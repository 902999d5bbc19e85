package diag

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mtpcrib/pkg/contract"
)

// UT-DIAG-01: 日志轮转写入
func TestRotatingFile(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 30, 0)
	if err := w.WriteLine([]byte("first line that is very long")); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if err := w.WriteLine([]byte("second")); err != nil {
		t.Fatalf("第二次写入失败: %v", err)
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("读取目录失败: %v", err)
	}
	if len(files) < 2 {
		t.Fatalf("应存在轮转文件, got %d", len(files))
	}
}

// 当前文件名与时间戳文件同时存在
func TestRotatingFileRotateFiles(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 10, 0)
	for i := 0; i < 5; i++ {
		if err := w.WriteLine([]byte("xxxxxxxxxxxxxxxxxx")); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	hasCurrent, hasRotated := false, false
	for _, e := range ents {
		if e.Name() == activeName {
			hasCurrent = true
		}
		if strings.HasPrefix(e.Name(), "mtpcrib-") && strings.HasSuffix(e.Name(), logExt) {
			hasRotated = true
		}
	}
	if !hasCurrent || !hasRotated {
		t.Fatalf("expect both current and rotated files, got current=%v rotated=%v", hasCurrent, hasRotated)
	}
}

// 空文件遇到超限单行不轮转
func TestRotatingFileOversizedFirstLine(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 4, 0)
	if err := w.WriteLine([]byte("much longer than four")); err != nil {
		t.Fatalf("write: %v", err)
	}
	ents, _ := os.ReadDir(dir)
	if len(ents) != 1 {
		t.Fatalf("首行不应触发轮转, got %d files", len(ents))
	}
	_ = w.Close()
}

func TestRotatingFileEnsureAndRotate(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 1024, 0)
	if err := w.open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	if w.f == nil {
		t.Fatalf("file should be opened")
	}
	if err := w.roll(); err != nil {
		t.Fatalf("roll: %v", err)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(ents) < 2 {
		t.Fatalf("expect >=2 files, got %d", len(ents))
	}
	// f==nil 时 roll 退化为 open
	_ = w.Close()
	if err := w.roll(); err != nil {
		t.Fatalf("roll after close: %v", err)
	}
}

// 历史文件只保留最近 keep 份
func TestRotatingFileKeep(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 8, 2)
	for i := 0; i < 6; i++ {
		if err := w.WriteLine([]byte("0123456789")); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	_ = w.Close()
	ents, _ := os.ReadDir(dir)
	rotated := 0
	for _, e := range ents {
		if e.Name() != activeName {
			rotated++
		}
	}
	if rotated != 2 {
		t.Fatalf("应保留 2 份历史, got %d", rotated)
	}
}

// UT-DIAG-02: 指标累加与快照
func TestMetrics(t *testing.T) {
	ResetMetrics()
	IncOp("comp", "stage", "success")
	IncOp("comp", "stage", "success")
	IncError("comp", "input")
	ObserveDuration("comp", "stage", 7)
	got := map[string]int64{}
	for _, m := range Snapshot() {
		got[m.Name] = m.Value
	}
	if got["op_total{comp,stage,success}"] != 2 {
		t.Fatalf("op_total: %+v", got)
	}
	if got["error_total{comp,input}"] != 1 || got["op_duration_ms{comp,stage}"] != 7 {
		t.Fatalf("metrics: %+v", got)
	}
	ResetMetrics()
	if len(Snapshot()) != 0 {
		t.Fatalf("reset 后应为空")
	}
}

// 错误分类
func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, CodeUnknown},
		{"cancel", context.Canceled, CodeCancel},
		{"deadline", fmt.Errorf("x: %w", context.DeadlineExceeded), CodeCancel},
		{"invariant", fmt.Errorf("engine: %w", contract.ErrInvariantViolation), CodeInvariant},
		{"offset", contract.ErrOffsetRange, CodeInvariant},
		{"length", fmt.Errorf("matrix: %w", contract.ErrLengthMismatch), CodeInput},
		{"malformed", contract.ErrMalformedLine, CodeInput},
		{"blob", contract.ErrCorruptBlob, CodeInput},
		{"path", contract.ErrPathInvalid, CodeInput},
		{"io", &fs.PathError{Op: "open", Path: "/", Err: errors.New("x")}, CodeIO},
		{"notexist", fs.ErrNotExist, CodeIO},
		{"other", errors.New("other"), CodeUnknown},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Classify(c.err); got != c.want {
				t.Fatalf("Classify(%v)=%s want %s", c.err, got, c.want)
			}
		})
	}
}

// Logger 基本流程（stderr 后备）
func TestLogger(t *testing.T) {
	l := NewLoggerAt("corr", "debug", "")
	timer := l.Start("comp", "msg")
	timer.Finish("ok", 1)
	timer = l.StartWith("comp", "msg", "src", "0")
	timer.Finish("ok", 1)
	timer = l.StartWithKV("comp", "msg", "src", "0", map[string]string{"k": "v"})
	timer.Finish("ok", 1)
	l.Error("comp", "code", "msg", nil)
	l.ErrorWith("comp", "code", "msg", nil, "src", "0")
	l.Warn("corpus", string(CodeInput), "empty", "src", nil)
	l.InfoFinish("comp", "msg", time.Now(), 1)
	l.InfoKV("comp", "summary", map[string]string{"k": "v"})
	l.Debug("comp", "msg", "src", "0", nil)
	if code := l.Fail("engine", "run failed", contract.ErrInvariantViolation, "", "3"); code != CodeInvariant {
		t.Fatalf("Fail 应返回分类码, got %s", code)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

// nil Logger 全部 no-op
func TestLoggerNilReceiver(t *testing.T) {
	var l *Logger
	l.Start("comp", "msg").Finish("ok", 1)
	l.Error("comp", "code", "msg", nil)
	l.Warn("comp", "code", "msg", "", nil)
	_ = l.Fail("comp", "msg", errors.New("x"), "", "")
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

// sink 写入成功路径
func TestLoggerWithSink(t *testing.T) {
	dir := t.TempDir()
	l := NewLoggerAt("corr", "info", dir)
	l.Start("comp", "msg").Finish("ok", 1)
	l.Error("comp", "code", "msg", nil)
	_ = l.Close()
	b, err := os.ReadFile(filepath.Join(dir, activeName))
	if err != nil {
		t.Fatalf("log file not found: %v", err)
	}
	if !strings.Contains(string(b), `"corr_id":"corr"`) || strings.Count(string(b), "\n") != 3 {
		t.Fatalf("unexpected log content: %s", b)
	}
}

// Level.String 与 parseLevel 分支，以及 lv<level 过滤
func TestLoggerLevelsAndFilter(t *testing.T) {
	if Warn.String() != "warn" {
		t.Fatalf("warn string")
	}
	var unknown Level = 12345
	if unknown.String() != "info" {
		t.Fatalf("default string")
	}
	dir := t.TempDir()
	l := NewLoggerAt("c", "warn", dir)
	l.Debug("comp", "msg", "f", "b", nil)
	l.Start("comp", "msg").Finish("ok", 0)
	_ = l.Close()
	if _, err := os.Stat(filepath.Join(dir, activeName)); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("warn 级别下 info/debug 应被过滤, stat err=%v", err)
	}
	var tnil *Timer
	tnil.Finish("x", 0)
	(&Timer{}).Finish("x", 0)
}

func TestNowUTC(t *testing.T) {
	if NowUTC() == "" {
		t.Fatalf("应返回时间字符串")
	}
}

// UT-DIAG-03: 终端（非 TTY）关键节点输出
func TestTerminalNonTTYFlow(t *testing.T) {
	var sb strings.Builder
	term := NewTerminal(&sb, true)
	if term.isTTY {
		t.Fatalf("expect non-tty")
	}
	term.Input("cipher", "data/set1/ciphers.txt", 3)
	term.RunStart(4, 2, 1000)
	term.ShardFinish(0, 500, 2, false)
	term.ShardFinish(1, 500, 0, true)
	term.RunFinish(false, 2, 41300*time.Millisecond)

	out := sb.String()
	if strings.Contains(out, "\r") {
		t.Fatalf("non-tty should not contain carriage returns: %q", out)
	}
	for _, want := range []string{
		"[cipher] ciphers.txt | 3",
		"[run] worker=4 | 分片=2 | 词=1000",
		"[shard 0] done | 词 500 | 命中 2",
		"[shard 1] fail | 词 500 | 命中 0",
		"[fail] 全部完成 | 分片 2 | 命中 2 | 总用时 41.3s",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

// UT-DIAG-04: 终端（TTY）进度节流与清尾
func TestTerminalTTYProgressThrottleAndClear(t *testing.T) {
	var sb strings.Builder
	term := NewTerminal(&sb, true)
	term.isTTY = true
	term.RunStart(2, 4, 40)

	term.ShardFinish(0, 10, 1, false)
	first := sb.String()
	if !strings.Contains(first, "\r[run] 分片 1/4") {
		t.Fatalf("first progress should be inline with CR: %q", first)
	}
	// 立即第二次：应被节流（<100ms）
	term.ShardFinish(1, 10, 0, false)
	if sb.String() != first {
		t.Fatalf("second progress should be throttled")
	}
	// 最后一个分片总是刷新
	term.ShardFinish(2, 10, 0, false)
	term.ShardFinish(3, 10, 0, true)
	if !strings.Contains(sb.String(), "分片 4/4 | 命中 1 | 错误 1") {
		t.Fatalf("last shard should flush: %q", sb.String())
	}
	term.RunFinish(true, 1, 2200*time.Millisecond)
	final := sb.String()
	idx := strings.LastIndex(final, "[ok]")
	if idx < 0 {
		t.Fatalf("finish line missing: %q", final)
	}
	seg := final[:idx]
	cr := strings.LastIndex(seg, "\r")
	if cr < 0 || !strings.Contains(seg[cr+1:], " ") {
		t.Fatalf("clear tail should write spaces after CR: %q", seg)
	}
}

// UT-DIAG-05: 写失败降级为禁用态
type flakyWriter struct{ fail bool }

func (w *flakyWriter) Write(p []byte) (int, error) {
	if w.fail {
		w.fail = false
		return 0, fmt.Errorf("boom")
	}
	return len(p), nil
}

func TestTerminalDisableOnWriteError(t *testing.T) {
	fw := &flakyWriter{fail: true}
	term := NewTerminal(fw, true)
	term.RunStart(1, 1, 1)
	if term.enabled {
		t.Fatalf("terminal should be disabled after write error")
	}
	term.Input("x", "a", 0)
	term.ShardFinish(0, 0, 0, false)
	term.RunFinish(true, 0, 0)
}

func TestTerminalInlineWriteError(t *testing.T) {
	fw := &flakyWriter{}
	term := NewTerminal(fw, true)
	term.isTTY = true
	term.RunStart(1, 2, 2)
	fw.fail = true
	term.ShardFinish(0, 1, 0, false)
	if term.enabled {
		t.Fatalf("terminal should be disabled after inline error")
	}
}

func TestNewTerminalCIEnv(t *testing.T) {
	t.Setenv("CI", "true")
	term := NewTerminal(os.Stderr, true)
	if term.isTTY {
		t.Fatalf("CI env should force non-tty")
	}
}

func TestTerminalNilReceiverNoop(t *testing.T) {
	var tn *Terminal
	tn.Input("a", "b", 1)
	tn.RunStart(1, 1, 1)
	tn.ShardFinish(0, 0, 0, false)
	tn.RunFinish(true, 0, 0)
}

// UT-DIAG-06: 工具函数
func TestHelpers(t *testing.T) {
	if got := shortenBase("/x/y/这是一个很长的文件名用于截断测试abcdefghijk.txt", 10); visLen(got) != 10 {
		t.Fatalf("shortenBase: %q", got)
	}
	if shortenBase("x", 0) != "" {
		t.Fatalf("shortenBase max<=0 should be empty")
	}
	if safe("a\nb\rc") != "a b c" {
		t.Fatalf("safe replace failed")
	}
	if formatDur(0) != "0ms" {
		t.Fatalf("formatDur 0ms failed")
	}
	if formatDur(1500*time.Millisecond) != "1.5s" {
		t.Fatalf("formatDur 1.5s failed: %s", formatDur(1500*time.Millisecond))
	}
	SetTerminal(nil)
	if GetTerminal() != nil {
		t.Fatalf("expected nil terminal")
	}
	SetTerminal(NewTerminal(os.Stderr, false))
	if GetTerminal() == nil {
		t.Fatalf("expected non-nil terminal")
	}
	SetTerminal(nil)
}
