package diag

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// 级别定义
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return "info"
	}
}

// DefaultLogDir 为日志默认目录（相对工作目录）。
const DefaultLogDir = "logs"

// Logger 为最小结构化日志器：单行 JSON 写入轮转文件，失败时回落 stderr。
// 所有方法对 nil 接收者安全，调用方无需判空。
type Logger struct {
	corrID string
	level  Level
	sink   *RotatingFile
	mu     sync.Mutex
}

// NewLogger 以 level 初始化，写入 DefaultLogDir，10 MiB 轮转，保留 5 份历史。
func NewLogger(corrID, level string) *Logger {
	return NewLoggerAt(corrID, level, DefaultLogDir)
}

// NewLoggerAt 同 NewLogger，但指定日志目录；dir 为空时只写 stderr。
func NewLoggerAt(corrID, level, dir string) *Logger {
	lvl := parseLevel(strings.TrimSpace(level))
	var sink *RotatingFile
	if strings.TrimSpace(dir) != "" {
		sink = NewRotatingFile(dir, 10<<20, 5)
	}
	return &Logger{corrID: corrID, level: lvl, sink: sink}
}

// Close 释放文件句柄。
func (l *Logger) Close() error {
	if l == nil || l.sink == nil {
		return nil
	}
	return l.sink.Close()
}

func parseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return Debug
	case "warn":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

// Event 为标准事件结构。
type Event struct {
	Level  string            `json:"level"`
	TS     string            `json:"ts"`
	CorrID string            `json:"corr_id"`
	Comp   string            `json:"comp"`
	Stage  string            `json:"stage"` // start|finish|warn|error
	Code   string            `json:"code,omitempty"`
	DurMS  int64             `json:"dur_ms,omitempty"`
	Count  int64             `json:"count,omitempty"`
	Source string            `json:"source,omitempty"`
	Shard  string            `json:"shard,omitempty"`
	Msg    string            `json:"msg"`
	KV     map[string]string `json:"kv,omitempty"`
}

func (l *Logger) log(lv Level, ev Event) {
	if l == nil || lv < l.level {
		return
	}
	ev.Level = lv.String()
	ev.TS = NowUTC()
	ev.CorrID = l.corrID
	b, _ := json.Marshal(ev)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sink == nil {
		_, _ = os.Stderr.Write(append(b, '\n'))
		return
	}
	if err := l.sink.WriteLine(b); err != nil {
		fmt.Fprintf(os.Stderr, "logger sink error: %v\n", err)
		_, _ = os.Stderr.Write(append(b, '\n'))
	}
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	return l.StartWithKV(comp, msg, "", "", nil)
}

// StartWith 记录带 source/shard 的 start。
func (l *Logger) StartWith(comp, msg, source, shard string) *Timer {
	return l.StartWithKV(comp, msg, source, shard, nil)
}

// StartWithKV 记录带 source/shard 与键值的 start。
func (l *Logger) StartWithKV(comp, msg, source, shard string, kv map[string]string) *Timer {
	l.log(Info, Event{Comp: comp, Stage: "start", Source: source, Shard: shard, Msg: msg, KV: kv})
	return &Timer{l: l, comp: comp, source: source, shard: shard, t0: time.Now()}
}

// Error 记录 error 事件。
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	l.ErrorWithKV(comp, code, msg, durSince, "", "", nil)
}

// ErrorWith 支持 source/shard。
func (l *Logger) ErrorWith(comp, code, msg string, durSince *time.Time, source, shard string) {
	l.ErrorWithKV(comp, code, msg, durSince, source, shard, nil)
}

// ErrorWithKV 支持附带键值对。
func (l *Logger) ErrorWithKV(comp, code, msg string, durSince *time.Time, source, shard string, kv map[string]string) {
	var dur int64
	if durSince != nil {
		dur = time.Since(*durSince).Milliseconds()
	}
	l.log(Error, Event{Comp: comp, Stage: "error", Code: code, DurMS: dur, Msg: msg, Source: source, Shard: shard, KV: kv})
}

// Fail 分类 err，写 error 事件并累加指标；返回分类码。
// err 文本写入 kv["err"]。
func (l *Logger) Fail(comp, msg string, err error, source, shard string) Code {
	code := Classify(err)
	var kv map[string]string
	if err != nil {
		kv = map[string]string{"err": err.Error()}
	}
	l.ErrorWithKV(comp, string(code), msg, nil, source, shard, kv)
	IncOp(comp, "error", "error")
	if code != CodeUnknown {
		IncError(comp, string(code))
	}
	return code
}

// Warn 记录 warn 事件（非致命提示，例如空词典、跳过的行）。
func (l *Logger) Warn(comp, code, msg, source string, kv map[string]string) {
	l.log(Warn, Event{Comp: comp, Stage: "warn", Code: code, Source: source, Msg: msg, KV: kv})
}

// InfoFinish 在已有起点的情况下记录 finish。
func (l *Logger) InfoFinish(comp, msg string, start time.Time, count int64) {
	l.log(Info, Event{Comp: comp, Stage: "finish", DurMS: time.Since(start).Milliseconds(), Count: count, Msg: msg})
}

// InfoKV 记录一条带键值的 info 事件（汇总、统计）。
func (l *Logger) InfoKV(comp, msg string, kv map[string]string) {
	l.log(Info, Event{Comp: comp, Stage: "finish", Msg: msg, KV: kv})
}

// Debug 输出调试事件（仅在 level=debug 时生效）。
func (l *Logger) Debug(comp, msg, source, shard string, kv map[string]string) {
	l.log(Debug, Event{Comp: comp, Stage: "start", Source: source, Shard: shard, Msg: msg, KV: kv})
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l      *Logger
	comp   string
	source string
	shard  string
	t0     time.Time
}

// Finish 记录 finish 与耗时，并累加成功指标。
func (t *Timer) Finish(msg string, count int64) {
	if t == nil || t.l == nil {
		return
	}
	dur := time.Since(t.t0).Milliseconds()
	t.l.log(Info, Event{Comp: t.comp, Stage: "finish", DurMS: dur, Count: count, Source: t.source, Shard: t.shard, Msg: msg})
	IncOp(t.comp, "finish", "success")
	ObserveDuration(t.comp, msg, dur)
}
