package diag

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	logBase    = "mtpcrib"
	logExt     = ".jsonl"
	activeName = logBase + logExt
)

// RotatingFile 把 JSON 日志行追加到 dir/mtpcrib.jsonl。
// 超过 maxBytes 时改名为 mtpcrib-<UTC 时间戳>.jsonl，只保留最近 keep 份历史。
type RotatingFile struct {
	mu       sync.Mutex
	dir      string
	maxBytes int64
	keep     int
	f        *os.File
	size     int64
}

// NewRotatingFile 惰性打开；maxBytes<=0 取 10 MiB，keep<=0 不清理历史。
func NewRotatingFile(dir string, maxBytes int64, keep int) *RotatingFile {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &RotatingFile{dir: dir, maxBytes: maxBytes, keep: keep}
}

// WriteLine 追加一行；b 不应含换行。
func (w *RotatingFile) WriteLine(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.open(); err != nil {
		return err
	}
	need := int64(len(b)) + 1
	// 超长单行直接落在空文件里
	if w.size > 0 && w.size+need > w.maxBytes {
		if err := w.roll(); err != nil {
			return err
		}
	}
	line := make([]byte, 0, need)
	line = append(append(line, b...), '\n')
	n, err := w.f.Write(line)
	w.size += int64(n)
	return err
}

func (w *RotatingFile) open() error {
	if w.f != nil {
		return nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(w.dir, activeName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w.f, w.size = f, 0
	if st, err := f.Stat(); err == nil {
		w.size = st.Size()
	}
	return nil
}

// roll 关闭并改名当前文件，随后重新打开并清理过旧的历史。
func (w *RotatingFile) roll() error {
	if w.f == nil {
		return w.open()
	}
	_ = w.f.Close()
	w.f = nil
	// 纳秒精度：同一秒内多次轮转不冲突
	stamp := time.Now().UTC().Format("20060102-150405.000000000")
	dst := filepath.Join(w.dir, fmt.Sprintf("%s-%s%s", logBase, stamp, logExt))
	if err := os.Rename(filepath.Join(w.dir, activeName), dst); err != nil {
		return fmt.Errorf("rotate log: %w", err)
	}
	if err := w.open(); err != nil {
		return err
	}
	w.prune()
	return nil
}

// prune 按名字（即时间戳）删除 keep 之外的历史文件，失败忽略。
func (w *RotatingFile) prune() {
	if w.keep <= 0 {
		return
	}
	ents, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	var old []string
	for _, e := range ents {
		n := e.Name()
		if n != activeName && strings.HasPrefix(n, logBase+"-") && strings.HasSuffix(n, logExt) {
			old = append(old, n)
		}
	}
	if len(old) <= w.keep {
		return
	}
	sort.Strings(old)
	for _, n := range old[:len(old)-w.keep] {
		_ = os.Remove(filepath.Join(w.dir, n))
	}
}

// Close 关闭文件句柄；之后的写入会重新打开。
func (w *RotatingFile) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}
