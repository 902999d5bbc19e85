//go:build !windows

package filesystem

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"mtpcrib/pkg/contract"
)

// 非常规文件被忽略（mkfifo 仅 Unix）
func TestWalkDirNonRegular(t *testing.T) {
	root := t.TempDir()
	if err := syscall.Mkfifo(filepath.Join(root, "fifo"), 0o644); err != nil {
		t.Fatalf("mkfifo: %v", err)
	}
	if got := collect(t, New(nil), root); len(got) != 0 {
		t.Fatalf("non-regular should skip, visited %#v", got)
	}
}

func TestIterateSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "full.txt")
	write(t, target, "the\nand\n")
	link := filepath.Join(dir, "2-full.txt")
	os.Symlink(target, link)
	got := collect(t, New(nil), link)
	if len(got) != 1 || !strings.Contains(got[0], "2-full.txt") {
		t.Fatalf("symlink not visited: %#v", got)
	}
}

// 指向目录的符号链接：作为 root 或在目录内都不跟随
func TestIterateSymlinkDir(t *testing.T) {
	root := t.TempDir()
	realDir := filepath.Join(root, "real")
	write(t, filepath.Join(realDir, "1-common.txt"), "cat\n")
	link := filepath.Join(root, "tiers")
	os.Symlink(realDir, link)
	if got := collect(t, New(nil), link); len(got) != 0 {
		t.Fatalf("dir symlink visited: %#v", got)
	}
	if got := collect(t, New(nil), root); len(got) != 1 || got[0] != "1-common.txt" {
		t.Fatalf("unexpected files %#v", got)
	}
}

func TestIterateSymlinkDangling(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "dangling")
	os.Symlink(filepath.Join(dir, "no"), link)
	err := New(nil).Iterate(context.Background(), []string{link}, func(contract.FileID, io.ReadCloser) error { return nil })
	if err == nil {
		t.Fatalf("expect error for dangling symlink")
	}
}
