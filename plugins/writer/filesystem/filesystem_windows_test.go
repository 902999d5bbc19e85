//go:build windows

package filesystem

import (
	"context"
	"errors"
	"testing"

	"mtpcrib/pkg/contract"
)

// 盘符路径与越界路径既不能写也不能读回
func TestEscapingIDsWindows(t *testing.T) {
	w, _ := New(&Options{OutputDir: t.TempDir()})
	ctx := context.Background()
	for _, id := range []contract.ArtifactID{`C:\abs\index.sfx`, "..", ".", `..\index.sfx`} {
		if _, err := w.mapPath(id); !errors.Is(err, contract.ErrPathInvalid) {
			t.Fatalf("mapPath(%q) expect invalid, got %v", id, err)
		}
		if _, err := w.Open(ctx, id); !errors.Is(err, contract.ErrPathInvalid) {
			t.Fatalf("Open(%q) expect invalid, got %v", id, err)
		}
	}
}
