package localfs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/covertfs/internal/medium"
	"github.com/danmuck/covertfs/internal/testutil/mediumtest"
	"github.com/danmuck/covertfs/internal/testutil/testlog"
)

func newStore(t *testing.T, ids []string, opts Options) *Store {
	t.Helper()
	dir := t.TempDir()
	for _, id := range ids {
		if err := os.WriteFile(filepath.Join(dir, id), nil, 0o644); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
	s, err := Open(dir, opts)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func fieldsSupported(t *testing.T) bool {
	t.Helper()
	s := newStore(t, []string{"probe"}, Options{})
	err := s.WriteFields(context.Background(), "probe", map[string]string{"probe": "1"}, nil)
	if errors.Is(err, medium.ErrFieldsUnsupported) {
		return false
	}
	if err != nil {
		t.Fatalf("probe fields: %v", err)
	}
	return true
}

func TestLocalFSConformance(t *testing.T) {
	testlog.Start(t)
	opts := mediumtest.Options{SkipFields: !fieldsSupported(t)}
	if opts.SkipFields {
		t.Logf("user xattrs unsupported under %s; field checks skipped", os.TempDir())
	}
	mediumtest.Run(t, func(t *testing.T, ids []string) medium.Medium {
		return newStore(t, ids, Options{})
	}, opts)
}

func TestListSkipsHiddenAndDirectories(t *testing.T) {
	testlog.Start(t)
	s := newStore(t, []string{"b1", "a0", ".hidden"}, Options{})
	if err := os.Mkdir(filepath.Join(s.Root(), "dir"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	got, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0] != "a0" || got[1] != "b1" {
		t.Fatalf("list got=%v", got)
	}
	if _, err := s.ReadContent(context.Background(), "dir"); !errors.Is(err, medium.ErrNotFound) {
		t.Fatalf("directory should not be an object: %v", err)
	}
	if _, err := s.ReadContent(context.Background(), "../etc"); !errors.Is(err, medium.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

func TestWriteContentKeepsMode(t *testing.T) {
	testlog.Start(t)
	s := newStore(t, []string{"a0"}, Options{})
	path := filepath.Join(s.Root(), "a0")
	if err := os.Chmod(path, 0o600); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	if err := s.WriteContent(context.Background(), "a0", []byte("padded   ")); err != nil {
		t.Fatalf("write: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode got=%v", info.Mode().Perm())
	}
	entries, _ := os.ReadDir(s.Root())
	for _, e := range entries {
		if e.Name() != "a0" && e.Name() != lockName {
			t.Fatalf("temporary file left behind: %s", e.Name())
		}
	}
}

func TestCreate(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	s := newStore(t, nil, Options{})
	if err := s.Create(ctx, "a0.txt", []byte("lorem")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Create(ctx, "a0.txt", nil); !errors.Is(err, medium.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	got, err := s.ReadContent(ctx, "a0.txt")
	if err != nil || string(got) != "lorem" {
		t.Fatalf("read got=%q err=%v", got, err)
	}
}

func TestWatchSignalsChanges(t *testing.T) {
	testlog.Start(t)
	s := newStore(t, []string{"a0"}, Options{Watch: true})
	if err := s.WriteContent(context.Background(), "a0", []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case <-s.Changes():
	case <-time.After(5 * time.Second):
		t.Fatalf("no change hint after write")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
