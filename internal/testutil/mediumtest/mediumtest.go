// Package mediumtest is a conformance suite every medium implementation runs.
package mediumtest

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/danmuck/covertfs/internal/medium"
)

// NewMedium constructs a fresh medium holding exactly ids, each with empty
// content and no fields. The returned medium MUST be isolated from other tests.
type NewMedium func(t *testing.T, ids []string) medium.Medium

// Options toggles checks for optional capabilities.
type Options struct {
	SkipFields bool
}

func Run(t *testing.T, newMedium NewMedium, opts Options) {
	t.Helper()
	ctx := context.Background()

	t.Run("ListSorted", func(t *testing.T) {
		m := newMedium(t, []string{"c2", "a0", "b1"})
		got, err := m.List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		want := []string{"a0", "b1", "c2"}
		if len(got) != len(want) {
			t.Fatalf("List got=%v want=%v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("List got=%v want=%v", got, want)
			}
		}
		again, err := m.List(ctx)
		if err != nil {
			t.Fatalf("List(2) failed: %v", err)
		}
		for i := range got {
			if got[i] != again[i] {
				t.Fatalf("List unstable: %v vs %v", got, again)
			}
		}
	})

	t.Run("ContentRoundTrip", func(t *testing.T) {
		m := newMedium(t, []string{"a0"})
		want := []byte("content \x00\x04 bytes")
		if err := m.WriteContent(ctx, "a0", want); err != nil {
			t.Fatalf("WriteContent failed: %v", err)
		}
		got, err := m.ReadContent(ctx, "a0")
		if err != nil {
			t.Fatalf("ReadContent failed: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("ReadContent got=%q want=%q", got, want)
		}
		if err := m.WriteContent(ctx, "a0", []byte("short")); err != nil {
			t.Fatalf("WriteContent(2) failed: %v", err)
		}
		got, _ = m.ReadContent(ctx, "a0")
		if string(got) != "short" {
			t.Fatalf("overwrite got=%q", got)
		}
	})

	t.Run("MissingObject", func(t *testing.T) {
		m := newMedium(t, []string{"a0"})
		if _, err := m.ReadContent(ctx, "zz"); !errors.Is(err, medium.ErrNotFound) {
			t.Fatalf("ReadContent missing: expected ErrNotFound, got %v", err)
		}
	})

	if !opts.SkipFields {
		runFields(t, newMedium)
	}

	if _, ok := newMedium(t, []string{"a0"}).(medium.Swapper); ok {
		runSwap(t, newMedium)
	}
}

func runFields(t *testing.T, newMedium NewMedium) {
	ctx := context.Background()

	t.Run("FieldsSetAndRemove", func(t *testing.T) {
		m := newMedium(t, []string{"a0"})
		set := map[string]string{"hash_0": "YWJj", "hash_1": "ZGVm", "sync_status": "DONE"}
		if err := m.WriteFields(ctx, "a0", set, nil); err != nil {
			t.Fatalf("WriteFields failed: %v", err)
		}
		got, err := m.ReadFields(ctx, "a0")
		if err != nil {
			t.Fatalf("ReadFields failed: %v", err)
		}
		for k, v := range set {
			if got[k] != v {
				t.Fatalf("field %s got=%q want=%q", k, got[k], v)
			}
		}
		if err := m.WriteFields(ctx, "a0", map[string]string{"hash_0": "eHl6"}, []string{"hash_1"}); err != nil {
			t.Fatalf("WriteFields(2) failed: %v", err)
		}
		got, _ = m.ReadFields(ctx, "a0")
		if got["hash_0"] != "eHl6" {
			t.Fatalf("hash_0 got=%q", got["hash_0"])
		}
		if _, ok := got["hash_1"]; ok {
			t.Fatalf("hash_1 should be absent: %v", got)
		}
		if got["sync_status"] != "DONE" {
			t.Fatalf("untouched field lost: %v", got)
		}
	})

	t.Run("FieldsSurviveContentWrite", func(t *testing.T) {
		m := newMedium(t, []string{"a0"})
		if err := m.WriteFields(ctx, "a0", map[string]string{"hash_0": "YQ=="}, nil); err != nil {
			t.Fatalf("WriteFields failed: %v", err)
		}
		if err := m.WriteContent(ctx, "a0", []byte("new content")); err != nil {
			t.Fatalf("WriteContent failed: %v", err)
		}
		got, err := m.ReadFields(ctx, "a0")
		if err != nil {
			t.Fatalf("ReadFields failed: %v", err)
		}
		if got["hash_0"] != "YQ==" {
			t.Fatalf("field lost across content write: %v", got)
		}
	})

	t.Run("ClearFields", func(t *testing.T) {
		m := newMedium(t, []string{"a0", "b1"})
		if err := m.WriteFields(ctx, "b1", map[string]string{"hash_0": "YQ=="}, nil); err != nil {
			t.Fatalf("WriteFields failed: %v", err)
		}
		n, err := medium.ClearFields(ctx, m)
		if err != nil || n != 1 {
			t.Fatalf("ClearFields n=%d err=%v", n, err)
		}
		got, _ := m.ReadFields(ctx, "b1")
		if len(got) != 0 {
			t.Fatalf("fields remain: %v", got)
		}
	})

}

func runSwap(t *testing.T, newMedium NewMedium) {
	ctx := context.Background()

	t.Run("SwapContent", func(t *testing.T) {
		m := newMedium(t, []string{"a0"})
		sw := m.(medium.Swapper)
		if err := m.WriteContent(ctx, "a0", []byte("v1")); err != nil {
			t.Fatalf("WriteContent failed: %v", err)
		}
		ok, err := sw.SwapContent(ctx, "a0", []byte("stale"), []byte("v2"))
		if err != nil || ok {
			t.Fatalf("stale swap ok=%v err=%v", ok, err)
		}
		ok, err = sw.SwapContent(ctx, "a0", []byte("v1"), []byte("v2"))
		if err != nil || !ok {
			t.Fatalf("swap ok=%v err=%v", ok, err)
		}
		got, _ := m.ReadContent(ctx, "a0")
		if string(got) != "v2" {
			t.Fatalf("after swap got=%q", got)
		}
	})
}
