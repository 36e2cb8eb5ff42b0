package medium_test

import (
	"context"
	"errors"
	"testing"

	"github.com/danmuck/covertfs/internal/medium"
	"github.com/danmuck/covertfs/internal/testutil/mediumtest"
	"github.com/danmuck/covertfs/internal/testutil/testlog"
)

func TestMemoryConformance(t *testing.T) {
	testlog.Start(t)
	mediumtest.Run(t, func(t *testing.T, ids []string) medium.Medium {
		return medium.NewMemory(ids...)
	}, mediumtest.Options{})
}

func TestMemoryCreateAndNotify(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	m := medium.NewMemory()
	if err := m.Create(ctx, "a0", []byte("seed")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := m.Create(ctx, "a0", nil); !errors.Is(err, medium.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if err := m.WriteContent(ctx, "a0", []byte("next")); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case <-m.Changes():
	default:
		t.Fatalf("expected change hint after write")
	}
}

func TestMemoryRejectsInvalidFieldNames(t *testing.T) {
	testlog.Start(t)
	m := medium.NewMemory("a0")
	err := m.WriteFields(context.Background(), "a0", map[string]string{"bad.key": "x"}, nil)
	if !errors.Is(err, medium.ErrInvalidField) {
		t.Fatalf("expected ErrInvalidField, got %v", err)
	}
}
