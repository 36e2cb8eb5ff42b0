package channel

import (
	"context"
	"errors"
	"testing"

	"github.com/danmuck/covertfs/internal/encoding"
	"github.com/danmuck/covertfs/internal/medium"
	"github.com/danmuck/covertfs/internal/protocol"
	"github.com/danmuck/covertfs/internal/testutil/testlog"
)

func TestMaxClients(t *testing.T) {
	testlog.Start(t)
	cases := map[int]int{0: 1, 1: 1, 2: 2, 3: 4, 4: 4, 5: 8, 8: 8, 9: 16, 255: 256}
	for count, want := range cases {
		if got := MaxClients(count); got != want {
			t.Fatalf("MaxClients(%d) got=%d want=%d", count, got, want)
		}
	}
}

func TestPartitionDisjointAndInRange(t *testing.T) {
	testlog.Start(t)
	for total := 2; total <= 70; total++ {
		for count := 0; count <= 20; count++ {
			slots := MaxClients(count)
			var layouts []Layout
			for pos := 0; pos < slots; pos++ {
				l, err := Compute(total, count, pos)
				if errors.Is(err, ErrDegenerate) {
					if FilesPerClient(total, count) != 0 {
						t.Fatalf("total=%d count=%d pos=%d unexpected degenerate", total, count, pos)
					}
					continue
				}
				if err != nil {
					t.Fatalf("total=%d count=%d pos=%d: %v", total, count, pos, err)
				}
				if l.Start < 1 || l.End() > total {
					t.Fatalf("total=%d count=%d pos=%d out of range: %+v", total, count, pos, l)
				}
				for _, o := range layouts {
					if l.Overlaps(o) {
						t.Fatalf("total=%d count=%d overlap %+v %+v", total, count, l, o)
					}
				}
				layouts = append(layouts, l)
			}
		}
	}
}

func TestPowerOfTwoBoundaryHalvesChannel(t *testing.T) {
	testlog.Start(t)
	const total = 261 // 260 partitionable objects
	for k := 0; k < 7; k++ {
		at := 1 << k
		atPer := FilesPerClient(total, at)
		nextPer := FilesPerClient(total, at+1)
		if MaxClients(at) != at || MaxClients(at+1) != 2*at {
			t.Fatalf("k=%d max clients %d -> %d", k, MaxClients(at), MaxClients(at+1))
		}
		if atPer != 260/at || nextPer != 260/(2*at) {
			t.Fatalf("k=%d files per client %d -> %d", k, atPer, nextPer)
		}
	}
	l, err := Compute(total, 3, 2)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if l.Start != 131 || l.Len != 65 {
		t.Fatalf("layout got=%+v", l)
	}
}

func TestComputeDegenerate(t *testing.T) {
	testlog.Start(t)
	if _, err := Compute(4, 8, 0); !errors.Is(err, ErrDegenerate) {
		t.Fatalf("expected ErrDegenerate, got %v", err)
	}
	if _, err := Compute(10, 2, 2); !errors.Is(err, ErrDegenerate) {
		t.Fatalf("position beyond slots: expected ErrDegenerate, got %v", err)
	}
	if _, err := Compute(10, 2, -1); !errors.Is(err, ErrNotPositioned) {
		t.Fatalf("expected ErrNotPositioned, got %v", err)
	}
}

func TestPartitionerCachesUntilCountChanges(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	ids := []string{"00cfg"}
	for i := 0; i < 12; i++ {
		ids = append(ids, string(rune('a'+i))+"0")
	}
	m := medium.NewMemory(ids...)
	miner := protocol.DefaultMiner()
	if err := encoding.SetDerivedByte(ctx, m, miner, "00cfg", 1); err != nil {
		t.Fatalf("set count: %v", err)
	}

	p, err := NewPartitioner(ctx, m)
	if err != nil {
		t.Fatalf("partitioner: %v", err)
	}
	if p.ConfigObject() != "00cfg" {
		t.Fatalf("config object got=%q", p.ConfigObject())
	}
	if _, _, err := p.Refresh(ctx); !errors.Is(err, ErrNotPositioned) {
		t.Fatalf("expected ErrNotPositioned, got %v", err)
	}

	p.SetPosition(0)
	part, changed, err := p.Refresh(ctx)
	if err != nil || !changed {
		t.Fatalf("first refresh changed=%v err=%v", changed, err)
	}
	if len(part.Objects) != 12 || part.Sync() != "a0" || len(part.Data()) != 11 {
		t.Fatalf("unexpected partition: %+v", part)
	}
	if _, changed, _ := p.Refresh(ctx); changed {
		t.Fatalf("refresh without count change should be cached")
	}

	if err := encoding.SetDerivedByte(ctx, m, miner, "00cfg", 2); err != nil {
		t.Fatalf("set count: %v", err)
	}
	part, changed, err = p.Refresh(ctx)
	if err != nil || !changed {
		t.Fatalf("refresh after count change changed=%v err=%v", changed, err)
	}
	if len(part.Objects) != 6 || part.Count != 2 {
		t.Fatalf("unexpected partition after growth: %+v", part)
	}
	if cur, ok := p.Current(); !ok || cur.Sync() != part.Sync() {
		t.Fatalf("current mismatch: %+v", cur)
	}
}
