package channel

import (
	"context"
	"fmt"
	"sync"

	"github.com/danmuck/covertfs/internal/encoding"
	"github.com/danmuck/covertfs/internal/medium"
	"github.com/danmuck/covertfs/internal/observability"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Partition is a resolved virtual channel.
type Partition struct {
	Count    int // session count the layout was computed from
	Position int
	Layout   Layout
	Objects  []string
}

// Sync is the object holding the session's signal.
func (p Partition) Sync() string {
	return p.Objects[0]
}

// Data are the objects carrying batch bytes, in channel order.
func (p Partition) Data() []string {
	return p.Objects[1:]
}

// Partitioner caches a session's partition and recomputes it only when the
// session count stored on the config object changes, since listing a medium
// is usually its most expensive call.
type Partitioner struct {
	m      medium.Medium
	config string
	logger zerolog.Logger

	mu     sync.Mutex
	pos    int
	cached *Partition
}

// NewPartitioner resolves the config object (listing index 0).
func NewPartitioner(ctx context.Context, m medium.Medium) (*Partitioner, error) {
	ids, err := m.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list medium: %w", err)
	}
	if len(ids) == 0 {
		return nil, ErrEmptyMedium
	}
	return &Partitioner{
		m:      m,
		config: ids[0],
		pos:    -1,
		logger: log.With().Str("component", "partitioner").Logger(),
	}, nil
}

func (p *Partitioner) ConfigObject() string {
	return p.config
}

// Count reads the live session count from the config object.
func (p *Partitioner) Count(ctx context.Context) (int, error) {
	b, err := encoding.GetDerivedByte(ctx, p.m, p.config)
	if err != nil {
		return 0, fmt.Errorf("read session count: %w", err)
	}
	return int(b), nil
}

// SetPosition assigns the session slot and drops any cached partition.
func (p *Partitioner) SetPosition(pos int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pos = pos
	p.cached = nil
}

func (p *Partitioner) Position() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos
}

// Current returns the cached partition without touching the medium.
func (p *Partitioner) Current() (Partition, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached == nil {
		return Partition{}, false
	}
	return *p.cached, true
}

// Refresh re-reads the session count and recomputes the partition when it
// differs from the cached one. changed reports a recomputation; callers must
// reset the signal on the new sync object.
func (p *Partitioner) Refresh(ctx context.Context) (part Partition, changed bool, err error) {
	p.mu.Lock()
	pos := p.pos
	cached := p.cached
	p.mu.Unlock()
	if pos < 0 {
		return Partition{}, false, ErrNotPositioned
	}

	count, err := p.Count(ctx)
	if err != nil {
		return Partition{}, false, err
	}
	if cached != nil && cached.Count == count {
		return *cached, false, nil
	}

	resolved, err := p.Resolve(ctx, count, pos)
	if err != nil {
		return Partition{}, false, err
	}
	next := &resolved

	p.mu.Lock()
	p.cached = next
	p.mu.Unlock()

	observability.RecordRepartition()
	p.logger.Info().
		Int("pos", pos).
		Int("count", count).
		Int("start", next.Layout.Start).
		Int("len", next.Layout.Len).
		Str("sync", next.Sync()).
		Msg("channel recomputed")
	return *next, true, nil
}

// Resolve lists the medium and computes the partition for an arbitrary count
// and position without touching the cache.
func (p *Partitioner) Resolve(ctx context.Context, count, pos int) (Partition, error) {
	ids, err := p.m.List(ctx)
	if err != nil {
		return Partition{}, fmt.Errorf("list medium: %w", err)
	}
	layout, err := Compute(len(ids), count, pos)
	if err != nil {
		return Partition{}, err
	}
	objects := make([]string, layout.Len)
	copy(objects, ids[layout.Start:layout.End()])
	return Partition{Count: count, Position: pos, Layout: layout, Objects: objects}, nil
}
