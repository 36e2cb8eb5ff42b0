package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/danmuck/covertfs/internal/channel"
	"github.com/danmuck/covertfs/internal/encoding"
	"github.com/danmuck/covertfs/internal/medium"
	"github.com/danmuck/covertfs/internal/protocol"
	"github.com/danmuck/covertfs/internal/retry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Conn is one endpoint of a virtual channel.
type Conn struct {
	m      medium.Medium
	enc    encoding.Encoding
	signal encoding.SignalCodec
	cfg    Config
	miner  protocol.Miner
	part   *channel.Partitioner
	logger zerolog.Logger

	// io serializes Connect, Write, and Read on one endpoint.
	io sync.Mutex
}

type Option func(*Conn)

func WithConfig(cfg Config) Option {
	return func(c *Conn) { c.cfg = cfg }
}

// WithSignal overrides where the handshake signal is stored.
func WithSignal(codec encoding.SignalCodec) Option {
	return func(c *Conn) { c.signal = codec }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Conn) { c.logger = logger }
}

// New binds a session to a medium and encoding. The medium must already hold
// its config object; the session is not positioned until Connect or
// WaitForConnection returns.
func New(ctx context.Context, m medium.Medium, enc encoding.Encoding, opts ...Option) (*Conn, error) {
	if m == nil || enc == nil {
		return nil, fmt.Errorf("session: medium and encoding are required")
	}
	part, err := channel.NewPartitioner(ctx, m)
	if err != nil {
		return nil, err
	}
	c := &Conn{
		m:      m,
		enc:    enc,
		cfg:    DefaultConfig(),
		part:   part,
		logger: log.With().Str("component", "session").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cfg = c.cfg.normalized()
	c.miner = c.cfg.Miner()
	if c.signal == nil {
		c.signal = encoding.DefaultSignal(enc, c.miner)
	}
	return c, nil
}

// Connect joins as the active side: it claims position C0 by moving the
// session count on the config object from C0 to C0+1.
//
// The sync object of the claimed channel is cleared before the count moves,
// so a peer that observes the new count never sees a stale signal.
func (c *Conn) Connect(ctx context.Context) (int, error) {
	c.io.Lock()
	defer c.io.Unlock()

	var pos int
	var err error
	if sw, ok := c.m.(medium.Swapper); ok {
		policy := retry.Policy{
			Backoff:     c.cfg.JoinBackoff,
			MaxAttempts: c.cfg.JoinAttempts,
			Retryable:   func(err error) bool { return errors.Is(err, errSwapLost) },
		}
		err = retry.Do(ctx, policy, func(ctx context.Context) error {
			var joinErr error
			pos, joinErr = c.joinSwap(ctx, sw)
			if errors.Is(joinErr, errSwapLost) {
				c.logger.Debug().Int("pos", pos).Msg("session count moved under us; retrying join")
			}
			return joinErr
		})
	} else {
		c.logger.Warn().
			Str("config", c.part.ConfigObject()).
			Msg("medium has no compare-and-swap; concurrent joins can collide")
		pos, err = c.joinUnsafe(ctx)
	}
	if err != nil {
		return -1, fmt.Errorf("connect: %w", err)
	}

	part, err := c.establish(ctx, pos)
	if err != nil {
		return -1, err
	}
	c.logger.Info().Int("pos", pos).Str("sync", part.Sync()).Int("objects", len(part.Objects)).Msg("connected")
	return pos, nil
}

func (c *Conn) joinSwap(ctx context.Context, sw medium.Swapper) (int, error) {
	cfgID := c.part.ConfigObject()
	content, err := c.m.ReadContent(ctx, cfgID)
	if err != nil {
		return -1, err
	}
	count := int(protocol.HashByte(content))
	part, err := c.prepareJoin(ctx, count)
	if err != nil {
		return count, err
	}
	// The sync object is cleared only while slot count is still free. A
	// count that moved since content was read belongs to a winner whose
	// signal must survive.
	now, err := c.part.Count(ctx)
	if err != nil {
		return count, err
	}
	if now != count {
		return count, errSwapLost
	}
	if err := c.setSignal(ctx, part.Sync(), protocol.SignalClear); err != nil {
		return count, err
	}
	next, n, err := c.miner.Mine(content, byte(count+1))
	if err != nil {
		return count, err
	}
	swapped, err := sw.SwapContent(ctx, cfgID, content, next)
	if err != nil {
		return count, err
	}
	if !swapped {
		return count, errSwapLost
	}
	c.logger.Debug().Int("count", count+1).Int("pad", n).Msg("session count advanced")
	return count, nil
}

func (c *Conn) joinUnsafe(ctx context.Context) (int, error) {
	count, err := c.part.Count(ctx)
	if err != nil {
		return -1, err
	}
	part, err := c.prepareJoin(ctx, count)
	if err != nil {
		return count, err
	}
	if err := c.setSignal(ctx, part.Sync(), protocol.SignalClear); err != nil {
		return count, err
	}
	if err := encoding.SetDerivedByte(ctx, c.m, c.miner, c.part.ConfigObject(), byte(count+1)); err != nil {
		return count, err
	}
	return count, nil
}

// prepareJoin resolves the channel position count will own once the count
// grows, and checks that it can carry a batch.
func (c *Conn) prepareJoin(ctx context.Context, count int) (channel.Partition, error) {
	if count >= 255 {
		return channel.Partition{}, ErrCountOverflow
	}
	part, err := c.part.Resolve(ctx, count+1, count)
	if err != nil {
		return channel.Partition{}, err
	}
	if _, err := c.plan(part).BatchSize(); err != nil {
		return channel.Partition{}, err
	}
	return part, nil
}

// WaitForConnection joins as the passive side: it waits for the session count
// to move away from its current value and takes that value as position.
func (c *Conn) WaitForConnection(ctx context.Context) (int, error) {
	c.io.Lock()
	defer c.io.Unlock()

	count, err := c.part.Count(ctx)
	if err != nil {
		return -1, fmt.Errorf("wait for connection: %w", err)
	}
	return c.awaitJoin(ctx, count)
}

func (c *Conn) awaitJoin(ctx context.Context, from int) (int, error) {
	c.logger.Info().Int("count", from).Msg("waiting for connection")
	err := poll(ctx, c.m, c.cfg.ConnectPollInterval, func(ctx context.Context) (bool, error) {
		now, err := c.part.Count(ctx)
		if err != nil {
			return false, err
		}
		return now != from, nil
	})
	if err != nil {
		return -1, fmt.Errorf("wait for connection: %w", err)
	}

	part, err := c.establish(ctx, from)
	if err != nil {
		return -1, err
	}
	// The joiner cleared the sync object before moving the count; only a
	// leftover ACK or NACK is reset here. DONE is the peer's first batch.
	sig, err := c.signal.ReadSignal(ctx, c.m, part.Sync())
	if err != nil {
		return -1, err
	}
	if sig == protocol.SignalAck || sig == protocol.SignalNack {
		if err := c.setSignal(ctx, part.Sync(), protocol.SignalClear); err != nil {
			return -1, err
		}
	}
	c.logger.Info().Int("pos", from).Str("sync", part.Sync()).Int("objects", len(part.Objects)).Msg("peer connected")
	return from, nil
}

func (c *Conn) establish(ctx context.Context, pos int) (channel.Partition, error) {
	c.part.SetPosition(pos)
	part, _, err := c.part.Refresh(ctx)
	if err != nil {
		c.part.SetPosition(-1)
		return channel.Partition{}, fmt.Errorf("establish channel: %w", err)
	}
	if _, err := c.plan(part).BatchSize(); err != nil {
		c.part.SetPosition(-1)
		return channel.Partition{}, fmt.Errorf("establish channel: %w", err)
	}
	return part, nil
}

// Reset forces the session count on the config object back to zero. Live
// sessions keep their channels until their next idle recomputation.
func (c *Conn) Reset(ctx context.Context) error {
	if err := encoding.SetDerivedByte(ctx, c.m, c.miner, c.part.ConfigObject(), 0); err != nil {
		return fmt.Errorf("reset session count: %w", err)
	}
	c.logger.Info().Str("config", c.part.ConfigObject()).Msg("session count reset")
	return nil
}

// Status is a point-in-time view of the session for diagnostics.
type Status struct {
	Connected  bool   `json:"connected"`
	Position   int    `json:"position"`
	Count      int    `json:"count"`
	Config     string `json:"config_object"`
	Sync       string `json:"sync_object,omitempty"`
	ChannelLen int    `json:"channel_len"`
	Capacity   int    `json:"batch_capacity"`
	Encoding   string `json:"encoding"`
}

// Status reports the cached partition; it never reads the medium.
func (c *Conn) Status() Status {
	st := Status{
		Position: c.part.Position(),
		Config:   c.part.ConfigObject(),
		Encoding: c.enc.Name(),
	}
	part, ok := c.part.Current()
	if !ok {
		return st
	}
	st.Connected = st.Position >= 0
	st.Count = part.Count
	st.Sync = part.Sync()
	st.ChannelLen = len(part.Objects)
	st.Capacity, _ = c.plan(part).BatchSize()
	return st
}

func (c *Conn) Position() int {
	return c.part.Position()
}
