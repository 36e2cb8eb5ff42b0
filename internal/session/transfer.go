package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/danmuck/covertfs/internal/channel"
	"github.com/danmuck/covertfs/internal/encoding"
	"github.com/danmuck/covertfs/internal/observability"
	"github.com/danmuck/covertfs/internal/protocol"
	"github.com/danmuck/covertfs/internal/protocol/frame"
)

func (c *Conn) plan(part channel.Partition) frame.Plan {
	return frame.Plan{PerObject: c.enc.Capacity(), DataObjects: len(part.Data())}
}

// Write sends data as one terminated payload and returns once every batch is
// acknowledged and the channel is CLEAR again. data must not contain the
// terminator byte.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	if bytes.IndexByte(data, protocol.Terminator) >= 0 {
		return protocol.ErrTerminatorInPayload
	}
	c.io.Lock()
	defer c.io.Unlock()
	if c.part.Position() < 0 {
		return ErrNotConnected
	}

	part, err := c.awaitWritable(ctx)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	batches, err := c.plan(part).Batches(data)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	logger := c.logger.With().Int("pos", part.Position).Str("sync", part.Sync()).Logger()
	logger.Debug().Int("bytes", len(data)).Int("batches", len(batches)).Msg("write started")

	for i, batch := range batches {
		blob := frame.Seal(batch)
		for attempt := 1; ; attempt++ {
			if err := c.sendBlob(ctx, part, blob); err != nil {
				return fmt.Errorf("write batch %d: %w", i, err)
			}
			if err := c.setSignal(ctx, part.Sync(), protocol.SignalDone); err != nil {
				return fmt.Errorf("write batch %d: %w", i, err)
			}
			sig, err := c.awaitSignal(ctx, part.Sync(), protocol.SignalAck, protocol.SignalNack)
			if err != nil {
				return fmt.Errorf("write batch %d: %w", i, err)
			}
			if sig == protocol.SignalAck {
				observability.RecordBatch(observability.DirectionSent, len(batch))
				logger.Debug().Int("batch", i).Int("bytes", len(batch)).Int("attempt", attempt).Msg("batch acknowledged")
				break
			}
			observability.RecordResend()
			logger.Debug().Int("batch", i).Int("attempt", attempt).Msg("batch rejected; resending")
		}
	}
	if err := c.setSignal(ctx, part.Sync(), protocol.SignalClear); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	logger.Debug().Int("bytes", len(data)).Msg("write complete")
	return nil
}

// awaitWritable waits for the channel to be CLEAR. The partition may be
// recomputed while waiting; a fresh channel is claimed by clearing its sync
// object and is used right away.
func (c *Conn) awaitWritable(ctx context.Context) (channel.Partition, error) {
	var part channel.Partition
	err := poll(ctx, c.m, c.cfg.PollInterval, func(ctx context.Context) (bool, error) {
		next, changed, err := c.part.Refresh(ctx)
		if err != nil {
			return false, err
		}
		part = next
		if changed {
			return true, c.setSignal(ctx, part.Sync(), protocol.SignalClear)
		}
		sig, err := c.signal.ReadSignal(ctx, c.m, part.Sync())
		if err != nil {
			return false, err
		}
		return sig == protocol.SignalClear, nil
	})
	return part, err
}

func (c *Conn) sendBlob(ctx context.Context, part channel.Partition, blob []byte) error {
	chunks, err := frame.Split(blob, c.enc.Capacity())
	if err != nil {
		return err
	}
	data := part.Data()
	if len(chunks) > len(data) {
		return fmt.Errorf("%w: %d chunks for %d objects", frame.ErrBatchSize, len(chunks), len(data))
	}
	for i, chunk := range chunks {
		if err := c.enc.Encode(ctx, c.m, data[i], chunk); err != nil {
			return fmt.Errorf("encode %s: %w", data[i], err)
		}
	}
	return nil
}

// Read blocks until a full payload arrives and returns it without the
// terminator. Corrupt batches are answered with NACK and never surface.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	c.io.Lock()
	defer c.io.Unlock()
	if c.part.Position() < 0 {
		return nil, ErrNotConnected
	}

	layouts, err := c.awaitReadable(ctx)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	part := layouts[0]
	logger := c.logger.With().Int("pos", part.Position).Str("sync", part.Sync()).Logger()

	var stream []byte
	for i := 0; ; {
		batch, used, err := c.receiveAny(ctx, layouts)
		switch {
		case err == nil:
			if i == 0 && used.Layout != part.Layout {
				logger.Debug().Int("count", used.Count).Int("len", used.Layout.Len).Msg("batch sent on previous layout")
			}
			layouts = []channel.Partition{used}
			stream = append(stream, batch...)
			if err := c.setSignal(ctx, part.Sync(), protocol.SignalAck); err != nil {
				return nil, fmt.Errorf("read batch %d: %w", i, err)
			}
			observability.RecordBatch(observability.DirectionReceived, len(batch))
			logger.Debug().Int("batch", i).Int("bytes", len(batch)).Msg("batch accepted")
			i++
		case isIntegrityFailure(err):
			observability.RecordChecksumFailure()
			logger.Warn().Err(err).Int("batch", i).Msg("batch rejected")
			if err := c.setSignal(ctx, part.Sync(), protocol.SignalNack); err != nil {
				return nil, fmt.Errorf("read batch %d: %w", i, err)
			}
		default:
			return nil, fmt.Errorf("read batch %d: %w", i, err)
		}

		if payload, ok := frame.Truncate(stream); ok {
			logger.Debug().Int("bytes", len(payload)).Int("batches", i).Msg("read complete")
			return payload, nil
		}
		if _, err := c.awaitSignal(ctx, part.Sync(), protocol.SignalDone); err != nil {
			return nil, fmt.Errorf("read batch %d: %w", i, err)
		}
	}
}

// awaitReadable waits for the first DONE, following partition changes while
// no transfer is in flight. When the sync object survived a change, the
// writer may have sent under either layout, so both are returned, newest
// first.
func (c *Conn) awaitReadable(ctx context.Context) ([]channel.Partition, error) {
	prev, hadPrev := c.part.Current()
	var part channel.Partition
	err := poll(ctx, c.m, c.cfg.PollInterval, func(ctx context.Context) (bool, error) {
		next, _, err := c.part.Refresh(ctx)
		if err != nil {
			return false, err
		}
		part = next
		sig, err := c.signal.ReadSignal(ctx, c.m, part.Sync())
		if err != nil {
			return false, err
		}
		return sig == protocol.SignalDone, nil
	})
	if err != nil {
		return nil, err
	}
	layouts := []channel.Partition{part}
	if hadPrev && prev.Layout != part.Layout && prev.Sync() == part.Sync() {
		layouts = append(layouts, prev)
	}
	return layouts, nil
}

// receiveAny returns the first batch that opens cleanly under one of the
// layouts. Integrity failures are reported only if every layout fails.
func (c *Conn) receiveAny(ctx context.Context, layouts []channel.Partition) ([]byte, channel.Partition, error) {
	var first error
	for _, part := range layouts {
		batch, err := c.receiveBlob(ctx, part)
		if err == nil {
			return batch, part, nil
		}
		if !isIntegrityFailure(err) {
			return nil, part, err
		}
		if first == nil {
			first = err
		}
	}
	return nil, layouts[0], first
}

// receiveBlob decodes the channel in order, stopping at the object that
// carries the terminator, and verifies the checksum.
func (c *Conn) receiveBlob(ctx context.Context, part channel.Partition) ([]byte, error) {
	var blob []byte
	for _, id := range part.Data() {
		chunk, err := c.enc.Decode(ctx, c.m, id)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", id, err)
		}
		blob = append(blob, chunk...)
		if frame.Terminated(chunk) {
			break
		}
	}
	if i := bytes.IndexByte(blob, protocol.Terminator); i >= 0 {
		blob = blob[:i+1]
	}
	return frame.Open(blob)
}

func isIntegrityFailure(err error) bool {
	return errors.Is(err, frame.ErrChecksumMismatch) ||
		errors.Is(err, frame.ErrShortBlob) ||
		errors.Is(err, encoding.ErrCorrupt)
}

func (c *Conn) awaitSignal(ctx context.Context, id string, want ...protocol.Signal) (protocol.Signal, error) {
	var got protocol.Signal
	err := poll(ctx, c.m, c.cfg.PollInterval, func(ctx context.Context) (bool, error) {
		sig, err := c.signal.ReadSignal(ctx, c.m, id)
		if err != nil {
			return false, err
		}
		for _, w := range want {
			if sig == w {
				got = sig
				return true, nil
			}
		}
		return false, nil
	})
	return got, err
}

func (c *Conn) setSignal(ctx context.Context, id string, s protocol.Signal) error {
	if err := c.signal.WriteSignal(ctx, c.m, id, s); err != nil {
		return fmt.Errorf("set %s on %s: %w", s, id, err)
	}
	c.logger.Debug().Str("sync", id).Stringer("signal", s).Msg("signal set")
	return nil
}
