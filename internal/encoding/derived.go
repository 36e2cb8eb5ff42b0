package encoding

import (
	"context"
	"fmt"

	"github.com/danmuck/covertfs/internal/medium"
	"github.com/danmuck/covertfs/internal/observability"
	"github.com/danmuck/covertfs/internal/protocol"
)

// DerivedByte stores one byte per object as CRC-32(content) mod 256, reached
// by appending padding. Every encode grows the content monotonically.
type DerivedByte struct {
	Miner protocol.Miner
}

func NewDerivedByte(miner protocol.Miner) DerivedByte {
	return DerivedByte{Miner: miner}
}

func (DerivedByte) Name() string { return string(KindDerivedByte) }

func (DerivedByte) Capacity() int { return 1 }

func (d DerivedByte) Encode(ctx context.Context, m medium.Medium, id string, chunk []byte) error {
	if len(chunk) != 1 {
		return fmt.Errorf("%w: %d bytes for derived byte", ErrChunkTooLarge, len(chunk))
	}
	return SetDerivedByte(ctx, m, d.Miner, id, chunk[0])
}

func (DerivedByte) Decode(ctx context.Context, m medium.Medium, id string) ([]byte, error) {
	b, err := GetDerivedByte(ctx, m, id)
	if err != nil {
		return nil, err
	}
	return []byte{b}, nil
}

// GetDerivedByte reads the byte an object's content carries.
func GetDerivedByte(ctx context.Context, m medium.Medium, id string) (byte, error) {
	content, err := m.ReadContent(ctx, id)
	if err != nil {
		return 0, err
	}
	return protocol.HashByte(content), nil
}

// SetDerivedByte pads an object's content until it carries want. Content that
// already carries want is left untouched.
func SetDerivedByte(ctx context.Context, m medium.Medium, miner protocol.Miner, id string, want byte) error {
	content, err := m.ReadContent(ctx, id)
	if err != nil {
		return err
	}
	mined, n, err := miner.Mine(content, want)
	if err != nil {
		return fmt.Errorf("%s: %w", id, err)
	}
	observability.RecordMine(n)
	if n == 0 {
		return nil
	}
	return m.WriteContent(ctx, id, mined)
}
