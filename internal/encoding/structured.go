package encoding

import (
	"context"
	"fmt"

	"github.com/danmuck/covertfs/internal/medium"
	"github.com/danmuck/covertfs/internal/protocol/fields"
)

// Cloud drive appProperties limits.
const (
	DefaultFieldSize  = 75
	DefaultFieldCount = 30
)

// StructuredField stores Size*Count bytes per object across hash_{i} fields.
type StructuredField struct {
	Shape fields.Shape
}

func NewStructuredField(size, count int) StructuredField {
	return StructuredField{Shape: fields.Shape{Size: size, Count: count}}
}

func (StructuredField) Name() string { return string(KindStructuredField) }

func (s StructuredField) Capacity() int { return s.Shape.Capacity() }

// Encode replaces every field on the object with the chunk's fields, so no
// stale chunk beyond the new count survives.
func (s StructuredField) Encode(ctx context.Context, m medium.Medium, id string, chunk []byte) error {
	next, err := fields.Encode(chunk, s.Shape)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChunkTooLarge, err)
	}
	existing, err := m.ReadFields(ctx, id)
	if err != nil {
		return err
	}
	return m.WriteFields(ctx, id, next, fields.Stale(existing, next))
}

func (s StructuredField) Decode(ctx context.Context, m medium.Medium, id string) ([]byte, error) {
	values, err := m.ReadFields(ctx, id)
	if err != nil {
		return nil, err
	}
	out, err := fields.Decode(values, s.Shape)
	if err != nil {
		return out, fmt.Errorf("%w: %s: %v", ErrCorrupt, id, err)
	}
	return out, nil
}
