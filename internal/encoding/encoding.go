// Package encoding converts fixed-size chunks to and from the physical
// representation of one storage object.
//
// Two strategies exist. DerivedByte hides one byte per object in the CRC of
// its content. StructuredField spreads up to Size*Count bytes over an
// object's key/value fields.
package encoding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/covertfs/internal/medium"
)

var (
	// ErrCorrupt marks object state that cannot be decoded. The protocol
	// engine treats it as an integrity failure, not an I/O failure.
	ErrCorrupt       = errors.New("encoding: corrupt object state")
	ErrChunkTooLarge = errors.New("encoding: chunk exceeds object capacity")
	ErrUnknownKind   = errors.New("encoding: unknown kind")
)

// Encoding is one capacity strategy.
type Encoding interface {
	Name() string
	// Capacity is the number of bytes one object carries.
	Capacity() int
	Encode(ctx context.Context, m medium.Medium, id string, chunk []byte) error
	Decode(ctx context.Context, m medium.Medium, id string) ([]byte, error)
}

type Kind string

const (
	KindDerivedByte     Kind = "derived"
	KindStructuredField Kind = "structured"
)

func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "derived", "derived-byte", "hash":
		return KindDerivedByte, nil
	case "structured", "structured-field", "metadata", "fields":
		return KindStructuredField, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, raw)
	}
}
