package encoding

import (
	"context"

	"github.com/danmuck/covertfs/internal/medium"
	"github.com/danmuck/covertfs/internal/protocol"
)

// SignalField is the field FieldSignal stores the handshake value in.
const SignalField = "sync_status"

// SignalCodec stores the handshake signal on a session's sync object.
type SignalCodec interface {
	ReadSignal(ctx context.Context, m medium.Medium, id string) (protocol.Signal, error)
	WriteSignal(ctx context.Context, m medium.Medium, id string, s protocol.Signal) error
}

// ContentSignal keeps the signal in the sync object's derived byte.
type ContentSignal struct {
	Miner protocol.Miner
}

func (c ContentSignal) ReadSignal(ctx context.Context, m medium.Medium, id string) (protocol.Signal, error) {
	b, err := GetDerivedByte(ctx, m, id)
	if err != nil {
		return protocol.SignalClear, err
	}
	return protocol.SignalFromByte(b), nil
}

func (c ContentSignal) WriteSignal(ctx context.Context, m medium.Medium, id string, s protocol.Signal) error {
	return SetDerivedByte(ctx, m, c.Miner, id, byte(s))
}

// FieldSignal keeps the signal name in one field. A missing or unreadable
// value is CLEAR.
type FieldSignal struct {
	Key string
}

func (f FieldSignal) key() string {
	if f.Key == "" {
		return SignalField
	}
	return f.Key
}

func (f FieldSignal) ReadSignal(ctx context.Context, m medium.Medium, id string) (protocol.Signal, error) {
	values, err := m.ReadFields(ctx, id)
	if err != nil {
		return protocol.SignalClear, err
	}
	s, err := protocol.ParseSignal(values[f.key()])
	if err != nil {
		return protocol.SignalClear, nil
	}
	return s, nil
}

func (f FieldSignal) WriteSignal(ctx context.Context, m medium.Medium, id string, s protocol.Signal) error {
	return m.WriteFields(ctx, id, map[string]string{f.key(): s.String()}, nil)
}

// DefaultSignal picks where a strategy keeps its signal: derived-byte
// channels use content, structured-field channels use a field.
func DefaultSignal(enc Encoding, miner protocol.Miner) SignalCodec {
	if _, ok := enc.(StructuredField); ok {
		return FieldSignal{Key: SignalField}
	}
	return ContentSignal{Miner: miner}
}
