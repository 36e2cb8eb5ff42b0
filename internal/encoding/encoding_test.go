package encoding

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/danmuck/covertfs/internal/medium"
	"github.com/danmuck/covertfs/internal/protocol"
	"github.com/danmuck/covertfs/internal/protocol/fields"
	"github.com/danmuck/covertfs/internal/testutil/testlog"
)

func TestDerivedByteRoundTripEveryValue(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	m := medium.NewMemory("a0")
	if err := m.WriteContent(ctx, "a0", []byte("lorem ipsum")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	enc := NewDerivedByte(protocol.DefaultMiner())
	prevLen := len("lorem ipsum")
	for v := 0; v < 256; v++ {
		if err := enc.Encode(ctx, m, "a0", []byte{byte(v)}); err != nil {
			t.Fatalf("encode %d: %v", v, err)
		}
		got, err := enc.Decode(ctx, m, "a0")
		if err != nil {
			t.Fatalf("decode %d: %v", v, err)
		}
		if len(got) != 1 || got[0] != byte(v) {
			t.Fatalf("decode %d got=%v", v, got)
		}
		content, _ := m.ReadContent(ctx, "a0")
		if len(content) < prevLen || !bytes.HasPrefix(content, []byte("lorem ipsum")) {
			t.Fatalf("content must only grow: len=%d prev=%d", len(content), prevLen)
		}
		prevLen = len(content)
	}
}

func TestDerivedByteRejectsWideChunk(t *testing.T) {
	testlog.Start(t)
	m := medium.NewMemory("a0")
	err := NewDerivedByte(protocol.DefaultMiner()).Encode(context.Background(), m, "a0", []byte("ab"))
	if !errors.Is(err, ErrChunkTooLarge) {
		t.Fatalf("expected ErrChunkTooLarge, got %v", err)
	}
}

func TestStructuredFieldRoundTripAndCapacity(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	m := medium.NewMemory("a0")
	enc := NewStructuredField(4, 3)
	if enc.Capacity() != 12 {
		t.Fatalf("capacity got=%d", enc.Capacity())
	}
	for _, data := range [][]byte{{}, []byte("a"), []byte("abcd"), []byte("abcdefghijkl")} {
		if err := enc.Encode(ctx, m, "a0", data); err != nil {
			t.Fatalf("encode %q: %v", data, err)
		}
		got, err := enc.Decode(ctx, m, "a0")
		if err != nil {
			t.Fatalf("decode %q: %v", data, err)
		}
		if !bytes.Equal(got, data) {
			t.Fatalf("decode got=%q want=%q", got, data)
		}
	}
	if err := enc.Encode(ctx, m, "a0", []byte("abcdefghijklm")); !errors.Is(err, ErrChunkTooLarge) {
		t.Fatalf("expected ErrChunkTooLarge, got %v", err)
	}
}

func TestStructuredFieldClearsStaleFields(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	m := medium.NewMemory("a0")
	enc := NewStructuredField(2, 4)
	if err := enc.Encode(ctx, m, "a0", []byte("abcdefgh")); err != nil {
		t.Fatalf("encode long: %v", err)
	}
	if err := m.WriteFields(ctx, "a0", map[string]string{"foreign": "x"}, nil); err != nil {
		t.Fatalf("write foreign: %v", err)
	}
	if err := enc.Encode(ctx, m, "a0", []byte("xy")); err != nil {
		t.Fatalf("encode short: %v", err)
	}
	values, _ := m.ReadFields(ctx, "a0")
	if len(values) != 1 {
		t.Fatalf("stale fields survived: %v", values)
	}
	if _, ok := values[fields.Key(0)]; !ok {
		t.Fatalf("missing %s: %v", fields.Key(0), values)
	}
}

func TestStructuredFieldCorruptValue(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	m := medium.NewMemory("a0")
	_ = m.WriteFields(ctx, "a0", map[string]string{fields.Key(0): "%%%"}, nil)
	_, err := NewStructuredField(4, 2).Decode(ctx, m, "a0")
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestSignalCodecs(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	codecs := map[string]SignalCodec{
		"content": ContentSignal{Miner: protocol.DefaultMiner()},
		"field":   FieldSignal{},
	}
	for name, codec := range codecs {
		m := medium.NewMemory("sync")
		for _, s := range []protocol.Signal{protocol.SignalDone, protocol.SignalAck, protocol.SignalNack, protocol.SignalClear} {
			if err := codec.WriteSignal(ctx, m, "sync", s); err != nil {
				t.Fatalf("%s: write %s: %v", name, s, err)
			}
			got, err := codec.ReadSignal(ctx, m, "sync")
			if err != nil || got != s {
				t.Fatalf("%s: read got=%s err=%v want=%s", name, got, err, s)
			}
		}
	}
}

func TestFieldSignalMissingIsClear(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	m := medium.NewMemory("sync")
	_ = m.WriteFields(ctx, "sync", map[string]string{SignalField: "garbage"}, nil)
	got, err := FieldSignal{}.ReadSignal(ctx, m, "sync")
	if err != nil || got != protocol.SignalClear {
		t.Fatalf("got=%s err=%v", got, err)
	}
}

func TestDefaultSignalAndParseKind(t *testing.T) {
	testlog.Start(t)
	miner := protocol.DefaultMiner()
	if _, ok := DefaultSignal(NewStructuredField(1, 1), miner).(FieldSignal); !ok {
		t.Fatalf("structured should default to FieldSignal")
	}
	if _, ok := DefaultSignal(NewDerivedByte(miner), miner).(ContentSignal); !ok {
		t.Fatalf("derived should default to ContentSignal")
	}
	if k, err := ParseKind("metadata"); err != nil || k != KindStructuredField {
		t.Fatalf("ParseKind metadata got=%v err=%v", k, err)
	}
	if k, err := ParseKind("hash"); err != nil || k != KindDerivedByte {
		t.Fatalf("ParseKind hash got=%v err=%v", k, err)
	}
	if _, err := ParseKind("nope"); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}
