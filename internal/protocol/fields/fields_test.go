package fields

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danmuck/covertfs/internal/protocol"
	"github.com/danmuck/covertfs/internal/testutil/testlog"
)

func TestEncodeDecodeRoundTripSizes(t *testing.T) {
	testlog.Start(t)
	shape := Shape{Size: 4, Count: 3}
	for n := 0; n <= shape.Capacity(); n++ {
		data := bytes.Repeat([]byte{'x'}, n)
		enc, err := Encode(data, shape)
		if err != nil {
			t.Fatalf("encode %d: %v", n, err)
		}
		if want := (n + 3) / 4; len(enc) != want {
			t.Fatalf("encode %d: keys=%d want=%d", n, len(enc), want)
		}
		got, err := Decode(enc, shape)
		if err != nil {
			t.Fatalf("decode %d: %v", n, err)
		}
		if !bytes.Equal(got, data) {
			t.Fatalf("decode %d: got=%q", n, got)
		}
	}
}

func TestEncodeCapacityExact(t *testing.T) {
	testlog.Start(t)
	shape := Shape{Size: 75, Count: 30}
	if shape.Capacity() != 2250 {
		t.Fatalf("capacity got=%d", shape.Capacity())
	}
	if _, err := Encode(make([]byte, 2250), shape); err != nil {
		t.Fatalf("exact capacity should fit: %v", err)
	}
	if _, err := Encode(make([]byte, 2251), shape); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestDecodeStopsAtTerminatorChunk(t *testing.T) {
	testlog.Start(t)
	shape := Shape{Size: 2, Count: 4}
	enc, err := Encode([]byte{'a', 'b', 'c', protocol.Terminator}, shape)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	stale, _ := Encode([]byte("zz"), Shape{Size: 2, Count: 1})
	enc[Key(2)] = stale[Key(0)]
	got, err := Decode(enc, shape)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(got) != "abc\x04" {
		t.Fatalf("got=%q", got)
	}
}

func TestDecodeStopsAtGap(t *testing.T) {
	testlog.Start(t)
	shape := Shape{Size: 1, Count: 4}
	enc, _ := Encode([]byte("abcd"), shape)
	delete(enc, Key(1))
	got, err := Decode(enc, shape)
	if err != nil || string(got) != "a" {
		t.Fatalf("got=%q err=%v", got, err)
	}
}

func TestDecodeInvalidBase64(t *testing.T) {
	testlog.Start(t)
	_, err := Decode(map[string]string{Key(0): "!!not-base64"}, Shape{Size: 4, Count: 2})
	if !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
}

func TestStaleAndIndex(t *testing.T) {
	testlog.Start(t)
	existing := map[string]string{Key(0): "a", Key(1): "b", Key(2): "c", "sync_status": "DONE"}
	next := map[string]string{Key(0): "x"}
	stale := Stale(existing, next)
	want := []string{Key(1), Key(2), "sync_status"}
	if len(stale) != len(want) {
		t.Fatalf("stale=%v", stale)
	}
	for i := range want {
		if stale[i] != want[i] {
			t.Fatalf("stale=%v want=%v", stale, want)
		}
	}
	if i, ok := Index("hash_12"); !ok || i != 12 {
		t.Fatalf("index got=%d ok=%v", i, ok)
	}
	if _, ok := Index("sync_status"); ok {
		t.Fatalf("foreign key should not parse")
	}
}
