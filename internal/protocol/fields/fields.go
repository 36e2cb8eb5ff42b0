// Package fields is the structured-field codec: a byte slice spread over
// sequential "hash_{i}" keys, each holding the base64 text of one chunk.
package fields

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/danmuck/covertfs/internal/protocol"
)

const KeyPrefix = "hash_"

var (
	ErrTooLarge     = errors.New("fields: data exceeds field capacity")
	ErrInvalidValue = errors.New("fields: invalid field value")
	ErrInvalidShape = errors.New("fields: invalid field size or count")
)

// Shape bounds one object's structured-field capacity.
type Shape struct {
	Size  int // bytes per field before base64
	Count int // fields per object
}

func (s Shape) Capacity() int {
	return s.Size * s.Count
}

func (s Shape) validate() error {
	if s.Size <= 0 || s.Count <= 0 {
		return fmt.Errorf("%w: size=%d count=%d", ErrInvalidShape, s.Size, s.Count)
	}
	return nil
}

func Key(i int) string {
	return KeyPrefix + strconv.Itoa(i)
}

// Index parses a codec key. ok is false for keys the codec does not own.
func Index(key string) (int, bool) {
	if !strings.HasPrefix(key, KeyPrefix) {
		return 0, false
	}
	i, err := strconv.Atoi(strings.TrimPrefix(key, KeyPrefix))
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

// Encode spreads data over ceil(len/Size) sequential keys.
func Encode(data []byte, shape Shape) (map[string]string, error) {
	if err := shape.validate(); err != nil {
		return nil, err
	}
	if len(data) > shape.Capacity() {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooLarge, len(data), shape.Capacity())
	}
	out := make(map[string]string, (len(data)+shape.Size-1)/shape.Size)
	for i := 0; i*shape.Size < len(data); i++ {
		end := (i + 1) * shape.Size
		if end > len(data) {
			end = len(data)
		}
		out[Key(i)] = base64.StdEncoding.EncodeToString(data[i*shape.Size : end])
	}
	return out, nil
}

// Decode concatenates fields 0..Count-1, stopping at the first missing key or
// at the first chunk that carries the terminator.
func Decode(values map[string]string, shape Shape) ([]byte, error) {
	if err := shape.validate(); err != nil {
		return nil, err
	}
	var out []byte
	for i := 0; i < shape.Count; i++ {
		raw, ok := values[Key(i)]
		if !ok {
			break
		}
		chunk, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return out, fmt.Errorf("%w: %s: %v", ErrInvalidValue, Key(i), err)
		}
		out = append(out, chunk...)
		if bytes.IndexByte(chunk, protocol.Terminator) >= 0 {
			break
		}
	}
	return out, nil
}

// Stale lists keys in existing that a write of next must remove, sorted.
func Stale(existing map[string]string, next map[string]string) []string {
	out := make([]string, 0, len(existing))
	for k := range existing {
		if _, ok := next[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
