package frame

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/danmuck/covertfs/internal/protocol"
)

var (
	ErrShortBlob        = errors.New("frame: blob shorter than checksum")
	ErrChecksumMismatch = errors.New("frame: checksum mismatch")
	ErrBatchSize        = errors.New("frame: channel capacity does not fit a checksum")
	ErrChunkSize        = errors.New("frame: invalid chunk size")
)

// Plan describes how a payload is cut for one virtual channel.
type Plan struct {
	PerObject   int // bytes one data object carries
	DataObjects int // objects in the channel that carry data
}

// Capacity is the number of blob bytes one handshake cycle can move.
func (p Plan) Capacity() int {
	return p.PerObject * p.DataObjects
}

// BatchSize is the payload bytes per cycle once the checksum is accounted for.
func (p Plan) BatchSize() (int, error) {
	if p.PerObject <= 0 {
		return 0, fmt.Errorf("%w: per_object=%d", ErrChunkSize, p.PerObject)
	}
	size := p.Capacity() - protocol.ChecksumSize
	if size <= 0 {
		return 0, fmt.Errorf("%w: capacity=%d", ErrBatchSize, p.Capacity())
	}
	return size, nil
}

// Batches terminates payload and splits it into ordered batches. The last
// batch may be shorter than the rest.
func (p Plan) Batches(payload []byte) ([][]byte, error) {
	if bytes.IndexByte(payload, protocol.Terminator) >= 0 {
		return nil, protocol.ErrTerminatorInPayload
	}
	size, err := p.BatchSize()
	if err != nil {
		return nil, err
	}
	terminated := make([]byte, 0, len(payload)+1)
	terminated = append(terminated, payload...)
	terminated = append(terminated, protocol.Terminator)
	return Split(terminated, size)
}

// Split cuts data into consecutive pieces of at most size bytes.
func Split(data []byte, size int) ([][]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrChunkSize, size)
	}
	out := make([][]byte, 0, (len(data)+size-1)/size)
	for i := 0; i < len(data); i += size {
		end := i + size
		if end > len(data) {
			end = len(data)
		}
		out = append(out, data[i:end])
	}
	return out, nil
}

// Seal prepends the checksum of batch, producing the blob written to the channel.
func Seal(batch []byte) []byte {
	blob := make([]byte, 0, protocol.ChecksumSize+len(batch))
	blob = append(blob, protocol.Checksum(batch)...)
	return append(blob, batch...)
}

// Open verifies a received blob and returns the batch bytes it carries.
func Open(blob []byte) ([]byte, error) {
	if len(blob) < protocol.ChecksumSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortBlob, len(blob))
	}
	sum := blob[:protocol.ChecksumSize]
	batch := blob[protocol.ChecksumSize:]
	if !protocol.VerifyChecksum(sum, batch) {
		return nil, ErrChecksumMismatch
	}
	return batch, nil
}

// Terminated reports whether data holds the payload terminator.
func Terminated(data []byte) bool {
	return bytes.IndexByte(data, protocol.Terminator) >= 0
}

// Truncate cuts data at the first terminator.
func Truncate(data []byte) ([]byte, bool) {
	i := bytes.IndexByte(data, protocol.Terminator)
	if i < 0 {
		return data, false
	}
	return data[:i], true
}
