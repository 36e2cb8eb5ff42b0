package protocol

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// ChecksumSize is the number of checksum bytes prepended to every batch.
const ChecksumSize = 4

// DefaultPad is appended to object content while searching for a derived byte.
const DefaultPad byte = ' '

// Checksum returns the 4-byte batch checksum: the first four base64 characters
// of the little-endian CRC-32 of data. The result never contains Terminator.
func Checksum(data []byte) []byte {
	var raw [4]byte
	binary.LittleEndian.PutUint32(raw[:], crc32.ChecksumIEEE(data))
	enc := make([]byte, base64.StdEncoding.EncodedLen(len(raw)))
	base64.StdEncoding.Encode(enc, raw[:])
	return enc[:ChecksumSize]
}

// VerifyChecksum reports whether sum is the checksum of data.
func VerifyChecksum(sum, data []byte) bool {
	return bytes.Equal(sum, Checksum(data))
}

// HashByte is the byte an object's content carries: CRC-32 mod 256.
func HashByte(content []byte) byte {
	return byte(crc32.ChecksumIEEE(content) % 256)
}

// Miner appends padding to content until its HashByte matches a target.
// MaxIterations of 0 means unbounded.
type Miner struct {
	Pad           byte
	MaxIterations int
}

func DefaultMiner() Miner {
	return Miner{Pad: DefaultPad, MaxIterations: 1 << 20}
}

// Mine returns content (possibly extended) whose HashByte equals want, and the
// number of padding bytes appended. The input slice is never modified.
func (m Miner) Mine(content []byte, want byte) ([]byte, int, error) {
	crc := crc32.ChecksumIEEE(content)
	pad := []byte{m.Pad}
	n := 0
	for byte(crc%256) != want {
		if m.MaxIterations > 0 && n >= m.MaxIterations {
			return nil, n, fmt.Errorf("%w: target=%d after %d pad bytes", ErrEncodingExhausted, want, n)
		}
		crc = crc32.Update(crc, crc32.IEEETable, pad)
		n++
	}
	out := make([]byte, len(content)+n)
	copy(out, content)
	for i := len(content); i < len(out); i++ {
		out[i] = m.Pad
	}
	return out, n, nil
}
