package protocol

import (
	"fmt"
	"strings"
)

// Terminator ends every payload on the wire. It is not escaped, so payloads
// must not contain it.
const Terminator byte = 0x04

// Signal is the per-session handshake value held by the sync object.
type Signal uint8

const (
	SignalClear Signal = 0
	SignalAck   Signal = 1
	SignalNack  Signal = 2
	SignalDone  Signal = 3
)

var signalNames = [...]string{"CLEAR", "ACK", "NACK", "DONE"}

func (s Signal) String() string {
	if int(s) < len(signalNames) {
		return signalNames[s]
	}
	return fmt.Sprintf("SIGNAL(%d)", uint8(s))
}

func (s Signal) Valid() bool {
	return s <= SignalDone
}

// ParseSignal maps a stored signal name back to its value.
func ParseSignal(raw string) (Signal, error) {
	name := strings.ToUpper(strings.TrimSpace(raw))
	for i, n := range signalNames {
		if n == name {
			return Signal(i), nil
		}
	}
	return SignalClear, fmt.Errorf("%w: %q", ErrUnknownSignal, raw)
}

// SignalFromByte decodes a derived byte. Anything outside the known range
// reads as CLEAR.
func SignalFromByte(b byte) Signal {
	s := Signal(b)
	if !s.Valid() {
		return SignalClear
	}
	return s
}
