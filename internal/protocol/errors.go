package protocol

import "errors"

var (
	ErrEncodingExhausted   = errors.New("protocol: derived byte search exhausted")
	ErrTerminatorInPayload = errors.New("protocol: payload contains terminator")
	ErrUnknownSignal       = errors.New("protocol: unknown signal")
)
