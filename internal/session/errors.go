package session

import "errors"

var (
	ErrNotConnected  = errors.New("session: not connected")
	ErrCountOverflow = errors.New("session: session count saturated at 255")

	errSwapLost = errors.New("session: lost session count swap")
)
