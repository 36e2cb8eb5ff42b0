// Package channel assigns each session an exclusive, contiguous slice of the
// medium listing.
//
// Listing index 0 is the config object and is never part of a channel. The
// remaining objects are split evenly over max_clients slots, where
// max_clients is the session count rounded up to a power of two.
package channel

import (
	"errors"
	"fmt"
	"math/bits"
)

var (
	ErrDegenerate    = errors.New("channel: no objects left for this position")
	ErrNotPositioned = errors.New("channel: session has no position")
	ErrEmptyMedium   = errors.New("channel: medium has no objects")
)

// Layout is one session's slice [Start, Start+Len) of the listing.
type Layout struct {
	Start int
	Len   int
}

func (l Layout) End() int {
	return l.Start + l.Len
}

func (l Layout) Overlaps(o Layout) bool {
	return l.Start < o.End() && o.Start < l.End()
}

// MaxClients rounds count up to the next power of two; counts of 0 and 1 use
// a single slot.
func MaxClients(count int) int {
	if count <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(count-1))
}

// FilesPerClient is the channel length for every slot, given the full listing
// length total (config object included).
func FilesPerClient(total, count int) int {
	if total <= 1 {
		return 0
	}
	return (total - 1) / MaxClients(count)
}

// Compute returns the layout of position pos when count sessions are live
// over a listing of total objects.
func Compute(total, count, pos int) (Layout, error) {
	if pos < 0 {
		return Layout{}, ErrNotPositioned
	}
	per := FilesPerClient(total, count)
	if per == 0 {
		return Layout{}, fmt.Errorf("%w: total=%d count=%d", ErrDegenerate, total, count)
	}
	l := Layout{Start: pos*per + 1, Len: per}
	if l.End() > total {
		return Layout{}, fmt.Errorf("%w: position %d beyond %d slots", ErrDegenerate, pos, MaxClients(count))
	}
	return l, nil
}
