// Package medium defines the storage contract a covert channel rides on.
//
// A medium is a flat, sorted set of existing objects. Each object has byte
// content and a small map of string fields. The channel never creates or
// deletes objects; it only rewrites content and fields.
package medium

import "context"

// Medium is the capability set every storage backend provides.
type Medium interface {
	// List returns every object identifier, sorted ascending. Consecutive
	// calls return the same order while the object set is unchanged.
	List(ctx context.Context) ([]string, error)
	ReadContent(ctx context.Context, id string) ([]byte, error)
	WriteContent(ctx context.Context, id string, data []byte) error
	ReadFields(ctx context.Context, id string) (map[string]string, error)
	// WriteFields sets every key in set and deletes every key in remove.
	WriteFields(ctx context.Context, id string, set map[string]string, remove []string) error
}

// Swapper is implemented by media that can replace content conditionally.
// SwapContent writes next only when the stored content still equals prev and
// reports whether it did.
type Swapper interface {
	SwapContent(ctx context.Context, id string, prev, next []byte) (bool, error)
}

// Notifier is implemented by media that can hint that something changed.
// Hints may be coalesced or spurious; pollers still re-read state.
type Notifier interface {
	Changes() <-chan struct{}
}

// Provisioner is implemented by media that can create new objects.
type Provisioner interface {
	Create(ctx context.Context, id string, content []byte) error
}
