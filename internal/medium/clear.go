package medium

import (
	"context"
	"fmt"
	"sort"
)

// ClearFields strips every field from every object and returns how many
// objects carried fields.
func ClearFields(ctx context.Context, m Medium) (int, error) {
	ids, err := m.List(ctx)
	if err != nil {
		return 0, err
	}
	cleared := 0
	for _, id := range ids {
		existing, err := m.ReadFields(ctx, id)
		if err != nil {
			return cleared, fmt.Errorf("read fields %s: %w", id, err)
		}
		if len(existing) == 0 {
			continue
		}
		keys := make([]string, 0, len(existing))
		for k := range existing {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if err := m.WriteFields(ctx, id, nil, keys); err != nil {
			return cleared, fmt.Errorf("clear fields %s: %w", id, err)
		}
		cleared++
	}
	return cleared, nil
}
