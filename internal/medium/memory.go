package medium

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

type memObject struct {
	content []byte
	fields  map[string]string
}

// Memory is an in-process medium. It is safe for concurrent use and is what
// two endpoints in one process share.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]*memObject
	changes chan struct{}
}

// NewMemory constructs a memory medium holding ids with empty content.
func NewMemory(ids ...string) *Memory {
	m := &Memory{
		objects: make(map[string]*memObject, len(ids)),
		changes: make(chan struct{}, 1),
	}
	for _, id := range ids {
		m.objects[id] = &memObject{fields: make(map[string]string)}
	}
	return m
}

func (m *Memory) List(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.objects))
	for id := range m.objects {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) ReadContent(ctx context.Context, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return bytes.Clone(obj.content), nil
}

func (m *Memory) WriteContent(ctx context.Context, id string, data []byte) error {
	m.mu.Lock()
	obj, ok := m.objects[id]
	if ok {
		obj.content = bytes.Clone(data)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m.notify()
	return nil
}

func (m *Memory) ReadFields(ctx context.Context, id string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	out := make(map[string]string, len(obj.fields))
	for k, v := range obj.fields {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) WriteFields(ctx context.Context, id string, set map[string]string, remove []string) error {
	for k := range set {
		if err := ValidateFieldName(k); err != nil {
			return err
		}
	}
	m.mu.Lock()
	obj, ok := m.objects[id]
	if ok {
		for _, k := range remove {
			delete(obj.fields, k)
		}
		for k, v := range set {
			obj.fields[k] = v
		}
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m.notify()
	return nil
}

func (m *Memory) SwapContent(ctx context.Context, id string, prev, next []byte) (bool, error) {
	m.mu.Lock()
	obj, ok := m.objects[id]
	swapped := false
	if ok && bytes.Equal(obj.content, prev) {
		obj.content = bytes.Clone(next)
		swapped = true
	}
	m.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if swapped {
		m.notify()
	}
	return swapped, nil
}

func (m *Memory) Create(ctx context.Context, id string, content []byte) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[id]; ok {
		return fmt.Errorf("%w: %s", ErrExists, id)
	}
	m.objects[id] = &memObject{content: bytes.Clone(content), fields: make(map[string]string)}
	return nil
}

func (m *Memory) Changes() <-chan struct{} {
	return m.changes
}

func (m *Memory) notify() {
	select {
	case m.changes <- struct{}{}:
	default:
	}
}

// ValidateFieldName rejects names no backend can store.
func ValidateFieldName(name string) error {
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, ".$\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidField, name)
	}
	return nil
}
