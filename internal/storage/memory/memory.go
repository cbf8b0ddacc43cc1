// Package memory keeps the key-value primitives in process memory.
package memory

import (
	"context"
	"sync"
)

// Backend is a mutex-guarded in-memory implementation of storage.Backend.
type Backend struct {
	mu       sync.RWMutex
	counters map[string]int64
	records  map[string]map[string]string
	sets     map[string]map[string]struct{}
}

// New returns an empty backend.
func New() *Backend {
	return &Backend{
		counters: map[string]int64{},
		records:  map[string]map[string]string{},
		sets:     map[string]map[string]struct{}{},
	}
}

func (b *Backend) Incr(_ context.Context, key string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.counters[key]++
	return b.counters[key], nil
}

func (b *Backend) PutRecord(_ context.Context, recordKey string, fields map[string]string, setKey, member string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.records[recordKey]
	if !ok {
		rec = make(map[string]string, len(fields))
		b.records[recordKey] = rec
	}
	for k, v := range fields {
		rec[k] = v
	}

	set, ok := b.sets[setKey]
	if !ok {
		set = map[string]struct{}{}
		b.sets[setKey] = set
	}
	set[member] = struct{}{}
	return nil
}

func (b *Backend) Record(_ context.Context, recordKey string) (map[string]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec := b.records[recordKey]
	out := make(map[string]string, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out, nil
}

func (b *Backend) Field(_ context.Context, recordKey, field string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	v, ok := b.records[recordKey][field]
	return v, ok, nil
}

func (b *Backend) SetFieldIfExists(_ context.Context, recordKey, field, value string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.records[recordKey]
	if !ok {
		return false, nil
	}
	rec[field] = value
	return true, nil
}

func (b *Backend) RemoveRecord(_ context.Context, recordKey, setKey, member string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.records, recordKey)
	if set, ok := b.sets[setKey]; ok {
		delete(set, member)
		if len(set) == 0 {
			delete(b.sets, setKey)
		}
	}
	return nil
}

func (b *Backend) Members(_ context.Context, setKey string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, 0, len(b.sets[setKey]))
	for m := range b.sets[setKey] {
		out = append(out, m)
	}
	return out, nil
}

// AddMember adds a bare set member without a record. It exists so callers can
// reproduce a dangling membership entry.
func (b *Backend) AddMember(setKey, member string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.sets[setKey]
	if !ok {
		set = map[string]struct{}{}
		b.sets[setKey] = set
	}
	set[member] = struct{}{}
}

func (b *Backend) Ping(context.Context) error { return nil }

func (b *Backend) Close() error { return nil }
