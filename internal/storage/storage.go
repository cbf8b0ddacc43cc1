// Package storage defines the key-value primitives the task store is built on.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable marks failures talking to the backing store. Backends join it
// with the underlying cause so both remain reachable through errors.Is.
var ErrUnavailable = errors.New("store unavailable")

// Backend is a key-value store offering an atomic counter, per-key field maps
// and sets. Compound operations (PutRecord, RemoveRecord, SetFieldIfExists)
// must be atomic with respect to readers.
type Backend interface {
	// Incr atomically increments the counter at key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
	// PutRecord writes fields into the map at recordKey and adds member to setKey.
	PutRecord(ctx context.Context, recordKey string, fields map[string]string, setKey, member string) error
	// Record returns every field of recordKey, or an empty map when absent.
	Record(ctx context.Context, recordKey string) (map[string]string, error)
	// Field returns a single field of recordKey.
	Field(ctx context.Context, recordKey, field string) (string, bool, error)
	// SetFieldIfExists writes one field only when recordKey already exists.
	SetFieldIfExists(ctx context.Context, recordKey, field, value string) (bool, error)
	// RemoveRecord deletes recordKey and removes member from setKey.
	RemoveRecord(ctx context.Context, recordKey, setKey, member string) error
	// Members returns the members of setKey in no particular order.
	Members(ctx context.Context, setKey string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// Unavailable wraps err as an ErrUnavailable failure for operation op.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
