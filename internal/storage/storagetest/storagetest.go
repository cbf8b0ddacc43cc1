// Package storagetest holds a conformance suite every storage.Backend must pass.
package storagetest

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kanban/internal/storage"
)

// Run exercises backend against the storage.Backend contract. newBackend must
// return an empty backend; it is called once per subtest.
func Run(t *testing.T, newBackend func(t *testing.T) storage.Backend) {
	t.Helper()

	t.Run("IncrIsStrictlyIncreasing", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		var last int64
		for i := 0; i < 5; i++ {
			n, err := b.Incr(ctx, "counter")
			require.NoError(t, err)
			assert.Greater(t, n, last)
			last = n
		}
		assert.Equal(t, int64(5), last)
	})

	t.Run("IncrConcurrentNeverCollides", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		const workers = 8
		const perWorker = 10

		var (
			mu   sync.Mutex
			seen = map[int64]bool{}
			wg   sync.WaitGroup
		)
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					n, err := b.Incr(ctx, "counter")
					if !assert.NoError(t, err) {
						return
					}
					mu.Lock()
					assert.False(t, seen[n], "duplicate value %d", n)
					seen[n] = true
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Len(t, seen, workers*perWorker)
	})

	t.Run("PutAndReadRecord", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		fields := map[string]string{"title": "Write spec", "status": "todo", "tags": ""}
		require.NoError(t, b.PutRecord(ctx, "rec:1", fields, "members", "1"))

		rec, err := b.Record(ctx, "rec:1")
		require.NoError(t, err)
		assert.Equal(t, fields, rec)

		v, ok, err := b.Field(ctx, "rec:1", "title")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "Write spec", v)

		members, err := b.Members(ctx, "members")
		require.NoError(t, err)
		assert.Equal(t, []string{"1"}, members)
	})

	t.Run("MissingRecordIsEmpty", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		rec, err := b.Record(ctx, "rec:404")
		require.NoError(t, err)
		assert.Empty(t, rec)

		_, ok, err := b.Field(ctx, "rec:404", "title")
		require.NoError(t, err)
		assert.False(t, ok)

		members, err := b.Members(ctx, "members")
		require.NoError(t, err)
		assert.Empty(t, members)
	})

	t.Run("SetFieldIfExists", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		require.NoError(t, b.PutRecord(ctx, "rec:1", map[string]string{"status": "todo", "title": "A"}, "members", "1"))

		ok, err := b.SetFieldIfExists(ctx, "rec:1", "status", "done")
		require.NoError(t, err)
		assert.True(t, ok)

		rec, err := b.Record(ctx, "rec:1")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"status": "done", "title": "A"}, rec)

		ok, err = b.SetFieldIfExists(ctx, "rec:2", "status", "done")
		require.NoError(t, err)
		assert.False(t, ok)

		rec, err = b.Record(ctx, "rec:2")
		require.NoError(t, err)
		assert.Empty(t, rec, "missing record must not be created")
	})

	t.Run("RemoveRecordIsIdempotent", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		require.NoError(t, b.PutRecord(ctx, "rec:1", map[string]string{"title": "A"}, "members", "1"))
		require.NoError(t, b.PutRecord(ctx, "rec:2", map[string]string{"title": "B"}, "members", "2"))

		require.NoError(t, b.RemoveRecord(ctx, "rec:1", "members", "1"))
		require.NoError(t, b.RemoveRecord(ctx, "rec:1", "members", "1"))

		rec, err := b.Record(ctx, "rec:1")
		require.NoError(t, err)
		assert.Empty(t, rec)

		members, err := b.Members(ctx, "members")
		require.NoError(t, err)
		assert.Equal(t, []string{"2"}, members)
	})

	t.Run("MembersAreASet", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		for i := 1; i <= 3; i++ {
			id := strconv.Itoa(i)
			require.NoError(t, b.PutRecord(ctx, "rec:"+id, map[string]string{"id": id}, "members", id))
		}
		require.NoError(t, b.PutRecord(ctx, "rec:2", map[string]string{"id": "2"}, "members", "2"))

		members, err := b.Members(ctx, "members")
		require.NoError(t, err)
		sort.Strings(members)
		assert.Equal(t, []string{"1", "2", "3"}, members)
	})

	t.Run("Ping", func(t *testing.T) {
		b := newBackend(t)
		assert.NoError(t, b.Ping(context.Background()))
	})
}
