package taskstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kanban/internal/models"
	"kanban/internal/storage"
	"kanban/internal/storage/memory"
)

// fakeClock hands out a fixed time that tests advance explicitly.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestStore(t *testing.T) (*Store, *memory.Backend, *fakeClock) {
	t.Helper()

	kv := memory.New()
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(kv, logger, WithClock(clock.Now)), kv, clock
}

func TestCreateThenGet(t *testing.T) {
	s, _, clock := newTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, "  Write spec  ", "\tdraft the doc\n", []string{" docs ", "", "q4"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, "Write spec", created.Title)
	assert.Equal(t, "draft the doc", created.Description)
	assert.Equal(t, models.StatusTodo, created.Status)
	assert.Equal(t, clock.Now().Unix(), created.CreatedAt)
	assert.Equal(t, []string{"docs", "q4"}, created.Tags)

	got, ok, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, created, got)
}

func TestCreateDefaults(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, "Review PR", "", nil)
	require.NoError(t, err)

	got, ok, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "", got.Description)
	assert.Equal(t, []string{}, got.Tags)
}

func TestCreateRejectsEmptyTitle(t *testing.T) {
	s, kv, _ := newTestStore(t)
	ctx := context.Background()

	for _, title := range []string{"", "   ", "\t\n"} {
		_, err := s.Create(ctx, title, "desc", nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrValidation))
	}

	tasks, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	// no id was consumed
	n, err := kv.Incr(ctx, "task:id")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCreateRejectsBadTags(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		tags []string
	}{
		{name: "delimiter", tags: []string{"a,b"}},
		{name: "too long", tags: []string{"abcdefghijklmnopqrstuvwxyz0123456789"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Create(ctx, "title", "", tc.tags)
			assert.True(t, errors.Is(err, ErrValidation))
		})
	}
}

func TestCreateIDsStrictlyIncreasing(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	var last int64
	for i := 0; i < 10; i++ {
		task, err := s.Create(ctx, "task", "", nil)
		require.NoError(t, err)
		assert.Greater(t, task.ID, last)
		last = task.ID
	}
}

func TestCreateConcurrentUniqueIDs(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	const n = 50
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task, err := s.Create(ctx, "parallel", "", nil)
			if assert.NoError(t, err) {
				ids <- task.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)

	tasks, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, n)
}

func TestIDsNotReusedAfterDelete(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	a, err := s.Create(ctx, "A", "", nil)
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, a.ID))

	b, err := s.Create(ctx, "B", "", nil)
	require.NoError(t, err)
	assert.Greater(t, b.ID, a.ID)
}

func TestGetMissing(t *testing.T) {
	s, _, _ := newTestStore(t)

	_, ok, err := s.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListOrderedByCreatedAt(t *testing.T) {
	s, kv, clock := newTestStore(t)
	ctx := context.Background()

	first, err := s.Create(ctx, "first", "", nil)
	require.NoError(t, err)
	clock.Advance(time.Minute)
	second, err := s.Create(ctx, "second", "", nil)
	require.NoError(t, err)

	// a record written with an older timestamp must sort first even with a
	// higher id
	older := models.Task{ID: 99, Title: "imported", Status: models.StatusDone, CreatedAt: first.CreatedAt - 60, Tags: []string{}}
	require.NoError(t, kv.PutRecord(ctx, "task:99", encodeTask(older), "tasks", "99"))

	tasks, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, []int64{99, first.ID, second.ID}, taskIDs(tasks))

	for i := 1; i < len(tasks); i++ {
		assert.LessOrEqual(t, tasks[i-1].CreatedAt, tasks[i].CreatedAt)
	}
}

func TestListSameSecondTiesByID(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		_, err := s.Create(ctx, "same second", "", nil)
		require.NoError(t, err)
	}

	tasks, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, taskIDs(tasks))
}

func TestListSkipsDanglingIDs(t *testing.T) {
	s, kv, _ := newTestStore(t)
	ctx := context.Background()

	a, err := s.Create(ctx, "A", "", nil)
	require.NoError(t, err)
	kv.AddMember("tasks", "404")

	tasks, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID}, taskIDs(tasks))
	assert.Equal(t, uint64(1), s.Stats().DanglingSkipped)
}

func TestListSkipsCorruptRecords(t *testing.T) {
	s, kv, _ := newTestStore(t)
	ctx := context.Background()

	a, err := s.Create(ctx, "A", "", nil)
	require.NoError(t, err)
	require.NoError(t, kv.PutRecord(ctx, "task:5", map[string]string{"id": "five", "title": "broken"}, "tasks", "5"))

	tasks, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID}, taskIDs(tasks))
	assert.Equal(t, uint64(1), s.Stats().CorruptSkipped)

	_, _, err = s.Get(ctx, 5)
	assert.True(t, errors.Is(err, ErrCorruptRecord))
}

func TestUpdateStatus(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	task, err := s.Create(ctx, "A", "desc", []string{"x"})
	require.NoError(t, err)

	for _, status := range []models.Status{models.StatusDone, models.StatusTodo, models.StatusInProgress, models.StatusInProgress} {
		ok, err := s.UpdateStatus(ctx, task.ID, status)
		require.NoError(t, err)
		assert.True(t, ok)

		got, _, err := s.Get(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, status, got.Status)

		want := task
		want.Status = status
		assert.Equal(t, want, got, "only status may change")
	}

	current, ok, err := s.StatusOf(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.StatusInProgress, current)
}

func TestUpdateStatusRejectsInvalid(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	task, err := s.Create(ctx, "A", "", nil)
	require.NoError(t, err)

	ok, err := s.UpdateStatus(ctx, task.ID, "bogus")
	require.NoError(t, err)
	assert.False(t, ok)

	got, _, err := s.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusTodo, got.Status)
}

func TestUpdateStatusMissingCreatesNothing(t *testing.T) {
	s, kv, _ := newTestStore(t)
	ctx := context.Background()

	ok, err := s.UpdateStatus(ctx, 7, models.StatusDone)
	require.NoError(t, err)
	assert.False(t, ok)

	rec, err := kv.Record(ctx, "task:7")
	require.NoError(t, err)
	assert.Empty(t, rec)

	_, found, err := s.StatusOf(ctx, 7)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDeleteIsIdempotent(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	task, err := s.Create(ctx, "A", "", nil)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, task.ID))
	require.NoError(t, s.Delete(ctx, task.ID))
	require.NoError(t, s.Delete(ctx, 12345))

	_, ok, err := s.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	tasks, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.Zero(t, s.Stats().DanglingSkipped)
}

func TestBoardScenario(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	a, err := s.Create(ctx, "Write spec", "", nil)
	require.NoError(t, err)
	b, err := s.Create(ctx, "Review PR", "", nil)
	require.NoError(t, err)

	tasks, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID, b.ID}, taskIDs(tasks))

	ok, err := s.UpdateStatus(ctx, a.ID, models.StatusInProgress)
	require.NoError(t, err)
	require.True(t, ok)

	gotA, _, err := s.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, gotA.Status)
	gotB, _, err := s.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusTodo, gotB.Status)

	require.NoError(t, s.Delete(ctx, b.ID))
	tasks, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID}, taskIDs(tasks))

	board := models.GroupByStatus(tasks)
	assert.Equal(t, len(tasks), board.Total())

	assert.Equal(t, Stats{Created: 2, StatusUpdates: 1, Deleted: 1}, s.Stats())
}

func TestKeyPrefix(t *testing.T) {
	kv := memory.New()
	s := New(kv, nil, WithKeyPrefix("kanban:"))
	ctx := context.Background()

	task, err := s.Create(ctx, "A", "", nil)
	require.NoError(t, err)

	rec, err := kv.Record(ctx, "kanban:task:1")
	require.NoError(t, err)
	assert.Equal(t, "A", rec["title"])

	members, err := kv.Members(ctx, "kanban:tasks")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, members)
	assert.Equal(t, int64(1), task.ID)
}

// failingBackend fails every call with an unavailable error.
type failingBackend struct{}

var errDown = storage.Unavailable("dial", errors.New("connection refused"))

func (failingBackend) Incr(context.Context, string) (int64, error) { return 0, errDown }
func (failingBackend) PutRecord(context.Context, string, map[string]string, string, string) error {
	return errDown
}
func (failingBackend) Record(context.Context, string) (map[string]string, error) { return nil, errDown }
func (failingBackend) Field(context.Context, string, string) (string, bool, error) {
	return "", false, errDown
}
func (failingBackend) SetFieldIfExists(context.Context, string, string, string) (bool, error) {
	return false, errDown
}
func (failingBackend) RemoveRecord(context.Context, string, string, string) error { return errDown }
func (failingBackend) Members(context.Context, string) ([]string, error)        { return nil, errDown }
func (failingBackend) Ping(context.Context) error                               { return errDown }
func (failingBackend) Close() error                                             { return nil }

func TestBackendErrorsPropagate(t *testing.T) {
	s := New(failingBackend{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	_, err := s.Create(ctx, "A", "", nil)
	assert.True(t, errors.Is(err, storage.ErrUnavailable))

	_, _, err = s.Get(ctx, 1)
	assert.True(t, errors.Is(err, storage.ErrUnavailable))

	_, err = s.List(ctx)
	assert.True(t, errors.Is(err, storage.ErrUnavailable))

	_, err = s.UpdateStatus(ctx, 1, models.StatusDone)
	assert.True(t, errors.Is(err, storage.ErrUnavailable))

	assert.True(t, errors.Is(s.Delete(ctx, 1), storage.ErrUnavailable))
	assert.True(t, errors.Is(s.Ping(ctx), storage.ErrUnavailable))
}

func taskIDs(tasks []models.Task) []int64 {
	out := make([]int64, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}
