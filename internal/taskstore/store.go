// Package taskstore owns task records and the rules for creating, listing,
// moving and removing them on top of a storage.Backend.
package taskstore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"kanban/internal/models"
	"kanban/internal/storage"
)

// MaxTagLength bounds a single tag, in characters.
const MaxTagLength = 32

// Store is the task storage and retrieval contract. It holds no task state of
// its own; concurrent callers rely on the backend's atomic primitives.
type Store struct {
	kv     storage.Backend
	logger *slog.Logger
	now    func() time.Time
	keys   keys
	stats  counters
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the time source used for created_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithKeyPrefix namespaces every backend key, e.g. "kanban:".
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.keys = newKeys(prefix) }
}

type keys struct {
	counter string
	members string
	record  string
}

func newKeys(prefix string) keys {
	return keys{
		counter: prefix + "task:id",
		members: prefix + "tasks",
		record:  prefix + "task:",
	}
}

func (k keys) task(id string) string { return k.record + id }

// New constructs a Store on top of kv.
func New(kv storage.Backend, logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		kv:     kv,
		logger: logger,
		now:    time.Now,
		keys:   newKeys(""),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates and persists a new task in the todo column.
func (s *Store) Create(ctx context.Context, title, description string, tags []string) (models.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Task{}, fmt.Errorf("%w: title required", ErrValidation)
	}
	cleanTags, err := normalizeTags(tags)
	if err != nil {
		return models.Task{}, err
	}

	id, err := s.kv.Incr(ctx, s.keys.counter)
	if err != nil {
		return models.Task{}, fmt.Errorf("allocate task id: %w", err)
	}

	task := models.Task{
		ID:          id,
		Title:       title,
		Description: strings.TrimSpace(description),
		Status:      models.StatusTodo,
		CreatedAt:   s.now().Unix(),
		Tags:        cleanTags,
	}

	member := strconv.FormatInt(id, 10)
	if err := s.kv.PutRecord(ctx, s.keys.task(member), encodeTask(task), s.keys.members, member); err != nil {
		return models.Task{}, fmt.Errorf("save task %d: %w", id, err)
	}

	s.stats.created.Add(1)
	s.logger.Debug("task created", slog.Int64("id", id))
	return task, nil
}

// Get returns the task with id. The boolean is false when no such task exists.
func (s *Store) Get(ctx context.Context, id int64) (models.Task, bool, error) {
	return s.get(ctx, strconv.FormatInt(id, 10))
}

func (s *Store) get(ctx context.Context, member string) (models.Task, bool, error) {
	rec, err := s.kv.Record(ctx, s.keys.task(member))
	if err != nil {
		return models.Task{}, false, fmt.Errorf("read task %s: %w", member, err)
	}
	if len(rec) == 0 {
		return models.Task{}, false, nil
	}
	task, err := decodeTask(rec)
	if err != nil {
		return models.Task{}, false, fmt.Errorf("decode task %s: %w", member, err)
	}
	return task, true, nil
}

// List returns every task ordered by creation time, oldest first. Ids in the
// membership set without a record are skipped and counted.
func (s *Store) List(ctx context.Context) ([]models.Task, error) {
	members, err := s.kv.Members(ctx, s.keys.members)
	if err != nil {
		return nil, fmt.Errorf("list task ids: %w", err)
	}
	sortMembers(members)

	tasks := make([]models.Task, 0, len(members))
	for _, member := range members {
		task, ok, err := s.get(ctx, member)
		if err != nil {
			if isCorrupt(err) {
				s.stats.corruptSkipped.Add(1)
				s.logger.Error("skipping unreadable task record", slog.String("id", member), slog.String("error", err.Error()))
				continue
			}
			return nil, err
		}
		if !ok {
			s.stats.danglingSkipped.Add(1)
			s.logger.Warn("skipping task id without record", slog.String("id", member))
			continue
		}
		tasks = append(tasks, task)
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt < tasks[j].CreatedAt
	})
	return tasks, nil
}

// StatusOf reads only the status field of a task.
func (s *Store) StatusOf(ctx context.Context, id int64) (models.Status, bool, error) {
	v, ok, err := s.kv.Field(ctx, s.keys.task(strconv.FormatInt(id, 10)), fieldStatus)
	if err != nil {
		return "", false, fmt.Errorf("read task %d status: %w", id, err)
	}
	return models.Status(v), ok, nil
}

// UpdateStatus moves a task to another column. It reports false without
// touching anything when status is invalid or the task does not exist.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status models.Status) (bool, error) {
	if !status.Valid() {
		return false, nil
	}
	member := strconv.FormatInt(id, 10)
	ok, err := s.kv.SetFieldIfExists(ctx, s.keys.task(member), fieldStatus, string(status))
	if err != nil {
		return false, fmt.Errorf("update task %d: %w", id, err)
	}
	if ok {
		s.stats.statusUpdates.Add(1)
		s.logger.Debug("task moved", slog.Int64("id", id), slog.String("status", string(status)))
	}
	return ok, nil
}

// Delete removes a task. Deleting an unknown id is a no-op.
func (s *Store) Delete(ctx context.Context, id int64) error {
	member := strconv.FormatInt(id, 10)
	if err := s.kv.RemoveRecord(ctx, s.keys.task(member), s.keys.members, member); err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	s.stats.deleted.Add(1)
	return nil
}

// Ping checks the backend.
func (s *Store) Ping(ctx context.Context) error {
	return s.kv.Ping(ctx)
}

// normalizeTags trims tags and drops empty ones. Tags cannot contain the
// stored delimiter.
func normalizeTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if strings.Contains(tag, tagDelimiter) {
			return nil, fmt.Errorf("%w: tag %q must not contain %q", ErrValidation, tag, tagDelimiter)
		}
		if utf8.RuneCountInString(tag) > MaxTagLength {
			return nil, fmt.Errorf("%w: tag %q longer than %d characters", ErrValidation, tag, MaxTagLength)
		}
		out = append(out, tag)
	}
	return out, nil
}

// sortMembers orders ids numerically so that tasks created in the same second
// list in id order. Non-numeric members sort last.
func sortMembers(members []string) {
	sort.SliceStable(members, func(i, j int) bool {
		a, errA := strconv.ParseInt(members[i], 10, 64)
		b, errB := strconv.ParseInt(members[j], 10, 64)
		switch {
		case errA != nil && errB != nil:
			return members[i] < members[j]
		case errA != nil:
			return false
		case errB != nil:
			return true
		}
		return a < b
	})
}
