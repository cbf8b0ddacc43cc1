package taskstore

import (
	"errors"
	"sync/atomic"
)

type counters struct {
	created         atomic.Uint64
	statusUpdates   atomic.Uint64
	deleted         atomic.Uint64
	danglingSkipped atomic.Uint64
	corruptSkipped  atomic.Uint64
}

// Stats is a snapshot of the store's operation counters since start.
type Stats struct {
	Created         uint64 `json:"created"`
	StatusUpdates   uint64 `json:"status_updates"`
	Deleted         uint64 `json:"deleted"`
	DanglingSkipped uint64 `json:"dangling_skipped"`
	CorruptSkipped  uint64 `json:"corrupt_skipped"`
}

// Stats returns the current counters.
func (s *Store) Stats() Stats {
	return Stats{
		Created:         s.stats.created.Load(),
		StatusUpdates:   s.stats.statusUpdates.Load(),
		Deleted:         s.stats.deleted.Load(),
		DanglingSkipped: s.stats.danglingSkipped.Load(),
		CorruptSkipped:  s.stats.corruptSkipped.Load(),
	}
}

func isCorrupt(err error) bool {
	return errors.Is(err, ErrCorruptRecord)
}
