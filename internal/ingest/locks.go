package ingest

import "sync"

// eventLocks serializes pipeline runs per event id, so a delete cannot
// interleave with an ingestion of the same event. Entries are tiny and
// event ids bounded, so the map is never shrunk.
type eventLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newEventLocks() *eventLocks {
	return &eventLocks{locks: make(map[int64]*sync.Mutex)}
}

// lock acquires the per-event mutex and returns its release func.
func (l *eventLocks) lock(eventID int64) func() {
	l.mu.Lock()
	m, ok := l.locks[eventID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[eventID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
