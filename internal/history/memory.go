package history

import (
	"context"
	"sync"
)

// MemoryStore keeps the last few runs in process memory. It backs the status
// API when no database is configured.
type MemoryStore struct {
	mu   sync.RWMutex
	runs []*Run
	max  int
}

// NewMemoryStore creates a store holding at most max runs.
func NewMemoryStore(max int) *MemoryStore {
	if max <= 0 {
		max = 1
	}
	return &MemoryStore{max: max}
}

// Save appends run, dropping the oldest entry when full.
func (m *MemoryStore) Save(ctx context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *run
	m.runs = append(m.runs, &copied)
	if len(m.runs) > m.max {
		m.runs = m.runs[len(m.runs)-m.max:]
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (m *MemoryStore) Recent(ctx context.Context, limit int) ([]*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.runs) {
		limit = len(m.runs)
	}
	out := make([]*Run, 0, limit)
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		copied := *m.runs[i]
		out = append(out, &copied)
	}
	return out, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
