package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLedger keeps entries in process memory. It backs tests and the
// single-binary setup without a database.
type MemoryLedger struct {
	mu      sync.RWMutex
	entries map[string][]*Entry // userID -> entries, append order
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: make(map[string][]*Entry)}
}

func (m *MemoryLedger) Record(ctx context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.Outcome.Terminal() {
		for _, prev := range m.entries[e.UserID] {
			if prev.JobID == e.JobID && prev.Outcome.Terminal() {
				return ErrDuplicateTerminal
			}
		}
	}

	stored := *e
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	m.entries[e.UserID] = append(m.entries[e.UserID], &stored)
	e.ID = stored.ID
	e.CreatedAt = stored.CreatedAt
	return nil
}

func (m *MemoryLedger) Has(ctx context.Context, userID, jobID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.entries[userID] {
		if e.JobID == jobID && e.Outcome.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryLedger) TerminalJobs(ctx context.Context, userID string) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make(map[string]bool)
	for _, e := range m.entries[userID] {
		if e.Outcome.Terminal() {
			jobs[e.JobID] = true
		}
	}
	return jobs, nil
}

func (m *MemoryLedger) List(ctx context.Context, userID string, f Filter) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Entry
	for _, e := range m.entries[userID] {
		if f.Outcome != "" && e.Outcome != f.Outcome {
			continue
		}
		if !f.Since.IsZero() && e.CreatedAt.Before(f.Since) {
			continue
		}
		copied := *e
		out = append(out, &copied)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemoryLedger) CountAppliedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, e := range m.entries[userID] {
		if e.Outcome == OutcomeApplied && !e.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *MemoryLedger) FailureCount(ctx context.Context, userID, jobID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, e := range m.entries[userID] {
		if e.JobID == jobID && e.Outcome == OutcomeFailed {
			count++
		}
	}
	return count, nil
}
