package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gurnoornatt/supergoodleadgen/internal/model"
)

// MemoryStore is a process-local Store. It does not survive restarts and is
// meant for dry runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]model.CheckpointEntry
	runs    map[string]model.RunSummary
	puts    map[string]int
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]model.CheckpointEntry),
		runs:    make(map[string]model.RunSummary),
		puts:    make(map[string]int),
	}
}

func (m *MemoryStore) Migrate(context.Context) error { return nil }
func (m *MemoryStore) Close() error                  { return nil }

func (m *MemoryStore) Get(_ context.Context, key string) (*model.CheckpointEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *MemoryStore) GetMany(_ context.Context, keys []string) (map[string]*model.CheckpointEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*model.CheckpointEntry, len(keys))
	for _, k := range keys {
		if e, ok := m.entries[k]; ok {
			out[k] = &e
		}
	}
	return out, nil
}

func (m *MemoryStore) Put(_ context.Context, key string, entry *model.CheckpointEntry) error {
	if err := prepareEntry(key, entry); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = *entry
	m.puts[key]++
	return nil
}

// PutCount returns how many times key was written.
func (m *MemoryStore) PutCount(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts[key]
}

func (m *MemoryStore) IsResumable(ctx context.Context, key, rowHash string) (bool, error) {
	return resumable(ctx, m, key, rowHash)
}

func (m *MemoryStore) ReconcileInProgress(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	now := time.Now().UTC()
	for k, e := range m.entries {
		if e.State == model.CheckpointInProgress {
			e.State = model.CheckpointError
			e.LastError = reconcileMessage
			e.UpdatedAt = now
			m.entries[k] = e
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Counts(context.Context) (map[model.CheckpointState]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[model.CheckpointState]int)
	for _, e := range m.entries {
		counts[e.State]++
	}
	return counts, nil
}

func (m *MemoryStore) Delete(_ context.Context, state model.CheckpointState) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.entries {
		if state == "" || e.State == state {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) SaveRun(_ context.Context, summary *model.RunSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[summary.RunID] = *summary
	return nil
}

func (m *MemoryStore) LatestRun(context.Context) (*model.RunSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.runs) == 0 {
		return nil, nil
	}
	all := make([]model.RunSummary, 0, len(m.runs))
	for _, r := range m.runs {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StartedAt.After(all[j].StartedAt) })
	return &all[0], nil
}
