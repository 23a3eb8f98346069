package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"stockwatch/internal/errors"
	"stockwatch/internal/models"
)

func nowUTC() time.Time { return time.Now().UTC() }

// MemoryStore implements TargetRepository with an in-process map.
// Useful for tests and for running without a database file. All operations
// take the mutex for their full duration, so CommitFire's check-then-write
// is atomic with respect to Save and Delete.
type MemoryStore struct {
	mu      sync.Mutex
	targets map[string]map[string]models.Target // userRef -> symbol -> target
}

// NewMemoryStore creates an empty in-memory target repository.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		targets: make(map[string]map[string]models.Target),
	}
}

// Snapshot returns every pending target across all users.
func (m *MemoryStore) Snapshot(ctx context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var entries []Entry
	for userRef, bySymbol := range m.targets {
		for _, t := range bySymbol {
			if t.State == models.StatePending {
				entries = append(entries, Entry{UserRef: userRef, Target: t})
			}
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].UserRef != entries[j].UserRef {
			return entries[i].UserRef < entries[j].UserRef
		}
		return entries[i].Target.Symbol < entries[j].Target.Symbol
	})
	return entries, nil
}

// Save creates or replaces the target for (userRef, target.Symbol).
func (m *MemoryStore) Save(ctx context.Context, userRef string, target models.Target) error {
	if err := target.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	bySymbol, ok := m.targets[userRef]
	if !ok {
		bySymbol = make(map[string]models.Target)
		m.targets[userRef] = bySymbol
	}
	bySymbol[target.Symbol] = target
	return nil
}

// Delete removes a target.
func (m *MemoryStore) Delete(ctx context.Context, userRef, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bySymbol, ok := m.targets[userRef]
	if !ok {
		return errors.Wrapf(errors.ErrTargetNotFound, "%s for user %s", symbol, userRef)
	}
	if _, ok := bySymbol[symbol]; !ok {
		return errors.Wrapf(errors.ErrTargetNotFound, "%s for user %s", symbol, userRef)
	}

	delete(bySymbol, symbol)
	if len(bySymbol) == 0 {
		delete(m.targets, userRef)
	}
	return nil
}

// List returns all targets owned by a user.
func (m *MemoryStore) List(ctx context.Context, userRef string) ([]models.Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var targets []models.Target
	for _, t := range m.targets[userRef] {
		targets = append(targets, t)
	}
	sort.Slice(targets, func(i, j int) bool {
		return targets[i].Symbol < targets[j].Symbol
	})
	return targets, nil
}

// CommitFire transitions a target to Notified iff its state still matches
// expected.
func (m *MemoryStore) CommitFire(ctx context.Context, userRef, symbol string, expected models.TargetState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.targets[userRef][symbol]
	if !ok || t.State != expected {
		return errors.Wrapf(errors.ErrCommitConflict, "%s for user %s", symbol, userRef)
	}

	now := nowUTC()
	t.State = models.StateNotified
	t.NotifiedAt = &now
	m.targets[userRef][symbol] = t
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}
