package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stockwatch/internal/errors"
	"stockwatch/internal/models"
)

func newTestTarget(symbol string, threshold string, dir models.TriggerDirection) models.Target {
	return models.Target{
		Symbol:    symbol,
		Threshold: decimal.RequireFromString(threshold),
		Direction: dir,
		State:     models.StatePending,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

// repoUnderTest runs the same contract checks against every implementation.
func repoUnderTest(t *testing.T) map[string]TargetRepository {
	t.Helper()

	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "targets.db"))
	if err != nil {
		t.Fatalf("Failed to create sqlite store: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]TargetRepository{
		"sqlite": sqlite,
		"memory": NewMemoryStore(),
	}
}

func TestSaveAndSnapshot(t *testing.T) {
	for name, repo := range repoUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if err := repo.Save(ctx, "user-a", newTestTarget("AAPL", "150", models.TriggerBelow)); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			if err := repo.Save(ctx, "user-b", newTestTarget("MSFT", "300", models.TriggerBelow)); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			entries, err := repo.Snapshot(ctx)
			if err != nil {
				t.Fatalf("Snapshot failed: %v", err)
			}
			if len(entries) != 2 {
				t.Fatalf("Expected 2 entries, got %d", len(entries))
			}
			if entries[0].UserRef != "user-a" || entries[0].Target.Symbol != "AAPL" {
				t.Errorf("Unexpected first entry: %+v", entries[0])
			}
			if !entries[0].Target.Threshold.Equal(decimal.RequireFromString("150")) {
				t.Errorf("Threshold round-trip mismatch: %s", entries[0].Target.Threshold)
			}
		})
	}
}

func TestSaveRejectsInvalidTarget(t *testing.T) {
	for name, repo := range repoUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			bad := newTestTarget("aapl", "150", models.TriggerBelow) // not uppercased
			if err := repo.Save(ctx, "user-a", bad); !errors.Is(err, errors.ErrInvalidTarget) {
				t.Errorf("Expected ErrInvalidTarget, got %v", err)
			}

			bad = newTestTarget("AAPL", "0", models.TriggerBelow)
			if err := repo.Save(ctx, "user-a", bad); !errors.Is(err, errors.ErrInvalidTarget) {
				t.Errorf("Expected ErrInvalidTarget for zero threshold, got %v", err)
			}
		})
	}
}

func TestCommitFireTransitionsOnce(t *testing.T) {
	for name, repo := range repoUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if err := repo.Save(ctx, "user-a", newTestTarget("AAPL", "150", models.TriggerBelow)); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			if err := repo.CommitFire(ctx, "user-a", "AAPL", models.StatePending); err != nil {
				t.Fatalf("First CommitFire failed: %v", err)
			}

			// A second commit must conflict: the target already fired.
			err := repo.CommitFire(ctx, "user-a", "AAPL", models.StatePending)
			if !errors.Is(err, errors.ErrCommitConflict) {
				t.Errorf("Expected ErrCommitConflict on second commit, got %v", err)
			}

			// Notified targets are excluded from snapshots.
			entries, err := repo.Snapshot(ctx)
			if err != nil {
				t.Fatalf("Snapshot failed: %v", err)
			}
			if len(entries) != 0 {
				t.Errorf("Notified target leaked into snapshot: %+v", entries)
			}

			// But still visible to the owner, with the fired state.
			targets, err := repo.List(ctx, "user-a")
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(targets) != 1 || targets[0].State != models.StateNotified {
				t.Errorf("Expected one notified target, got %+v", targets)
			}
			if targets[0].NotifiedAt == nil {
				t.Error("NotifiedAt not set after commit")
			}
		})
	}
}

func TestDeleteWinsOverCommit(t *testing.T) {
	for name, repo := range repoUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if err := repo.Save(ctx, "user-a", newTestTarget("TSLA", "900", models.TriggerAbove)); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			if err := repo.Delete(ctx, "user-a", "TSLA"); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}

			// A commit racing with the delete must not resurrect the target.
			err := repo.CommitFire(ctx, "user-a", "TSLA", models.StatePending)
			if !errors.Is(err, errors.ErrCommitConflict) {
				t.Errorf("Expected ErrCommitConflict after delete, got %v", err)
			}

			targets, err := repo.List(ctx, "user-a")
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(targets) != 0 {
				t.Errorf("Deleted target resurrected: %+v", targets)
			}
		})
	}
}

func TestDeleteMissingTarget(t *testing.T) {
	for name, repo := range repoUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			err := repo.Delete(context.Background(), "user-a", "NOPE")
			if !errors.Is(err, errors.ErrTargetNotFound) {
				t.Errorf("Expected ErrTargetNotFound, got %v", err)
			}
		})
	}
}

func TestSaveReplacesRegistration(t *testing.T) {
	for name, repo := range repoUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if err := repo.Save(ctx, "user-a", newTestTarget("AAPL", "150", models.TriggerBelow)); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			if err := repo.CommitFire(ctx, "user-a", "AAPL", models.StatePending); err != nil {
				t.Fatalf("CommitFire failed: %v", err)
			}

			// Re-creating the alert is a fresh registration: pending again.
			if err := repo.Save(ctx, "user-a", newTestTarget("AAPL", "140", models.TriggerBelow)); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			entries, err := repo.Snapshot(ctx)
			if err != nil {
				t.Fatalf("Snapshot failed: %v", err)
			}
			if len(entries) != 1 {
				t.Fatalf("Expected re-created target in snapshot, got %d entries", len(entries))
			}
			if !entries[0].Target.Threshold.Equal(decimal.RequireFromString("140")) {
				t.Errorf("Expected replaced threshold 140, got %s", entries[0].Target.Threshold)
			}
		})
	}
}
