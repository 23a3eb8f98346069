// Package store provides target persistence interfaces and implementations.
package store

import (
	"context"

	"stockwatch/internal/models"
)

// Entry pairs a target with the user that owns it.
type Entry struct {
	UserRef string
	Target  models.Target
}

// TargetRepository defines the interface for target persistence.
//
// CommitFire is the only mutation the evaluation cycle performs. It must be
// an atomic compare-and-set: the transition to Notified is written only when
// the stored state still matches the expected one, so a target deleted or
// already fired since the cycle's snapshot is never resurrected or fired
// twice.
type TargetRepository interface {
	// Snapshot returns every pending target across all users.
	Snapshot(ctx context.Context) ([]Entry, error)

	// Save creates or replaces the target for (userRef, target.Symbol).
	// A replaced target is a fresh registration: state resets to Pending.
	Save(ctx context.Context, userRef string, target models.Target) error

	// Delete removes a target. Returns ErrTargetNotFound if absent.
	Delete(ctx context.Context, userRef, symbol string) error

	// List returns all targets owned by a user, regardless of state.
	List(ctx context.Context, userRef string) ([]models.Target, error)

	// CommitFire transitions a target to Notified if its stored state still
	// equals expected. Returns ErrCommitConflict otherwise.
	CommitFire(ctx context.Context, userRef, symbol string, expected models.TargetState) error

	// Lifecycle
	Close() error
}
