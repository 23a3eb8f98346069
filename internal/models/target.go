// Package models defines the core domain types for the alert engine.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stockwatch/internal/errors"
)

// TriggerDirection determines which side of the threshold fires the alert.
type TriggerDirection string

const (
	// TriggerBelow fires when the price is at or below the threshold.
	TriggerBelow TriggerDirection = "below"
	// TriggerAbove fires when the price is at or above the threshold.
	TriggerAbove TriggerDirection = "above"
)

// ParseDirection normalizes a user-supplied direction string.
// An empty string defaults to TriggerBelow.
func ParseDirection(s string) (TriggerDirection, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "below":
		return TriggerBelow, true
	case "above":
		return TriggerAbove, true
	default:
		return "", false
	}
}

// TargetState tracks whether a target has already fired.
type TargetState string

const (
	// StatePending means the target is live and evaluated every cycle.
	StatePending TargetState = "pending"
	// StateNotified means the target fired and must never fire again.
	// The only ways out are deletion or re-creation as a fresh target.
	StateNotified TargetState = "notified"
)

// Target is a user's registered price threshold on a market symbol.
// One target per (user, symbol); re-creating replaces the old registration.
type Target struct {
	Symbol     string
	Threshold  decimal.Decimal
	Direction  TriggerDirection
	State      TargetState
	CreatedAt  time.Time
	NotifiedAt *time.Time
}

// NormalizeSymbol uppercases and trims a market symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Validate checks the target's structural invariants.
func (t *Target) Validate() error {
	if t.Symbol == "" {
		return errInvalid("symbol must not be empty")
	}
	if t.Symbol != NormalizeSymbol(t.Symbol) {
		return errInvalid("symbol must be uppercase")
	}
	if !t.Threshold.IsPositive() {
		return errInvalid("threshold must be a positive price")
	}
	if t.Direction != TriggerBelow && t.Direction != TriggerAbove {
		return errInvalid("direction must be below or above")
	}
	return nil
}

func errInvalid(msg string) error {
	return fmt.Errorf("%w: %s", errors.ErrInvalidTarget, msg)
}

// PriceSample is one cycle's observation of a symbol. Not persisted.
// A nil *PriceSample is the "unavailable" marker for a failed fetch.
type PriceSample struct {
	Symbol    string
	Price     decimal.Decimal
	FetchedAt time.Time
}
