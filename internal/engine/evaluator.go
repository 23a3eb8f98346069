// Package engine implements the alert evaluation and delivery cycle.
package engine

import (
	"stockwatch/internal/models"
)

// Decision is the evaluator's verdict for one target in one cycle.
type Decision int

const (
	// DecisionHold means no action this cycle.
	DecisionHold Decision = iota
	// DecisionFire means the target's condition is satisfied.
	DecisionFire
)

// String returns the decision name.
func (d Decision) String() string {
	if d == DecisionFire {
		return "fire"
	}
	return "hold"
}

// Evaluate decides whether a pending target fires against a price sample.
//
// Callers must filter out Notified targets before evaluation; Evaluate
// assumes target.State == StatePending. A nil sample is the "unavailable"
// marker and always holds. Comparisons are inclusive: a price exactly on
// the threshold fires. Pure function, no side effects.
func Evaluate(target models.Target, sample *models.PriceSample) Decision {
	if sample == nil {
		return DecisionHold
	}

	switch target.Direction {
	case models.TriggerBelow:
		if sample.Price.LessThanOrEqual(target.Threshold) {
			return DecisionFire
		}
	case models.TriggerAbove:
		if sample.Price.GreaterThanOrEqual(target.Threshold) {
			return DecisionFire
		}
	}
	return DecisionHold
}
