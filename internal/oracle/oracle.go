// Package oracle provides access to live market prices.
package oracle

import (
	"context"

	"stockwatch/internal/models"
)

// PriceOracle returns the latest traded price for a symbol.
//
// A fetch that fails for any reason (timeout, network error, unknown symbol)
// returns an error wrapping errors.ErrPriceUnavailable; callers treat that
// as the "unavailable" marker, never as a fatal condition.
type PriceOracle interface {
	Fetch(ctx context.Context, symbol string) (*models.PriceSample, error)
}
