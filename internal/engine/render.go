package engine

import (
	"fmt"

	"stockwatch/internal/models"
)

// RenderMessage builds the delivery text for a firing target. The engine
// owns rendering; transports receive a finished string.
func RenderMessage(target models.Target, sample *models.PriceSample) string {
	var emoji, condition string
	switch target.Direction {
	case models.TriggerAbove:
		emoji = "📈"
		condition = "at or above"
	default:
		emoji = "📉"
		condition = "at or below"
	}

	return fmt.Sprintf("%s Price alert: %s\nCurrent price: %s\nTarget: %s %s",
		emoji,
		target.Symbol,
		sample.Price.String(),
		condition,
		target.Threshold.StringFixed(2),
	)
}
