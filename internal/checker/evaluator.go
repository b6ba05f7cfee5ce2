package checker

import (
	"cryptotracker/internal/models"
)

// ShouldTrigger decides whether an alert fires at the current price.
// A single qualifying sample is enough; there is no hysteresis or
// debounce. Unknown directions never trigger.
func ShouldTrigger(direction string, targetPrice, currentPrice float64) bool {
	switch direction {
	case models.DirectionAbove:
		return currentPrice >= targetPrice
	case models.DirectionBelow:
		return currentPrice <= targetPrice
	default:
		return false
	}
}
