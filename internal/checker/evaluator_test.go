package checker

import (
	"testing"

	"cryptotracker/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestShouldTrigger(t *testing.T) {
	tests := []struct {
		name      string
		direction string
		target    float64
		current   float64
		want      bool
	}{
		{"above, current past target", models.DirectionAbove, 50000, 50000.01, true},
		{"above, current at target", models.DirectionAbove, 50000, 50000, true},
		{"above, current just below target", models.DirectionAbove, 50000, 49999.99, false},
		{"below, current past target", models.DirectionBelow, 50000, 49999.99, true},
		{"below, current at target", models.DirectionBelow, 50000, 50000, true},
		{"below, current just above target", models.DirectionBelow, 50000, 50000.01, false},
		{"unknown direction never fires", "sideways", 50000, 50000, false},
		{"empty direction never fires", "", 1, 100, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldTrigger(tt.direction, tt.target, tt.current))
		})
	}
}
