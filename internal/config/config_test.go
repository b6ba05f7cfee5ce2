package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "@every 5m", cfg.CheckerSchedule)
	assert.Equal(t, 60*time.Second, cfg.PriceCacheTTL)
	assert.Equal(t, 8*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "usd", cfg.Currency)
}

func TestGetDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "90s")
	assert.Equal(t, 90*time.Second, getDuration("TEST_DURATION", time.Second))

	t.Setenv("TEST_DURATION", "120")
	assert.Equal(t, 120*time.Second, getDuration("TEST_DURATION", time.Second))

	t.Setenv("TEST_DURATION", "not a duration")
	assert.Equal(t, time.Second, getDuration("TEST_DURATION", time.Second))

	assert.Equal(t, 5*time.Minute, getDuration("TEST_DURATION_UNSET", 5*time.Minute))
}
