package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MODERATION_BAN_THRESHOLD", "0")
	t.Setenv("BOOKING_STALE_AFTER", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Moderation.BanThreshold)
	assert.Equal(t, 7*24*time.Hour, cfg.Booking.StaleAfter)
	assert.Equal(t, 60, cfg.Booking.DefaultDurationMinutes)
	assert.False(t, cfg.Booking.StaleSweepEnabled)
}

func TestSplitAndTrim(t *testing.T) {
	assert.Nil(t, splitAndTrim(""))
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, splitAndTrim(" https://a.example , ,https://b.example"))
}
