package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAvailabilityOffers(t *testing.T) {
	a := &Availability{TimesCSV: "2024-03-01 14:00, 2024-03-01 15:00,,"}

	assert.Equal(t, []string{"2024-03-01 14:00", "2024-03-01 15:00"}, a.Slots())
	assert.True(t, a.Offers("2024-03-01 14:00"))
	assert.True(t, a.Offers(" 2024-03-01 15:00 "))
	assert.False(t, a.Offers("2024-03-01 14"))
	assert.False(t, a.Offers("2024-03-01 16:00"))
	assert.False(t, a.Offers(""))
}

func TestNilAvailabilityHasNoSlots(t *testing.T) {
	var a *Availability
	assert.Empty(t, a.Slots())
	assert.False(t, a.Offers("2024-03-01 14:00"))
}
