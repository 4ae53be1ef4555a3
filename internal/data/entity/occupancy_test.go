package entity

import (
	"testing"
	"time"

	"movie-ticket-booking/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOccupancyMap_Claim(t *testing.T) {
	m := OccupancyMap{"A1": "user_a"}

	err := m.Claim([]string{"A2", "A1"}, "user_b")
	require.Error(t, err)
	assert.True(t, apperror.IsConflict(err))
	assert.Equal(t, []string{"A1"}, apperror.DetailsOf(err))
	// all-or-nothing: A2 must not be claimed
	assert.NotContains(t, m, "A2")

	require.NoError(t, m.Claim([]string{"B1", "B2"}, "user_b"))
	assert.Equal(t, "user_b", m["B1"])
	assert.Equal(t, []string{"A1", "B1", "B2"}, m.Labels())
}

func TestOccupancyMap_Release(t *testing.T) {
	m := OccupancyMap{"A1": "user_a", "A2": "user_b", "A3": "user_a"}

	released := m.Release([]string{"A1", "A2", "Z9"}, "user_a")

	assert.Equal(t, []string{"A1"}, released)
	assert.Equal(t, OccupancyMap{"A2": "user_b", "A3": "user_a"}, m)
}

func TestTheaterTier_Premium(t *testing.T) {
	tests := []struct {
		tier    TheaterTier
		premium float64
		valid   bool
	}{
		{TierStandard, 0, true},
		{TierIMAX, 5, true},
		{TierPremium, 15, true},
		{TheaterTier("4DX"), 0, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			assert.Equal(t, tt.premium, tt.tier.Premium())
			assert.Equal(t, tt.valid, tt.tier.Valid())
		})
	}
}

func TestBooking_HoldExpired(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	b := &Booking{BaseNoDelete: BaseNoDelete{CreatedAt: now.Add(-11 * time.Minute)}}

	assert.True(t, b.HoldExpired(now, 10*time.Minute))
	assert.Equal(t, BookingStatusPending, b.Status())

	b.IsPaid = true
	assert.False(t, b.HoldExpired(now, 10*time.Minute))
	assert.Equal(t, BookingStatusPaid, b.Status())

	fresh := &Booking{BaseNoDelete: BaseNoDelete{CreatedAt: now.Add(-9 * time.Minute)}}
	assert.False(t, fresh.HoldExpired(now, 10*time.Minute))
}

func TestShow_SeatPrice(t *testing.T) {
	s := &Show{ShowPrice: 10, TheaterType: TierIMAX}
	assert.Equal(t, 15.0, s.SeatPrice())

	now := time.Now()
	s.ShowDateTime = now
	assert.True(t, s.HasStarted(now))
	s.ShowDateTime = now.Add(time.Hour)
	assert.False(t, s.HasStarted(now))
}
