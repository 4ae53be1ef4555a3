package entity

import (
	"time"

	"github.com/google/uuid"
)

type TheaterTier string

const (
	TierStandard TheaterTier = "Standard"
	TierIMAX     TheaterTier = "IMAX"
	TierPremium  TheaterTier = "Premium"
)

var tierPremiums = map[TheaterTier]float64{
	TierStandard: 0,
	TierIMAX:     5,
	TierPremium:  15,
}

// Premium is the fixed per-seat surcharge of the tier
func (t TheaterTier) Premium() float64 {
	return tierPremiums[t]
}

func (t TheaterTier) Valid() bool {
	_, ok := tierPremiums[t]
	return ok
}

type Show struct {
	BaseNoDelete
	MovieID       string       `db:"movie_id"`
	ShowDateTime  time.Time    `db:"show_date_time"`
	ShowPrice     float64      `db:"show_price"`
	TheaterType   TheaterTier  `db:"theater_type"`
	OccupiedSeats OccupancyMap `db:"occupied_seats"`
}

// SeatPrice is the per-seat price charged for this show
func (s *Show) SeatPrice() float64 {
	return s.ShowPrice + s.TheaterType.Premium()
}

// HasStarted reports whether the show is no longer bookable at now
func (s *Show) HasStarted(now time.Time) bool {
	return !s.ShowDateTime.After(now)
}

// ShowWithMovie is a show joined with its movie for listings
type ShowWithMovie struct {
	Show
	Movie Movie
}

func NewShowID() uuid.UUID {
	return uuid.New()
}
