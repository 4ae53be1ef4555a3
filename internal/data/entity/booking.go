package entity

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusPending BookingStatus = "pending"
	BookingStatusPaid    BookingStatus = "paid"
)

type Booking struct {
	BaseNoDelete
	UserID           string     `db:"user_id"`
	ShowID           uuid.UUID  `db:"show_id"`
	BookedSeats      []string   `db:"booked_seats"`
	Amount           float64    `db:"amount"`
	IsPaid           bool       `db:"is_paid"`
	PaymentSessionID *string    `db:"payment_session_id"`
	PaymentLink      *string    `db:"payment_link"`
	PaidAt           *time.Time `db:"paid_at"`
}

func (b *Booking) Status() BookingStatus {
	if b.IsPaid {
		return BookingStatusPaid
	}
	return BookingStatusPending
}

// HoldExpired reports whether an unpaid booking is past its payment window
func (b *Booking) HoldExpired(now time.Time, holdTimeout time.Duration) bool {
	return !b.IsPaid && b.CreatedAt.Before(now.Add(-holdTimeout))
}

// BookingDetail is a booking joined with its show, movie and user
type BookingDetail struct {
	Booking
	Show  Show
	Movie Movie
	User  *User
}
