package events

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Type string

const (
	BookingCreated   Type = "booking.created"
	BookingPaid      Type = "booking.paid"
	BookingCancelled Type = "booking.cancelled"
	BookingExpired   Type = "booking.expired"
)

// BookingEvent is published after a booking state change commits
type BookingEvent struct {
	Type       Type      `json:"type"`
	BookingID  string    `json:"booking_id"`
	ShowID     string    `json:"show_id"`
	UserID     string    `json:"user_id"`
	Seats      []string  `json:"seats"`
	Amount     float64   `json:"amount"`
	SessionID  string    `json:"session_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers booking events. Delivery is best effort; a failed
// publish never undoes the state change that produced the event.
type Publisher interface {
	Publish(ctx context.Context, event BookingEvent) error
	Close()
}

// LogPublisher writes events to the application log
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log.With(zap.String("publisher", "log"))}
}

func (p *LogPublisher) Publish(_ context.Context, event BookingEvent) error {
	p.log.Info("Booking event",
		zap.String("type", string(event.Type)),
		zap.String("booking_id", event.BookingID),
		zap.String("show_id", event.ShowID),
		zap.String("user_id", event.UserID),
		zap.Strings("seats", event.Seats),
		zap.Float64("amount", event.Amount),
	)
	return nil
}

func (p *LogPublisher) Close() {}
