package usecase

import (
	"time"

	"movie-ticket-booking/internal/data/repository"
	"movie-ticket-booking/internal/events"
	"movie-ticket-booking/internal/gateway"
	"movie-ticket-booking/pkg/utils"

	"go.uber.org/zap"
)

// Dependencies are the external collaborators of the services
type Dependencies struct {
	Gateway   gateway.Gateway
	Publisher events.Publisher
	Notifier  Notifier
	Movies    MovieProvider
	Location  *time.Location
	Clock     func() time.Time
}

type Service struct {
	Reservation SeatReserver
	Booking     BookingService
	Payment     PaymentService
	Show        ShowService
	User        UserService
}

func NewService(repo *repository.Repository, config *utils.Config, deps Dependencies, log *zap.Logger) *Service {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	reserver := NewSeatReserver(repo.Show, config.Booking.MaxSeatsPerBooking, clock, log)
	bookings := NewBookingService(repo, reserver, deps.Publisher, deps.Notifier, deps.Gateway, BookingConfig{
		HoldTimeout:    config.Booking.HoldTimeout,
		SweepBatchSize: config.Booking.SweepBatchSize,
		PublishTimeout: config.Booking.PublishTimeout,
	}, clock, log)

	return &Service{
		Reservation: reserver,
		Booking:     bookings,
		Payment: NewPaymentService(repo, bookings, deps.Gateway, PaymentConfig{
			Currency:   config.Stripe.Currency,
			SessionTTL: config.Stripe.SessionTTL,
			ClientURL:  config.App.ClientURL,
		}, clock, log),
		Show: NewShowService(repo, deps.Movies, deps.Location, clock, log),
		User: NewUserService(repo, log),
	}
}
