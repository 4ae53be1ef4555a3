package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"movie-ticket-booking/internal/data/entity"
	"movie-ticket-booking/internal/data/repository"
	"movie-ticket-booking/internal/dto/response"
	"movie-ticket-booking/internal/gateway"
	"movie-ticket-booking/pkg/apperror"
	"movie-ticket-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PaymentService interface {
	// CreateCheckoutSession opens (or reopens) hosted checkout for a pending booking
	CreateCheckoutSession(ctx context.Context, userID, bookingID, origin string) (*response.CheckoutResponse, error)
	// ConfirmPayment asks the gateway for the session outcome (synchronous verify)
	ConfirmPayment(ctx context.Context, userID, sessionID string) (*response.PaymentStatusResponse, error)
	// HandleWebhook processes a gateway notification (asynchronous confirm)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type PaymentConfig struct {
	Currency   string
	SessionTTL time.Duration
	ClientURL  string
}

type paymentService struct {
	repo     *repository.Repository
	bookings BookingService
	gateway  gateway.Gateway
	config   PaymentConfig
	now      func() time.Time
	log      *zap.Logger
}

func NewPaymentService(repo *repository.Repository, bookings BookingService, gw gateway.Gateway, config PaymentConfig, now func() time.Time, log *zap.Logger) PaymentService {
	if config.Currency == "" {
		config.Currency = "usd"
	}
	if config.SessionTTL <= 0 {
		config.SessionTTL = 31 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &paymentService{
		repo:     repo,
		bookings: bookings,
		gateway:  gw,
		config:   config,
		now:      now,
		log:      log.With(zap.String("service", "payment"), zap.String("gateway", gw.Name())),
	}
}

func (s *paymentService) CreateCheckoutSession(ctx context.Context, userID, bookingID, origin string) (*response.CheckoutResponse, error) {
	id, err := uuid.Parse(bookingID)
	if err != nil {
		return nil, apperror.Validation("invalid booking ID %q", bookingID)
	}

	booking, err := s.repo.Booking.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, apperror.NotFound("booking %s not found", id)
	}
	if booking.UserID != userID {
		return nil, apperror.Unauthorized("booking %s belongs to another user", id)
	}
	if booking.IsPaid {
		return nil, apperror.Conflict(nil, "booking %s is already paid", id)
	}

	// Reuse a session that is still open
	if booking.PaymentSessionID != nil {
		existing, err := s.gateway.GetCheckoutSession(ctx, *booking.PaymentSessionID)
		if err == nil && existing.Status == gateway.SessionPending && existing.URL != "" {
			return &response.CheckoutResponse{
				BookingID:  booking.ID.String(),
				SessionID:  existing.ID,
				PaymentURL: existing.URL,
			}, nil
		}
		if err != nil {
			s.log.Warn("Previous checkout session unavailable, opening a new one",
				zap.Error(err),
				zap.String("booking_id", booking.ID.String()),
			)
		}
	}

	req, err := s.checkoutRequest(ctx, booking, origin)
	if err != nil {
		return nil, err
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, req)
	if err != nil {
		s.log.Error("Failed to create checkout session", zap.Error(err), zap.String("booking_id", booking.ID.String()))
		return nil, apperror.Upstream(err, "payment gateway unavailable")
	}

	if err := s.repo.Booking.AttachPaymentSession(ctx, booking.ID, session.ID, session.URL); err != nil {
		// the booking was paid, cancelled or expired meanwhile
		s.log.Warn("Could not attach checkout session", zap.Error(err), zap.String("booking_id", booking.ID.String()))
		return nil, apperror.Conflict(nil, "booking %s is no longer awaiting payment", booking.ID)
	}

	s.log.Info("Checkout session created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("session_id", session.ID),
	)

	return &response.CheckoutResponse{
		BookingID:  booking.ID.String(),
		SessionID:  session.ID,
		PaymentURL: session.URL,
	}, nil
}

func (s *paymentService) checkoutRequest(ctx context.Context, booking *entity.Booking, origin string) (*gateway.CheckoutRequest, error) {
	show, err := s.repo.Show.FindByID(ctx, booking.ShowID)
	if err != nil {
		return nil, err
	}
	if show == nil {
		return nil, apperror.NotFound("show %s not found", booking.ShowID)
	}

	title := "Movie ticket"
	movie, err := s.repo.Movie.FindByID(ctx, show.MovieID)
	if err != nil {
		return nil, err
	}
	if movie != nil {
		title = movie.Title
	}

	if origin == "" {
		origin = s.config.ClientURL
	}
	origin = strings.TrimRight(origin, "/")

	// charge the amount fixed at booking time
	quantity := int64(len(booking.BookedSeats))
	unit := utils.ToMinorUnits(booking.Amount / float64(quantity))

	return &gateway.CheckoutRequest{
		BookingID:   booking.ID.String(),
		ProductName: fmt.Sprintf("%s (%s) %s", title, show.TheaterType, strings.Join(booking.BookedSeats, ", ")),
		UnitAmount:  unit,
		Quantity:    quantity,
		Currency:    s.config.Currency,
		SuccessURL:  origin + "/loading/my-bookings?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:   origin + "/my-bookings",
		ExpiresAt:   s.now().Add(s.config.SessionTTL),
	}, nil
}

func (s *paymentService) ConfirmPayment(ctx context.Context, userID, sessionID string) (*response.PaymentStatusResponse, error) {
	session, err := s.gateway.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		s.log.Error("Failed to verify checkout session", zap.Error(err), zap.String("session_id", sessionID))
		return nil, apperror.Upstream(err, "payment gateway unavailable")
	}

	bookingID, err := uuid.Parse(session.BookingID)
	if err != nil {
		return nil, apperror.NotFound("no booking for session %s", sessionID)
	}

	booking, err := s.repo.Booking.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, apperror.NotFound("booking %s not found", bookingID)
	}
	if booking.UserID != userID {
		return nil, apperror.Unauthorized("booking %s belongs to another user", bookingID)
	}

	status := &response.PaymentStatusResponse{
		BookingID: bookingID.String(),
		SessionID: session.ID,
		Status:    string(session.Status),
		IsPaid:    booking.IsPaid,
	}

	if session.Status != gateway.SessionPaid {
		return status, nil
	}

	if _, _, err := s.bookings.MarkPaid(ctx, bookingID, session.ID); err != nil {
		return nil, err
	}
	status.IsPaid = true

	return status, nil
}

func (s *paymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidSignature) {
			s.log.Warn("Rejected webhook", zap.Error(err))
			return apperror.Validation("invalid webhook signature")
		}
		return apperror.Validation("malformed webhook: %v", err)
	}

	log := s.log.With(zap.String("event_id", event.ID), zap.String("event_type", event.Type))

	switch event.Type {
	case gateway.EventCheckoutCompleted, gateway.EventAsyncSucceeded:
	case gateway.EventCheckoutExpired, gateway.EventAsyncFailed:
		if event.Session != nil {
			log.Info("Checkout session did not complete", zap.String("booking_id", event.Session.BookingID))
		}
		return nil
	default:
		log.Debug("Ignoring webhook event")
		return nil
	}

	if event.Session == nil || event.Session.Status != gateway.SessionPaid {
		log.Info("Checkout completed without payment yet")
		return nil
	}

	bookingID, err := uuid.Parse(event.Session.BookingID)
	if err != nil {
		log.Error("Webhook session has no booking reference", zap.String("session_id", event.Session.ID))
		return nil
	}

	_, applied, err := s.bookings.MarkPaid(ctx, bookingID, event.Session.ID)
	switch {
	case err == nil:
		log.Info("Webhook processed", zap.String("booking_id", bookingID.String()), zap.Bool("applied", applied))
		return nil
	case apperror.IsNotFound(err):
		// payment arrived after the hold expired; needs manual refund
		log.Error("Payment received for missing booking",
			zap.String("booking_id", bookingID.String()),
			zap.String("session_id", event.Session.ID),
		)
		return nil
	case apperror.IsConflict(err):
		log.Error("Duplicate payment for booking",
			zap.String("booking_id", bookingID.String()),
			zap.String("session_id", event.Session.ID),
		)
		return nil
	default:
		// let the gateway retry
		return err
	}
}
