package usecase

import (
	"context"
	"fmt"
	"time"

	"movie-ticket-booking/internal/data/entity"
	"movie-ticket-booking/internal/data/repository"
	"movie-ticket-booking/internal/dto/request"
	"movie-ticket-booking/internal/dto/response"
	"movie-ticket-booking/internal/events"
	"movie-ticket-booking/pkg/apperror"
	"movie-ticket-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type BookingService interface {
	// Customer endpoints (butuh auth)
	OccupiedSeats(ctx context.Context, showID string) ([]string, error)
	CreateBooking(ctx context.Context, userID string, req *request.CreateBookingRequest) (*entity.Booking, error)
	CancelBooking(ctx context.Context, bookingID string, userID string) error
	GetUserBookings(ctx context.Context, userID string, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingDetailResponse], error)

	// Payment state, shared by the verify and webhook paths
	MarkPaid(ctx context.Context, bookingID uuid.UUID, sessionRef string) (*entity.Booking, bool, error)

	// Expiry reclamation
	ExpireStale(ctx context.Context, now time.Time) (SweepResult, error)

	// Admin endpoints
	GetAllBookings(ctx context.Context, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingDetailResponse], error)
}

// SweepResult summarizes one expiry pass
type SweepResult struct {
	Scanned int
	Expired int
	Skipped int
	Failed  int
}

type BookingConfig struct {
	HoldTimeout    time.Duration
	SweepBatchSize int
	// PublishTimeout bounds each event publish; a dead broker must not stall
	// the request or the sweep
	PublishTimeout time.Duration
}

const (
	defaultPublishTimeout = 5 * time.Second
	checkoutCloseTimeout  = 10 * time.Second
)

// CheckoutCloser expires the hosted checkout of a booking that no longer holds seats
type CheckoutCloser interface {
	ExpireCheckoutSession(ctx context.Context, sessionID string) error
}

type bookingService struct {
	repo      *repository.Repository
	reserver  SeatReserver
	publisher events.Publisher
	notifier  Notifier
	checkout  CheckoutCloser
	config    BookingConfig
	now       func() time.Time
	log       *zap.Logger
}

func NewBookingService(repo *repository.Repository, reserver SeatReserver, publisher events.Publisher, notifier Notifier, checkout CheckoutCloser, config BookingConfig, now func() time.Time, log *zap.Logger) BookingService {
	if config.HoldTimeout <= 0 {
		config.HoldTimeout = 10 * time.Minute
	}
	if config.SweepBatchSize <= 0 {
		config.SweepBatchSize = 100
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = defaultPublishTimeout
	}
	if now == nil {
		now = time.Now
	}
	return &bookingService{
		repo:      repo,
		reserver:  reserver,
		publisher: publisher,
		notifier:  notifier,
		checkout:  checkout,
		config:    config,
		now:       now,
		log:       log.With(zap.String("service", "booking")),
	}
}

func (s *bookingService) OccupiedSeats(ctx context.Context, showID string) ([]string, error) {
	id, err := uuid.Parse(showID)
	if err != nil {
		return nil, apperror.Validation("invalid show ID %q", showID)
	}
	return s.reserver.OccupiedSeats(ctx, id)
}

func (s *bookingService) CreateBooking(ctx context.Context, userID string, req *request.CreateBookingRequest) (*entity.Booking, error) {
	// Seat policy is checked first so a rejected request has no side effects
	if err := s.reserver.ValidateSelection(req.SelectedSeats); err != nil {
		s.log.Warn("Create booking rejected", zap.Error(err), zap.String("user_id", userID))
		return nil, err
	}

	// Validate request
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Create booking validation failed", zap.Any("errors", errs))
		return nil, &apperror.Error{
			Kind:    apperror.KindValidation,
			Message: "validation failed: " + utils.FormatValidationErrors(errs),
			Details: errs,
		}
	}

	showID, err := uuid.Parse(req.ShowID)
	if err != nil {
		return nil, apperror.Validation("invalid show ID %q", req.ShowID)
	}

	var booking *entity.Booking
	err = s.repo.Tx.InTx(ctx, func(ctx context.Context) error {
		show, err := s.repo.Show.FindByID(ctx, showID)
		if err != nil {
			return fmt.Errorf("load show: %w", err)
		}
		if show == nil {
			return apperror.NotFound("show %s not found", showID)
		}

		if err := s.reserver.Claim(ctx, show, req.SelectedSeats, userID); err != nil {
			return err
		}

		now := s.now()
		booking = &entity.Booking{
			BaseNoDelete: entity.BaseNoDelete{
				ID:        uuid.New(),
				CreatedAt: now,
				UpdatedAt: now,
			},
			UserID:      userID,
			ShowID:      show.ID,
			BookedSeats: append([]string(nil), req.SelectedSeats...),
			Amount:      utils.RoundMoney(show.SeatPrice() * float64(len(req.SelectedSeats))),
		}

		return s.repo.Booking.Create(ctx, booking)
	})
	if err != nil {
		if apperror.KindOf(err) == apperror.KindInternal {
			s.log.Error("Failed to create booking",
				zap.Error(err),
				zap.String("user_id", userID),
				zap.String("show_id", req.ShowID),
			)
		}
		return nil, err
	}

	s.log.Info("Booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("user_id", userID),
		zap.String("show_id", booking.ShowID.String()),
		zap.Strings("seats", booking.BookedSeats),
		zap.Float64("amount", booking.Amount),
	)
	s.publish(ctx, events.BookingCreated, booking, "")

	return booking, nil
}

func (s *bookingService) CancelBooking(ctx context.Context, bookingID string, userID string) error {
	id, err := uuid.Parse(bookingID)
	if err != nil {
		return apperror.Validation("invalid booking ID %q", bookingID)
	}

	var cancelled *entity.Booking
	err = s.repo.Tx.InTx(ctx, func(ctx context.Context) error {
		// Lock order: booking row, then show row
		booking, err := s.repo.Booking.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if booking == nil {
			return apperror.NotFound("booking %s not found", id)
		}
		if booking.UserID != userID {
			return apperror.Unauthorized("booking %s belongs to another user", id)
		}

		if err := s.reserver.Release(ctx, booking.ShowID, booking.BookedSeats, booking.UserID); err != nil {
			return err
		}

		deleted, err := s.repo.Booking.Delete(ctx, id)
		if err != nil {
			return err
		}
		if !deleted {
			return apperror.NotFound("booking %s not found", id)
		}

		cancelled = booking
		return nil
	})
	if err != nil {
		if apperror.KindOf(err) == apperror.KindAuthorization {
			s.log.Warn("Cancel booking denied", zap.String("booking_id", bookingID), zap.String("user_id", userID))
		}
		return err
	}

	s.log.Info("Booking cancelled",
		zap.String("booking_id", bookingID),
		zap.String("user_id", userID),
		zap.Bool("was_paid", cancelled.IsPaid),
	)
	s.publish(ctx, events.BookingCancelled, cancelled, "")
	s.closeCheckout(ctx, cancelled)

	return nil
}

// MarkPaid records a confirmed payment. applied is false when the booking
// was already paid by the same session, in which case nothing happens.
func (s *bookingService) MarkPaid(ctx context.Context, bookingID uuid.UUID, sessionRef string) (*entity.Booking, bool, error) {
	booking, err := s.repo.Booking.MarkPaid(ctx, bookingID, sessionRef)
	if err != nil {
		return nil, false, err
	}

	if booking == nil {
		existing, err := s.repo.Booking.FindByID(ctx, bookingID)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, apperror.NotFound("booking %s not found", bookingID)
		}
		if existing.PaymentSessionID != nil && *existing.PaymentSessionID != sessionRef {
			s.log.Error("Booking already paid by another session",
				zap.String("booking_id", bookingID.String()),
				zap.String("paid_session", *existing.PaymentSessionID),
				zap.String("session", sessionRef),
			)
			return existing, false, apperror.Conflict(
				map[string]string{"session_id": *existing.PaymentSessionID},
				"booking %s already paid by another session", bookingID)
		}

		s.log.Debug("Booking already paid", zap.String("booking_id", bookingID.String()))
		return existing, false, nil
	}

	s.log.Info("Booking paid",
		zap.String("booking_id", booking.ID.String()),
		zap.String("session_id", sessionRef),
		zap.Float64("amount", booking.Amount),
	)
	s.publish(ctx, events.BookingPaid, booking, sessionRef)
	s.notifyPaid(ctx, booking)

	return booking, true, nil
}

// ExpireStale deletes unpaid bookings older than the hold timeout and frees
// their seats. Each booking is handled in its own transaction.
func (s *bookingService) ExpireStale(ctx context.Context, now time.Time) (SweepResult, error) {
	var result SweepResult
	cutoff := now.Add(-s.config.HoldTimeout)

	for {
		stale, err := s.repo.Booking.FindExpiredUnpaid(ctx, cutoff, s.config.SweepBatchSize)
		if err != nil {
			return result, fmt.Errorf("list expired bookings: %w", err)
		}
		result.Scanned += len(stale)

		progressed := false
		for _, b := range stale {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}

			expired, err := s.expireOne(ctx, b.ID)
			switch {
			case err != nil:
				result.Failed++
				s.log.Error("Failed to expire booking",
					zap.Error(err),
					zap.String("booking_id", b.ID.String()),
				)
			case expired == nil:
				// paid or cancelled since it was listed
				result.Skipped++
			default:
				result.Expired++
				progressed = true
				s.log.Info("Booking expired",
					zap.String("booking_id", expired.ID.String()),
					zap.String("show_id", expired.ShowID.String()),
					zap.Strings("seats", expired.BookedSeats),
				)
				s.publish(ctx, events.BookingExpired, expired, "")
				s.closeCheckout(ctx, expired)
			}
		}

		// a short page means the backlog is drained; no progress means the
		// remaining rows keep failing and will be retried next sweep
		if len(stale) < s.config.SweepBatchSize || !progressed {
			break
		}
	}

	return result, nil
}

func (s *bookingService) expireOne(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	var expired *entity.Booking
	err := s.repo.Tx.InTx(ctx, func(ctx context.Context) error {
		booking, err := s.repo.Booking.DeleteUnpaid(ctx, id)
		if err != nil || booking == nil {
			return err
		}
		if err := s.reserver.Release(ctx, booking.ShowID, booking.BookedSeats, booking.UserID); err != nil {
			return err
		}
		expired = booking
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}

func (s *bookingService) GetUserBookings(ctx context.Context, userID string, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingDetailResponse], error) {
	limit := req.Limit()
	offset := req.Offset()

	details, err := s.repo.Booking.FindDetailsByUser(ctx, userID, limit, offset)
	if err != nil {
		s.log.Error("Failed to get user bookings",
			zap.Error(err),
			zap.String("user_id", userID),
			zap.Int("page", req.Page),
			zap.Int("per_page", req.PerPage),
		)
		return nil, fmt.Errorf("get user bookings: %w", err)
	}

	total, err := s.repo.Booking.CountByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count user bookings: %w", err)
	}

	return response.NewPaginatedResponse(toDetailResponses(details), req.Page, limit, total), nil
}

func (s *bookingService) GetAllBookings(ctx context.Context, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingDetailResponse], error) {
	limit := req.Limit()
	offset := req.Offset()

	details, err := s.repo.Booking.FindAllDetails(ctx, limit, offset)
	if err != nil {
		s.log.Error("Failed to get all bookings", zap.Error(err))
		return nil, fmt.Errorf("get all bookings: %w", err)
	}

	total, err := s.repo.Booking.CountAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("count bookings: %w", err)
	}

	return response.NewPaginatedResponse(toDetailResponses(details), req.Page, limit, total), nil
}

func (s *bookingService) publish(ctx context.Context, t events.Type, b *entity.Booking, sessionRef string) {
	if s.publisher == nil {
		return
	}
	event := events.BookingEvent{
		Type:       t,
		BookingID:  b.ID.String(),
		ShowID:     b.ShowID.String(),
		UserID:     b.UserID,
		Seats:      b.BookedSeats,
		Amount:     b.Amount,
		SessionID:  sessionRef,
		OccurredAt: s.now(),
	}

	// state is already committed; a caller that gave up must not drop the event
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.PublishTimeout)
	defer cancel()

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn("Failed to publish booking event",
			zap.Error(err),
			zap.String("type", string(t)),
			zap.String("booking_id", event.BookingID),
		)
	}
}

// closeCheckout stops a removed booking's session from taking a payment.
// Failures are logged; a late payment is still caught by MarkPaid.
func (s *bookingService) closeCheckout(ctx context.Context, b *entity.Booking) {
	if s.checkout == nil || b.IsPaid || b.PaymentSessionID == nil || *b.PaymentSessionID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), checkoutCloseTimeout)
	defer cancel()

	if err := s.checkout.ExpireCheckoutSession(ctx, *b.PaymentSessionID); err != nil {
		s.log.Warn("Failed to expire checkout session",
			zap.Error(err),
			zap.String("booking_id", b.ID.String()),
			zap.String("session_id", *b.PaymentSessionID),
		)
	}
}

// notifyPaid sends the confirmation email outside the request path
func (s *bookingService) notifyPaid(ctx context.Context, b *entity.Booking) {
	if s.notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	booking := *b

	go func() {
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		detail, err := s.loadDetail(ctx, &booking)
		if err != nil {
			s.log.Warn("Failed to load booking for confirmation", zap.Error(err), zap.String("booking_id", booking.ID.String()))
			return
		}
		if detail.User == nil || detail.User.Email == "" {
			s.log.Warn("No email on file for booking", zap.String("booking_id", booking.ID.String()))
			return
		}
		if err := s.notifier.BookingConfirmed(ctx, detail); err != nil {
			s.log.Warn("Failed to send booking confirmation", zap.Error(err), zap.String("booking_id", booking.ID.String()))
		}
	}()
}

func (s *bookingService) loadDetail(ctx context.Context, b *entity.Booking) (*entity.BookingDetail, error) {
	show, err := s.repo.Show.FindByID(ctx, b.ShowID)
	if err != nil {
		return nil, err
	}
	if show == nil {
		return nil, apperror.NotFound("show %s not found", b.ShowID)
	}

	detail := &entity.BookingDetail{Booking: *b, Show: *show}

	movie, err := s.repo.Movie.FindByID(ctx, show.MovieID)
	if err != nil {
		return nil, err
	}
	if movie != nil {
		detail.Movie = *movie
	}

	if detail.User, err = s.repo.User.FindByID(ctx, b.UserID); err != nil {
		return nil, err
	}
	return detail, nil
}

func toDetailResponses(details []*entity.BookingDetail) []response.BookingDetailResponse {
	out := make([]response.BookingDetailResponse, len(details))
	for i, d := range details {
		out[i] = response.BookingDetailToResponse(d)
	}
	return out
}
