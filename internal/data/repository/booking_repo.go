package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"movie-ticket-booking/internal/data/entity"
	"movie-ticket-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *entity.Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	FindByPaymentSession(ctx context.Context, sessionID string) (*entity.Booking, error)
	FindDetailsByUser(ctx context.Context, userID string, limit, offset int) ([]*entity.BookingDetail, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	FindAllDetails(ctx context.Context, limit, offset int) ([]*entity.BookingDetail, error)
	CountAll(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)

	// Payment state
	AttachPaymentSession(ctx context.Context, id uuid.UUID, sessionID, link string) error
	MarkPaid(ctx context.Context, id uuid.UUID, sessionID string) (*entity.Booking, error)

	// Expiry
	FindExpiredUnpaid(ctx context.Context, cutoff time.Time, limit int) ([]*entity.Booking, error)
	DeleteUnpaid(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
}

type bookingRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewBookingRepository(db database.PgxIface, log *zap.Logger) BookingRepository {
	return &bookingRepository{
		db:  db,
		log: log.With(zap.String("repository", "booking")),
	}
}

const bookingColumns = `b.id, b.user_id, b.show_id, b.booked_seats, b.amount, b.is_paid, b.payment_session_id, b.payment_link, b.paid_at, b.created_at, b.updated_at`

// same columns without the alias, for RETURNING clauses
const bookingReturning = `id, user_id, show_id, booked_seats, amount, is_paid, payment_session_id, payment_link, paid_at, created_at, updated_at`

func (r *bookingRepository) Create(ctx context.Context, booking *entity.Booking) error {
	query := `
		INSERT INTO bookings (id, user_id, show_id, booked_seats, amount, is_paid, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Exec(ctx, query,
		booking.ID,
		booking.UserID,
		booking.ShowID,
		booking.BookedSeats,
		booking.Amount,
		booking.IsPaid,
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create booking",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
			zap.String("user_id", booking.UserID),
		)
		return fmt.Errorf("create booking %s: %w", booking.ID, err)
	}

	return nil
}

func (r *bookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = $1`
	return r.findOne(ctx, "find booking by ID", query, id)
}

// FindByIDForUpdate locks the booking row until the surrounding transaction ends
func (r *bookingRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = $1 FOR UPDATE`
	return r.findOne(ctx, "lock booking", query, id)
}

func (r *bookingRepository) FindByPaymentSession(ctx context.Context, sessionID string) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.payment_session_id = $1`
	return r.findOne(ctx, "find booking by payment session", query, sessionID)
}

func (r *bookingRepository) findOne(ctx context.Context, op, query string, arg any) (*entity.Booking, error) {
	booking, err := scanBooking(r.db.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to "+op, zap.Error(err), zap.Any("key", arg))
		return nil, fmt.Errorf("%s %v: %w", op, arg, err)
	}
	return booking, nil
}

func (r *bookingRepository) FindDetailsByUser(ctx context.Context, userID string, limit, offset int) ([]*entity.BookingDetail, error) {
	query := `
		SELECT ` + bookingColumns + `, ` + showColumns + `, ` + movieColumns + `,
			u.id, u.name, u.email, u.image_url, u.created_at, u.updated_at
		FROM bookings b
		JOIN shows s ON s.id = b.show_id
		JOIN movies m ON m.id = s.movie_id
		LEFT JOIN users u ON u.id = b.user_id
		WHERE b.user_id = $1
		ORDER BY b.created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		r.log.Error("Failed to find bookings by user", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("find bookings for user %s: %w", userID, err)
	}
	defer rows.Close()

	return collectBookingDetails(rows)
}

func (r *bookingRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM bookings WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		r.log.Error("Failed to count bookings by user", zap.Error(err), zap.String("user_id", userID))
		return 0, fmt.Errorf("count bookings for user %s: %w", userID, err)
	}
	return count, nil
}

func (r *bookingRepository) FindAllDetails(ctx context.Context, limit, offset int) ([]*entity.BookingDetail, error) {
	query := `
		SELECT ` + bookingColumns + `, ` + showColumns + `, ` + movieColumns + `,
			u.id, u.name, u.email, u.image_url, u.created_at, u.updated_at
		FROM bookings b
		JOIN shows s ON s.id = b.show_id
		JOIN movies m ON m.id = s.movie_id
		LEFT JOIN users u ON u.id = b.user_id
		ORDER BY b.created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		r.log.Error("Failed to find all bookings", zap.Error(err))
		return nil, fmt.Errorf("find all bookings: %w", err)
	}
	defer rows.Close()

	return collectBookingDetails(rows)
}

func (r *bookingRepository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM bookings`).Scan(&count); err != nil {
		r.log.Error("Failed to count bookings", zap.Error(err))
		return 0, fmt.Errorf("count bookings: %w", err)
	}
	return count, nil
}

func (r *bookingRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		r.log.Error("Failed to delete booking", zap.Error(err), zap.String("booking_id", id.String()))
		return false, fmt.Errorf("delete booking %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *bookingRepository) AttachPaymentSession(ctx context.Context, id uuid.UUID, sessionID, link string) error {
	query := `
		UPDATE bookings
		SET payment_session_id = $2, payment_link = $3, updated_at = NOW()
		WHERE id = $1 AND is_paid = FALSE
	`

	tag, err := r.db.Exec(ctx, query, id, sessionID, link)
	if err != nil {
		r.log.Error("Failed to attach payment session",
			zap.Error(err),
			zap.String("booking_id", id.String()),
			zap.String("session_id", sessionID),
		)
		return fmt.Errorf("attach payment session to booking %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("attach payment session to booking %s: %w", id, pgx.ErrNoRows)
	}

	return nil
}

// MarkPaid flips is_paid false->true. Returns nil when the booking is absent
// or already paid; the caller tells those apart.
func (r *bookingRepository) MarkPaid(ctx context.Context, id uuid.UUID, sessionID string) (*entity.Booking, error) {
	query := `
		UPDATE bookings
		SET is_paid = TRUE, payment_session_id = $2, paid_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND is_paid = FALSE
		RETURNING ` + bookingReturning

	booking, err := scanBooking(r.db.QueryRow(ctx, query, id, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to mark booking paid",
			zap.Error(err),
			zap.String("booking_id", id.String()),
			zap.String("session_id", sessionID),
		)
		return nil, fmt.Errorf("mark booking %s paid: %w", id, err)
	}

	return booking, nil
}

func (r *bookingRepository) FindExpiredUnpaid(ctx context.Context, cutoff time.Time, limit int) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings b
		WHERE b.is_paid = FALSE AND b.created_at < $1
		ORDER BY b.created_at ASC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, cutoff, limit)
	if err != nil {
		r.log.Error("Failed to find expired bookings", zap.Error(err), zap.Time("cutoff", cutoff))
		return nil, fmt.Errorf("find expired bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*entity.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}

	return bookings, nil
}

// DeleteUnpaid removes the booking only while it is still unpaid and returns
// it. A nil result means it was paid or already gone.
func (r *bookingRepository) DeleteUnpaid(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	query := `DELETE FROM bookings WHERE id = $1 AND is_paid = FALSE RETURNING ` + bookingReturning

	booking, err := scanBooking(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to delete unpaid booking", zap.Error(err), zap.String("booking_id", id.String()))
		return nil, fmt.Errorf("delete unpaid booking %s: %w", id, err)
	}

	return booking, nil
}

func scanBooking(row pgx.Row) (*entity.Booking, error) {
	var b entity.Booking
	err := row.Scan(
		&b.ID,
		&b.UserID,
		&b.ShowID,
		&b.BookedSeats,
		&b.Amount,
		&b.IsPaid,
		&b.PaymentSessionID,
		&b.PaymentLink,
		&b.PaidAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func collectBookingDetails(rows pgx.Rows) ([]*entity.BookingDetail, error) {
	var details []*entity.BookingDetail
	for rows.Next() {
		var d entity.BookingDetail
		var raw []byte
		var (
			userID, userName, userEmail *string
			userImage                   *string
			userCreated, userUpdated    *time.Time
		)

		err := rows.Scan(
			&d.ID,
			&d.UserID,
			&d.ShowID,
			&d.BookedSeats,
			&d.Amount,
			&d.IsPaid,
			&d.PaymentSessionID,
			&d.PaymentLink,
			&d.PaidAt,
			&d.Booking.CreatedAt,
			&d.Booking.UpdatedAt,
			&d.Show.ID,
			&d.Show.MovieID,
			&d.Show.ShowDateTime,
			&d.Show.ShowPrice,
			&d.Show.TheaterType,
			&raw,
			&d.Show.CreatedAt,
			&d.Show.UpdatedAt,
			&d.Movie.ID,
			&d.Movie.Title,
			&d.Movie.Overview,
			&d.Movie.PosterPath,
			&d.Movie.BackdropPath,
			&d.Movie.ReleaseDate,
			&d.Movie.Runtime,
			&d.Movie.VoteAverage,
			&d.Movie.Genres,
			&d.Movie.CreatedAt,
			&d.Movie.UpdatedAt,
			&userID,
			&userName,
			&userEmail,
			&userImage,
			&userCreated,
			&userUpdated,
		)
		if err != nil {
			return nil, fmt.Errorf("scan booking detail: %w", err)
		}

		if d.Show.OccupiedSeats, err = decodeOccupancy(raw); err != nil {
			return nil, err
		}

		// users are synced asynchronously, so the row may be missing
		if userID != nil {
			d.User = &entity.User{
				ID:       *userID,
				Name:     deref(userName),
				Email:    deref(userEmail),
				ImageURL: userImage,
			}
			if userCreated != nil {
				d.User.CreatedAt = *userCreated
			}
			if userUpdated != nil {
				d.User.UpdatedAt = *userUpdated
			}
		}

		details = append(details, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate booking details: %w", err)
	}

	return details, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
