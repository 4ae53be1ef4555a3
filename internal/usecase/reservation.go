package usecase

import (
	"context"
	"fmt"
	"time"

	"movie-ticket-booking/internal/data/entity"
	"movie-ticket-booking/internal/data/repository"
	"movie-ticket-booking/pkg/apperror"
	"movie-ticket-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SeatReserver is the only writer of show occupancy
type SeatReserver interface {
	ValidateSelection(labels []string) error
	OccupiedSeats(ctx context.Context, showID uuid.UUID) ([]string, error)
	Claim(ctx context.Context, show *entity.Show, labels []string, userID string) error
	Release(ctx context.Context, showID uuid.UUID, labels []string, userID string) error
}

type seatReserver struct {
	showRepo repository.ShowRepository
	maxSeats int
	now      func() time.Time
	log      *zap.Logger
}

func NewSeatReserver(showRepo repository.ShowRepository, maxSeats int, now func() time.Time, log *zap.Logger) SeatReserver {
	if maxSeats <= 0 {
		maxSeats = 5
	}
	if now == nil {
		now = time.Now
	}
	return &seatReserver{
		showRepo: showRepo,
		maxSeats: maxSeats,
		now:      now,
		log:      log.With(zap.String("service", "reservation")),
	}
}

// ValidateSelection enforces the per-booking seat policy before any claim
func (s *seatReserver) ValidateSelection(labels []string) error {
	if len(labels) == 0 {
		return apperror.Validation("select at least one seat")
	}
	if len(labels) > s.maxSeats {
		return apperror.Validation("you can only book up to %d seats", s.maxSeats)
	}

	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		if !utils.IsSeatLabel(l) {
			return apperror.Validation("invalid seat label %q", l)
		}
		if _, dup := seen[l]; dup {
			return apperror.Validation("seat %s selected more than once", l)
		}
		seen[l] = struct{}{}
	}
	return nil
}

func (s *seatReserver) OccupiedSeats(ctx context.Context, showID uuid.UUID) ([]string, error) {
	occ, err := s.showRepo.OccupiedSeats(ctx, showID)
	if err != nil {
		return nil, fmt.Errorf("get occupied seats: %w", err)
	}
	if occ == nil {
		return nil, apperror.NotFound("show %s not found", showID)
	}
	return occ.Labels(), nil
}

// Claim takes every seat in labels for userID, or none of them
func (s *seatReserver) Claim(ctx context.Context, show *entity.Show, labels []string, userID string) error {
	if err := s.ValidateSelection(labels); err != nil {
		return err
	}
	if show.HasStarted(s.now()) {
		return apperror.Validation("show %s has already started", show.ID)
	}

	if _, err := s.showRepo.ClaimSeats(ctx, show.ID, labels, userID); err != nil {
		if apperror.IsConflict(err) {
			s.log.Info("Seats unavailable",
				zap.String("show_id", show.ID.String()),
				zap.String("user_id", userID),
				zap.Any("taken", apperror.DetailsOf(err)),
			)
		}
		return err
	}

	s.log.Debug("Seats claimed",
		zap.String("show_id", show.ID.String()),
		zap.String("user_id", userID),
		zap.Strings("seats", labels),
	)
	return nil
}

// Release frees the labels still held by userID
func (s *seatReserver) Release(ctx context.Context, showID uuid.UUID, labels []string, userID string) error {
	if len(labels) == 0 {
		return nil
	}
	if _, err := s.showRepo.ReleaseSeats(ctx, showID, labels, userID); err != nil {
		return err
	}

	s.log.Debug("Seats released",
		zap.String("show_id", showID.String()),
		zap.String("user_id", userID),
		zap.Strings("seats", labels),
	)
	return nil
}
