package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"movie-ticket-booking/internal/data/entity"
	"movie-ticket-booking/pkg/apperror"
	"movie-ticket-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type ShowRepository interface {
	Create(ctx context.Context, show *entity.Show) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Show, error)
	FindUpcoming(ctx context.Context, from time.Time) ([]*entity.ShowWithMovie, error)
	FindUpcomingByMovie(ctx context.Context, movieID string, from time.Time) ([]*entity.Show, error)
	// FindAll pages through every show, past ones included, latest first
	FindAll(ctx context.Context, limit, offset int) ([]*entity.ShowWithMovie, error)
	CountAll(ctx context.Context) (int64, error)

	// Seat occupancy. Each call is a single conditional statement.
	OccupiedSeats(ctx context.Context, showID uuid.UUID) (entity.OccupancyMap, error)
	ClaimSeats(ctx context.Context, showID uuid.UUID, labels []string, userID string) (entity.OccupancyMap, error)
	ReleaseSeats(ctx context.Context, showID uuid.UUID, labels []string, userID string) (entity.OccupancyMap, error)
}

type showRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewShowRepository(db database.PgxIface, log *zap.Logger) ShowRepository {
	return &showRepository{
		db:  db,
		log: log.With(zap.String("repository", "show")),
	}
}

const showColumns = `s.id, s.movie_id, s.show_date_time, s.show_price, s.theater_type, s.occupied_seats, s.created_at, s.updated_at`

const movieColumns = `m.id, m.title, m.overview, m.poster_path, m.backdrop_path, m.release_date, m.runtime, m.vote_average, m.genres, m.created_at, m.updated_at`

func (r *showRepository) Create(ctx context.Context, show *entity.Show) error {
	query := `
		INSERT INTO shows (id, movie_id, show_date_time, show_price, theater_type, occupied_seats, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, '{}'::jsonb, $6, $7)
	`

	if show.OccupiedSeats == nil {
		show.OccupiedSeats = entity.OccupancyMap{}
	}

	_, err := r.db.Exec(ctx, query,
		show.ID,
		show.MovieID,
		show.ShowDateTime,
		show.ShowPrice,
		show.TheaterType,
		show.CreatedAt,
		show.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create show",
			zap.Error(err),
			zap.String("movie_id", show.MovieID),
			zap.Time("show_date_time", show.ShowDateTime),
		)
		return fmt.Errorf("create show for movie %s: %w", show.MovieID, err)
	}

	return nil
}

func (r *showRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Show, error) {
	query := `SELECT ` + showColumns + ` FROM shows s WHERE s.id = $1`

	show, err := scanShow(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find show by ID", zap.Error(err), zap.String("show_id", id.String()))
		return nil, fmt.Errorf("find show by ID %s: %w", id, err)
	}

	return show, nil
}

func (r *showRepository) FindUpcoming(ctx context.Context, from time.Time) ([]*entity.ShowWithMovie, error) {
	query := `
		SELECT ` + showColumns + `, ` + movieColumns + `
		FROM shows s
		JOIN movies m ON m.id = s.movie_id
		WHERE s.show_date_time >= $1
		ORDER BY s.show_date_time ASC
	`

	rows, err := r.db.Query(ctx, query, from)
	if err != nil {
		r.log.Error("Failed to find upcoming shows", zap.Error(err))
		return nil, fmt.Errorf("find upcoming shows: %w", err)
	}
	defer rows.Close()

	return collectShowsWithMovie(rows)
}

func (r *showRepository) FindUpcomingByMovie(ctx context.Context, movieID string, from time.Time) ([]*entity.Show, error) {
	query := `
		SELECT ` + showColumns + `
		FROM shows s
		WHERE s.movie_id = $1 AND s.show_date_time >= $2
		ORDER BY s.show_date_time ASC
	`

	rows, err := r.db.Query(ctx, query, movieID, from)
	if err != nil {
		r.log.Error("Failed to find shows by movie", zap.Error(err), zap.String("movie_id", movieID))
		return nil, fmt.Errorf("find shows for movie %s: %w", movieID, err)
	}
	defer rows.Close()

	var shows []*entity.Show
	for rows.Next() {
		show, err := scanShow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan show: %w", err)
		}
		shows = append(shows, show)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shows: %w", err)
	}

	return shows, nil
}

func (r *showRepository) FindAll(ctx context.Context, limit, offset int) ([]*entity.ShowWithMovie, error) {
	query := `
		SELECT ` + showColumns + `, ` + movieColumns + `
		FROM shows s
		JOIN movies m ON m.id = s.movie_id
		ORDER BY s.show_date_time DESC, s.id
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		r.log.Error("Failed to find all shows", zap.Error(err))
		return nil, fmt.Errorf("find all shows: %w", err)
	}
	defer rows.Close()

	return collectShowsWithMovie(rows)
}

func (r *showRepository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM shows`).Scan(&count)
	if err != nil {
		r.log.Error("Failed to count shows", zap.Error(err))
		return 0, fmt.Errorf("count shows: %w", err)
	}
	return count, nil
}

func (r *showRepository) OccupiedSeats(ctx context.Context, showID uuid.UUID) (entity.OccupancyMap, error) {
	var raw []byte
	err := r.db.QueryRow(ctx, `SELECT occupied_seats FROM shows WHERE id = $1`, showID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to read occupied seats", zap.Error(err), zap.String("show_id", showID.String()))
		return nil, fmt.Errorf("read occupied seats of show %s: %w", showID, err)
	}

	return decodeOccupancy(raw)
}

const maxClaimAttempts = 2

// ClaimSeats adds every label to the occupancy map only if none of them is
// present. Concurrent claims on the same show serialize on the row lock and
// the predicate is re-checked against the committed row, so overlapping
// claims cannot both succeed.
func (r *showRepository) ClaimSeats(ctx context.Context, showID uuid.UUID, labels []string, userID string) (entity.OccupancyMap, error) {
	patch := make(entity.OccupancyMap, len(labels))
	for _, l := range labels {
		patch[l] = userID
	}
	patchJSON, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("encode seat claim: %w", err)
	}

	query := `
		UPDATE shows
		SET occupied_seats = occupied_seats || $2::jsonb, updated_at = NOW()
		WHERE id = $1 AND NOT (occupied_seats ?| $3::text[])
		RETURNING occupied_seats
	`

	// A rejected claim is read back outside the row lock; if a release
	// landed in between, no seat is taken any more and the claim is
	// attempted again.
	for attempt := 1; ; attempt++ {
		var raw []byte
		err = r.db.QueryRow(ctx, query, showID, string(patchJSON), labels).Scan(&raw)
		if err == nil {
			return decodeOccupancy(raw)
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			r.log.Error("Failed to claim seats",
				zap.Error(err),
				zap.String("show_id", showID.String()),
				zap.Strings("seats", labels),
			)
			return nil, fmt.Errorf("claim seats on show %s: %w", showID, err)
		}

		// Nothing updated: either the show is gone or a seat is taken
		current, err := r.OccupiedSeats(ctx, showID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, apperror.NotFound("show %s not found", showID)
		}

		taken := current.Conflicts(labels)
		if len(taken) == 0 && attempt < maxClaimAttempts {
			continue
		}
		if len(taken) == 0 {
			// seats keep changing hands under us; report them all as contended
			taken = labels
		}

		r.log.Info("Seat claim rejected",
			zap.String("show_id", showID.String()),
			zap.String("user_id", userID),
			zap.Strings("taken", taken),
			zap.Int("attempt", attempt),
		)
		return nil, apperror.Conflict(taken, "seats already booked: %v", taken)
	}
}

// ReleaseSeats removes the labels currently held by userID. Labels held by
// anyone else are kept.
func (r *showRepository) ReleaseSeats(ctx context.Context, showID uuid.UUID, labels []string, userID string) (entity.OccupancyMap, error) {
	query := `
		UPDATE shows
		SET occupied_seats = COALESCE((
				SELECT jsonb_object_agg(e.key, e.value)
				FROM jsonb_each(shows.occupied_seats) AS e
				WHERE NOT (e.key = ANY($2::text[]) AND e.value = to_jsonb($3::text))
			), '{}'::jsonb),
			updated_at = NOW()
		WHERE id = $1
		RETURNING occupied_seats
	`

	var raw []byte
	err := r.db.QueryRow(ctx, query, showID, labels, userID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("show %s not found", showID)
	}
	if err != nil {
		r.log.Error("Failed to release seats",
			zap.Error(err),
			zap.String("show_id", showID.String()),
			zap.Strings("seats", labels),
		)
		return nil, fmt.Errorf("release seats on show %s: %w", showID, err)
	}

	return decodeOccupancy(raw)
}

func scanShow(row pgx.Row) (*entity.Show, error) {
	var show entity.Show
	var raw []byte
	err := row.Scan(
		&show.ID,
		&show.MovieID,
		&show.ShowDateTime,
		&show.ShowPrice,
		&show.TheaterType,
		&raw,
		&show.CreatedAt,
		&show.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if show.OccupiedSeats, err = decodeOccupancy(raw); err != nil {
		return nil, err
	}
	return &show, nil
}

func collectShowsWithMovie(rows pgx.Rows) ([]*entity.ShowWithMovie, error) {
	var shows []*entity.ShowWithMovie
	for rows.Next() {
		var s entity.ShowWithMovie
		var raw []byte
		err := rows.Scan(
			&s.ID,
			&s.MovieID,
			&s.ShowDateTime,
			&s.ShowPrice,
			&s.TheaterType,
			&raw,
			&s.Show.CreatedAt,
			&s.Show.UpdatedAt,
			&s.Movie.ID,
			&s.Movie.Title,
			&s.Movie.Overview,
			&s.Movie.PosterPath,
			&s.Movie.BackdropPath,
			&s.Movie.ReleaseDate,
			&s.Movie.Runtime,
			&s.Movie.VoteAverage,
			&s.Movie.Genres,
			&s.Movie.CreatedAt,
			&s.Movie.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan show: %w", err)
		}
		if s.OccupiedSeats, err = decodeOccupancy(raw); err != nil {
			return nil, err
		}
		shows = append(shows, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shows: %w", err)
	}

	return shows, nil
}

func decodeOccupancy(raw []byte) (entity.OccupancyMap, error) {
	m := entity.OccupancyMap{}
	if len(raw) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode occupied seats: %w", err)
	}
	return m, nil
}
