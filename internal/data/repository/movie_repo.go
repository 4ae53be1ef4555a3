package repository

import (
	"context"
	"errors"
	"fmt"

	"movie-ticket-booking/internal/data/entity"
	"movie-ticket-booking/pkg/database"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type MovieRepository interface {
	Upsert(ctx context.Context, movie *entity.Movie) error
	FindByID(ctx context.Context, id string) (*entity.Movie, error)
}

type movieRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewMovieRepository(db database.PgxIface, log *zap.Logger) MovieRepository {
	return &movieRepository{
		db:  db,
		log: log.With(zap.String("repository", "movie")),
	}
}

func (r *movieRepository) Upsert(ctx context.Context, movie *entity.Movie) error {
	query := `
		INSERT INTO movies (id, title, overview, poster_path, backdrop_path, release_date, runtime, vote_average, genres, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			overview = EXCLUDED.overview,
			poster_path = EXCLUDED.poster_path,
			backdrop_path = EXCLUDED.backdrop_path,
			release_date = EXCLUDED.release_date,
			runtime = EXCLUDED.runtime,
			vote_average = EXCLUDED.vote_average,
			genres = EXCLUDED.genres,
			updated_at = NOW()
	`

	genres := movie.Genres
	if genres == nil {
		genres = []string{}
	}

	_, err := r.db.Exec(ctx, query,
		movie.ID,
		movie.Title,
		movie.Overview,
		movie.PosterPath,
		movie.BackdropPath,
		movie.ReleaseDate,
		movie.Runtime,
		movie.VoteAverage,
		genres,
	)
	if err != nil {
		r.log.Error("Failed to upsert movie", zap.Error(err), zap.String("movie_id", movie.ID))
		return fmt.Errorf("upsert movie %s: %w", movie.ID, err)
	}

	return nil
}

func (r *movieRepository) FindByID(ctx context.Context, id string) (*entity.Movie, error) {
	query := `SELECT ` + movieColumns + ` FROM movies m WHERE m.id = $1`

	var m entity.Movie
	err := r.db.QueryRow(ctx, query, id).Scan(
		&m.ID,
		&m.Title,
		&m.Overview,
		&m.PosterPath,
		&m.BackdropPath,
		&m.ReleaseDate,
		&m.Runtime,
		&m.VoteAverage,
		&m.Genres,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find movie by ID", zap.Error(err), zap.String("movie_id", id))
		return nil, fmt.Errorf("find movie by ID %s: %w", id, err)
	}

	return &m, nil
}
