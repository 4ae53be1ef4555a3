package repository

import (
	"context"
	"fmt"

	"movie-ticket-booking/internal/data/entity"
	"movie-ticket-booking/pkg/database"

	"go.uber.org/zap"
)

// FavoriteRepository stores each user's favorite movies
type FavoriteRepository interface {
	// Toggle adds the movie if absent and removes it otherwise. It reports
	// whether the movie is a favorite afterwards.
	Toggle(ctx context.Context, userID, movieID string) (bool, error)
	ListMovies(ctx context.Context, userID string) ([]*entity.Movie, error)
	// DeleteByUser drops all favorites of a removed account
	DeleteByUser(ctx context.Context, userID string) error
}

type favoriteRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewFavoriteRepository(db database.PgxIface, log *zap.Logger) FavoriteRepository {
	return &favoriteRepository{
		db:  db,
		log: log.With(zap.String("repository", "favorite")),
	}
}

func (r *favoriteRepository) Toggle(ctx context.Context, userID, movieID string) (bool, error) {
	// one statement: the insert only runs when the delete removed nothing
	query := `
		WITH removed AS (
			DELETE FROM user_favorites
			WHERE user_id = $1 AND movie_id = $2
			RETURNING 1
		)
		INSERT INTO user_favorites (user_id, movie_id, created_at)
		SELECT $1, $2, NOW()
		WHERE NOT EXISTS (SELECT 1 FROM removed)
		ON CONFLICT (user_id, movie_id) DO NOTHING
	`

	tag, err := r.db.Exec(ctx, query, userID, movieID)
	if err != nil {
		r.log.Error("Failed to toggle favorite", zap.Error(err), zap.String("user_id", userID), zap.String("movie_id", movieID))
		return false, fmt.Errorf("toggle favorite %s for %s: %w", movieID, userID, err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *favoriteRepository) ListMovies(ctx context.Context, userID string) ([]*entity.Movie, error) {
	query := `
		SELECT ` + movieColumns + `
		FROM user_favorites uf
		JOIN movies m ON m.id = uf.movie_id
		WHERE uf.user_id = $1
		ORDER BY uf.created_at DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.log.Error("Failed to list favorites", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("list favorites for %s: %w", userID, err)
	}
	defer rows.Close()

	var movies []*entity.Movie
	for rows.Next() {
		var m entity.Movie
		if err := rows.Scan(
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
		); err != nil {
			return nil, fmt.Errorf("scan favorite movie: %w", err)
		}
		movies = append(movies, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate favorites: %w", err)
	}

	return movies, nil
}

func (r *favoriteRepository) DeleteByUser(ctx context.Context, userID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM user_favorites WHERE user_id = $1`, userID); err != nil {
		r.log.Error("Failed to delete favorites", zap.Error(err), zap.String("user_id", userID))
		return fmt.Errorf("delete favorites for %s: %w", userID, err)
	}
	return nil
}
