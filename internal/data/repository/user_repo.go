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

type UserRepository interface {
	Upsert(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id string) (*entity.User, error)
	Delete(ctx context.Context, id string) error
}

type userRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewUserRepository(db database.PgxIface, log *zap.Logger) UserRepository {
	return &userRepository{
		db:  db,
		log: log.With(zap.String("repository", "user")),
	}
}

func (r *userRepository) Upsert(ctx context.Context, user *entity.User) error {
	query := `
		INSERT INTO users (id, name, email, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			image_url = EXCLUDED.image_url,
			updated_at = NOW()
	`

	_, err := r.db.Exec(ctx, query, user.ID, user.Name, user.Email, user.ImageURL)
	if err != nil {
		r.log.Error("Failed to upsert user", zap.Error(err), zap.String("user_id", user.ID))
		return fmt.Errorf("upsert user %s: %w", user.ID, err)
	}

	return nil
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	query := `SELECT id, name, email, image_url, created_at, updated_at FROM users WHERE id = $1`

	var u entity.User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.ImageURL,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find user by ID", zap.Error(err), zap.String("user_id", id))
		return nil, fmt.Errorf("find user by ID %s: %w", id, err)
	}

	return &u, nil
}

// Delete removes the profile only; bookings keep the user id
func (r *userRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		r.log.Error("Failed to delete user", zap.Error(err), zap.String("user_id", id))
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	return nil
}
