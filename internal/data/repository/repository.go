package repository

import (
	"context"

	"movie-ticket-booking/pkg/database"

	"go.uber.org/zap"
)

// Transactor runs fn in one database transaction. Repositories called with
// the ctx passed to fn take part in it.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Repository struct {
	Tx       Transactor
	Show     ShowRepository
	Booking  BookingRepository
	Movie    MovieRepository
	User     UserRepository
	Favorite FavoriteRepository
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	return &Repository{
		Tx:       db,
		Show:     NewShowRepository(db, log),
		Booking:  NewBookingRepository(db, log),
		Movie:    NewMovieRepository(db, log),
		User:     NewUserRepository(db, log),
		Favorite: NewFavoriteRepository(db, log),
	}
}
