package wire

import (
	"movie-ticket-booking/internal/adaptor"
	"movie-ticket-booking/pkg/middleware"
	"movie-ticket-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// wireUser configures the identity provider's user sync hook and the
// favorites endpoints
func wireUser(
	r chi.Router,
	identityHandler *adaptor.IdentityHandler,
	userHandler *adaptor.UserHandler,
	config *utils.Config,
	log *zap.Logger,
) {
	// POST /api/identity/events - user.created / user.updated / user.deleted (shared secret)
	r.Post("/api/identity/events", identityHandler.Events)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(config.Auth, log))

		r.Post("/api/user/update-favorite", userHandler.UpdateFavorite) // toggle
		r.Get("/api/user/favorites", userHandler.Favorites)
	})
}
