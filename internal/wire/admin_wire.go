package wire

import (
	"movie-ticket-booking/internal/adaptor"
	"movie-ticket-booking/pkg/middleware"
	"movie-ticket-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireAdmin(
	r chi.Router,
	adminHandler *adaptor.AdminHandler,
	config *utils.Config,
	log *zap.Logger,
) {
	// ==================== ADMIN ROUTES ====================
	r.Route("/api/admin", func(r chi.Router) {
		// Require both authentication AND admin role
		r.Use(middleware.Auth(config.Auth, log))
		r.Use(middleware.Admin(config.Auth.AdminRole, log))

		r.Get("/is-admin", adminHandler.IsAdmin)
		r.Get("/all-shows", adminHandler.AllShows)       // ?page=1&per_page=10
		r.Get("/all-bookings", adminHandler.AllBookings) // ?page=1&per_page=10
		r.Get("/now-playing", adminHandler.NowPlaying)
		r.Post("/shows", adminHandler.AddShows)
		r.Get("/scheduler", adminHandler.SchedulerStats)
	})
}
