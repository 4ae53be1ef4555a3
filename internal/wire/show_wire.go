package wire

import (
	"movie-ticket-booking/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireShow(r chi.Router, showHandler *adaptor.ShowHandler) {
	// ==================== PUBLIC ROUTES ====================
	// GET /api/shows - Movies with upcoming shows
	r.Get("/api/shows", showHandler.ListNowShowing)

	// GET /api/shows/{movieId} - Showtimes of one movie, grouped by date
	r.Get("/api/shows/{movieId}", showHandler.GetMovieShows)
}
