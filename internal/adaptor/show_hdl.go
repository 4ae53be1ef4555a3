package adaptor

import (
	"net/http"

	"movie-ticket-booking/internal/usecase"
	"movie-ticket-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ShowHandler struct {
	service usecase.ShowService
	log     *zap.Logger
}

func NewShowHandler(service usecase.ShowService, log *zap.Logger) *ShowHandler {
	return &ShowHandler{
		service: service,
		log:     log.With(zap.String("handler", "show")),
	}
}

// ListNowShowing handles GET /api/shows (public)
func (h *ShowHandler) ListNowShowing(w http.ResponseWriter, r *http.Request) {
	movies, err := h.service.ListNowShowing(r.Context())
	if err != nil {
		handleServiceError(w, h.log, err, "list shows")
		return
	}

	utils.ResponseSuccess(w, "success", movies)
}

// GetMovieShows handles GET /api/shows/{movieId} (public)
func (h *ShowHandler) GetMovieShows(w http.ResponseWriter, r *http.Request) {
	movieID := chi.URLParam(r, "movieId")
	if movieID == "" {
		utils.ResponseBadRequest(w, "Movie ID is required", nil)
		return
	}

	shows, err := h.service.GetMovieShows(r.Context(), movieID)
	if err != nil {
		handleServiceError(w, h.log, err, "get movie shows")
		return
	}

	utils.ResponseSuccess(w, "success", shows)
}
