package adaptor

import (
	"net/http"

	"movie-ticket-booking/internal/dto/request"
	"movie-ticket-booking/internal/usecase"
	"movie-ticket-booking/pkg/utils"

	"go.uber.org/zap"
)

type AdminHandler struct {
	shows     usecase.ShowService
	bookings  usecase.BookingService
	scheduler SchedulerStats
	log       *zap.Logger
}

func NewAdminHandler(shows usecase.ShowService, bookings usecase.BookingService, scheduler SchedulerStats, log *zap.Logger) *AdminHandler {
	return &AdminHandler{
		shows:     shows,
		bookings:  bookings,
		scheduler: scheduler,
		log:       log.With(zap.String("handler", "admin")),
	}
}

// IsAdmin handles GET /api/admin/is-admin; the Admin middleware already checked the role
func (h *AdminHandler) IsAdmin(w http.ResponseWriter, r *http.Request) {
	utils.ResponseSuccess(w, "success", map[string]bool{"is_admin": true})
}

// AllShows handles GET /api/admin/all-shows
func (h *AdminHandler) AllShows(w http.ResponseWriter, r *http.Request) {
	shows, err := h.shows.ListAllShows(r.Context(), pageRequest(r))
	if err != nil {
		handleServiceError(w, h.log, err, "list all shows")
		return
	}

	utils.ResponseSuccess(w, "success", shows)
}

// AllBookings handles GET /api/admin/all-bookings
func (h *AdminHandler) AllBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.bookings.GetAllBookings(r.Context(), pageRequest(r))
	if err != nil {
		handleServiceError(w, h.log, err, "list all bookings")
		return
	}

	utils.ResponseSuccess(w, "success", bookings)
}

// AddShows handles POST /api/admin/shows
func (h *AdminHandler) AddShows(w http.ResponseWriter, r *http.Request) {
	var req request.AddShowRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.shows.AddShows(r.Context(), &req)
	if err != nil {
		handleServiceError(w, h.log, err, "add shows")
		return
	}

	utils.ResponseCreated(w, "Show added successfully", resp)
}

// NowPlaying handles GET /api/admin/now-playing
func (h *AdminHandler) NowPlaying(w http.ResponseWriter, r *http.Request) {
	movies, err := h.shows.NowPlaying(r.Context())
	if err != nil {
		handleServiceError(w, h.log, err, "get now playing")
		return
	}

	utils.ResponseSuccess(w, "success", movies)
}

// SchedulerStats handles GET /api/admin/scheduler
func (h *AdminHandler) SchedulerStats(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		utils.ResponseNotFound(w, "scheduler is not running on this instance")
		return
	}

	utils.ResponseSuccess(w, "success", h.scheduler.GetStats())
}
