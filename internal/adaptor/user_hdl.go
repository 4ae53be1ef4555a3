package adaptor

import (
	"net/http"

	"movie-ticket-booking/internal/dto/request"
	"movie-ticket-booking/internal/usecase"
	"movie-ticket-booking/pkg/utils"

	"go.uber.org/zap"
)

type UserHandler struct {
	service usecase.UserService
	log     *zap.Logger
}

func NewUserHandler(service usecase.UserService, log *zap.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		log:     log.With(zap.String("handler", "user")),
	}
}

// UpdateFavorite handles POST /api/user/update-favorite (protected)
func (h *UserHandler) UpdateFavorite(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req request.FavoriteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.ToggleFavorite(r.Context(), userID, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "update favorite")
		return
	}

	message := "Favorite removed successfully"
	if result.IsFavorite {
		message = "Favorite added successfully"
	}
	utils.ResponseSuccess(w, message, result)
}

// Favorites handles GET /api/user/favorites (protected)
func (h *UserHandler) Favorites(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	movies, err := h.service.Favorites(r.Context(), userID)
	if err != nil {
		handleServiceError(w, h.log, err, "list favorites")
		return
	}

	utils.ResponseSuccess(w, "success", movies)
}
