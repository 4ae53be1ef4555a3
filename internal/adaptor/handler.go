package adaptor

import (
	"encoding/json"
	"net/http"

	"movie-ticket-booking/internal/dto/response"
	"movie-ticket-booking/internal/usecase"
	"movie-ticket-booking/pkg/apperror"
	"movie-ticket-booking/pkg/utils"

	"go.uber.org/zap"
)

// SchedulerStats reports on the expiry worker
type SchedulerStats interface {
	GetStats() *response.SchedulerStatsResponse
}

type Handler struct {
	Booking  *BookingHandler
	Payment  *PaymentHandler
	Show     *ShowHandler
	Admin    *AdminHandler
	Identity *IdentityHandler
	User     *UserHandler
}

func NewHandler(service *usecase.Service, scheduler SchedulerStats, config *utils.Config, log *zap.Logger) *Handler {
	return &Handler{
		Booking:  NewBookingHandler(service.Booking, service.Payment, log),
		Payment:  NewPaymentHandler(service.Payment, log),
		Show:     NewShowHandler(service.Show, log),
		Admin:    NewAdminHandler(service.Show, service.Booking, scheduler, log),
		Identity: NewIdentityHandler(service.User, config.Auth.IdentitySecret, log),
		User:     NewUserHandler(service.User, log),
	}
}

// decodeJSON reads a JSON body, writing a 400 on failure
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return false
	}
	return true
}

// requireUser returns the authenticated user id, writing a 401 when missing
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return "", false
	}
	return userID, true
}

// handleServiceError maps usecase errors to HTTP responses
func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	kind := apperror.KindOf(err)
	fields := []zap.Field{zap.Error(err), zap.String("operation", operation)}

	switch kind {
	case apperror.KindValidation:
		log.Warn(operation+" validation failed", fields...)
		utils.ResponseBadRequest(w, err.Error(), apperror.DetailsOf(err))

	case apperror.KindNotFound:
		log.Warn(operation+" failed - not found", fields...)
		utils.ResponseNotFound(w, err.Error())

	case apperror.KindConflict:
		log.Info(operation+" failed - conflict", fields...)
		utils.ResponseConflict(w, err.Error(), apperror.DetailsOf(err))

	case apperror.KindAuthorization:
		log.Warn(operation+" failed - forbidden", fields...)
		utils.ResponseForbidden(w, err.Error())

	case apperror.KindUpstream:
		log.Error(operation+" failed - upstream", fields...)
		utils.ResponseBadGateway(w, err.Error())

	default:
		log.Error("Failed to "+operation, fields...)
		utils.ResponseInternalError(w, "Internal server error")
	}
}
