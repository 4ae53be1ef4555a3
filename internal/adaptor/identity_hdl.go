package adaptor

import (
	"crypto/subtle"
	"net/http"

	"movie-ticket-booking/internal/dto/request"
	"movie-ticket-booking/internal/usecase"
	"movie-ticket-booking/pkg/utils"

	"go.uber.org/zap"
)

const identitySecretHeader = "X-Identity-Secret"

type IdentityHandler struct {
	service usecase.UserService
	secret  string
	log     *zap.Logger
}

func NewIdentityHandler(service usecase.UserService, secret string, log *zap.Logger) *IdentityHandler {
	return &IdentityHandler{
		service: service,
		secret:  secret,
		log:     log.With(zap.String("handler", "identity")),
	}
}

// Events handles POST /api/identity/events (shared secret)
func (h *IdentityHandler) Events(w http.ResponseWriter, r *http.Request) {
	given := r.Header.Get(identitySecretHeader)
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(given), []byte(h.secret)) != 1 {
		h.log.Warn("Rejected identity event", zap.String("remote_addr", r.RemoteAddr))
		utils.ResponseUnauthorized(w, "Invalid identity secret")
		return
	}

	var event request.IdentityEvent
	if !decodeJSON(w, r, &event) {
		return
	}

	if err := h.service.SyncUser(r.Context(), &event); err != nil {
		handleServiceError(w, h.log, err, "sync user")
		return
	}

	utils.ResponseSuccess(w, "success", nil)
}
