package adaptor

import (
	"io"
	"net/http"

	"movie-ticket-booking/internal/dto/request"
	"movie-ticket-booking/internal/usecase"
	"movie-ticket-booking/pkg/utils"

	"go.uber.org/zap"
)

// maxWebhookBody matches the payload limit Stripe documents for webhook events
const maxWebhookBody = 65536

type PaymentHandler struct {
	service usecase.PaymentService
	log     *zap.Logger
}

func NewPaymentHandler(service usecase.PaymentService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		log:     log.With(zap.String("handler", "payment")),
	}
}

// Checkout handles POST /api/booking/payment (protected)
func (h *PaymentHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req request.CheckoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	checkout, err := h.service.CreateCheckoutSession(r.Context(), userID, req.BookingID, r.Header.Get("Origin"))
	if err != nil {
		handleServiceError(w, h.log, err, "create checkout session")
		return
	}

	utils.ResponseSuccess(w, "success", checkout)
}

// Verify handles POST /api/booking/verify (protected)
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req request.VerifyPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	status, err := h.service.ConfirmPayment(r.Context(), userID, req.SessionID)
	if err != nil {
		handleServiceError(w, h.log, err, "verify payment")
		return
	}

	utils.ResponseSuccess(w, "success", status)
}

// StripeWebhook handles POST /api/webhooks/stripe (signed by Stripe)
func (h *PaymentHandler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := h.service.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		handleServiceError(w, h.log, err, "handle stripe webhook")
		return
	}

	utils.ResponseSuccess(w, "received", nil)
}
