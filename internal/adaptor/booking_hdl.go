package adaptor

import (
	"net/http"

	"movie-ticket-booking/internal/dto/request"
	"movie-ticket-booking/internal/dto/response"
	"movie-ticket-booking/internal/usecase"
	"movie-ticket-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type BookingHandler struct {
	service  usecase.BookingService
	payments usecase.PaymentService
	log      *zap.Logger
}

func NewBookingHandler(service usecase.BookingService, payments usecase.PaymentService, log *zap.Logger) *BookingHandler {
	return &BookingHandler{
		service:  service,
		payments: payments,
		log:      log.With(zap.String("handler", "booking")),
	}
}

// OccupiedSeats handles GET /api/booking/seats/{showId} (public)
func (h *BookingHandler) OccupiedSeats(w http.ResponseWriter, r *http.Request) {
	showID := chi.URLParam(r, "showId")
	if showID == "" {
		utils.ResponseBadRequest(w, "Show ID is required", nil)
		return
	}

	seats, err := h.service.OccupiedSeats(r.Context(), showID)
	if err != nil {
		handleServiceError(w, h.log, err, "get occupied seats")
		return
	}

	utils.ResponseSuccess(w, "success", response.OccupiedSeatsResponse{
		ShowID:        showID,
		OccupiedSeats: seats,
	})
}

// CreateBooking handles POST /api/booking/create (protected)
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req request.CreateBookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	booking, err := h.service.CreateBooking(r.Context(), userID, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "create booking")
		return
	}

	resp := response.CreateBookingResponse{
		BookingID: booking.ID.String(),
		Amount:    booking.Amount,
	}

	// Booking tetap dibuat walau checkout gagal; user bisa retry lewat /api/booking/payment
	checkout, err := h.payments.CreateCheckoutSession(r.Context(), userID, resp.BookingID, r.Header.Get("Origin"))
	if err != nil {
		h.log.Warn("Checkout not opened for new booking",
			zap.Error(err),
			zap.String("booking_id", resp.BookingID),
		)
	} else {
		resp.PaymentURL = checkout.PaymentURL
	}

	utils.ResponseCreated(w, "Booked successfully", resp)
}

// CancelBooking handles POST /api/booking/cancel (protected)
func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req request.CancelBookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	if err := h.service.CancelBooking(r.Context(), req.BookingID, userID); err != nil {
		handleServiceError(w, h.log, err, "cancel booking")
		return
	}

	utils.ResponseSuccess(w, "Booking cancelled", nil)
}

// GetUserBookings handles GET /api/user/bookings (protected)
func (h *BookingHandler) GetUserBookings(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	bookings, err := h.service.GetUserBookings(r.Context(), userID, pageRequest(r))
	if err != nil {
		handleServiceError(w, h.log, err, "get user bookings")
		return
	}

	utils.ResponseSuccess(w, "success", bookings)
}

func pageRequest(r *http.Request) *request.PaginatedRequest {
	query := r.URL.Query()
	page, perPage := utils.NormalizePage(
		utils.ParseInt(query.Get("page"), utils.DefaultPage),
		utils.ParseInt(query.Get("per_page"), utils.DefaultPerPage),
	)
	return &request.PaginatedRequest{Page: page, PerPage: perPage}
}
