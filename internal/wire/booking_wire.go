package wire

import (
	"movie-ticket-booking/internal/adaptor"
	"movie-ticket-booking/pkg/middleware"
	"movie-ticket-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireBooking(
	r chi.Router,
	bookingHandler *adaptor.BookingHandler,
	paymentHandler *adaptor.PaymentHandler,
	config *utils.Config,
	log *zap.Logger,
) {
	// ==================== PUBLIC ROUTES ====================
	// GET /api/booking/seats/{showId} - Occupied seats of a show
	r.Get("/api/booking/seats/{showId}", bookingHandler.OccupiedSeats)

	// POST /api/webhooks/stripe - Payment notifications (verified by signature, not JWT)
	r.Post("/api/webhooks/stripe", paymentHandler.StripeWebhook)

	// ==================== PROTECTED ROUTES (require auth) ====================
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(config.Auth, log))

		r.Route("/api/booking", func(r chi.Router) {
			r.Post("/create", bookingHandler.CreateBooking) // hold seats + open checkout
			r.Post("/cancel", bookingHandler.CancelBooking)
			r.Post("/payment", paymentHandler.Checkout) // reopen checkout for a pending booking
			r.Post("/verify", paymentHandler.Verify)    // return from hosted checkout
		})

		// GET /api/user/bookings - View booking history (user's own bookings)
		r.Get("/api/user/bookings", bookingHandler.GetUserBookings)
	})
}
