package request

type CheckoutRequest struct {
	BookingID string `json:"booking_id" validate:"required,uuid"`
}

type VerifyPaymentRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}
