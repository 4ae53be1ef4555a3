package response

type CheckoutResponse struct {
	BookingID  string `json:"booking_id"`
	SessionID  string `json:"session_id"`
	PaymentURL string `json:"payment_url"`
}

type PaymentStatusResponse struct {
	BookingID string `json:"booking_id,omitempty"`
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	IsPaid    bool   `json:"is_paid"`
}
