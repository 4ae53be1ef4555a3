package request

type CreateBookingRequest struct {
	ShowID        string   `json:"show_id" validate:"required,uuid"`
	SelectedSeats []string `json:"selected_seats" validate:"required,min=1,unique,dive,seatlabel"`
}

type CancelBookingRequest struct {
	BookingID string `json:"booking_id" validate:"required,uuid"`
}
