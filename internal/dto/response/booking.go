package response

import (
	"time"

	"movie-ticket-booking/internal/data/entity"
)

type CreateBookingResponse struct {
	BookingID  string  `json:"booking_id"`
	Amount     float64 `json:"amount"`
	PaymentURL string  `json:"payment_url,omitempty"`
}

type BookingResponse struct {
	ID          string               `json:"id"`
	UserID      string               `json:"user_id"`
	ShowID      string               `json:"show_id"`
	BookedSeats []string             `json:"booked_seats"`
	Amount      float64              `json:"amount"`
	IsPaid      bool                 `json:"is_paid"`
	Status      entity.BookingStatus `json:"status"`
	PaymentLink *string              `json:"payment_link,omitempty"`
	PaidAt      *time.Time           `json:"paid_at,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}

type BookingDetailResponse struct {
	BookingResponse
	Show ShowResponse  `json:"show"`
	User *UserResponse `json:"user,omitempty"`
}

type UserResponse struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	ImageURL *string `json:"image_url,omitempty"`
}

type OccupiedSeatsResponse struct {
	ShowID        string   `json:"show_id"`
	OccupiedSeats []string `json:"occupied_seats"`
}

// Helper converters
func BookingToResponse(b *entity.Booking) BookingResponse {
	seats := b.BookedSeats
	if seats == nil {
		seats = []string{}
	}
	return BookingResponse{
		ID:          b.ID.String(),
		UserID:      b.UserID,
		ShowID:      b.ShowID.String(),
		BookedSeats: seats,
		Amount:      b.Amount,
		IsPaid:      b.IsPaid,
		Status:      b.Status(),
		PaymentLink: b.PaymentLink,
		PaidAt:      b.PaidAt,
		CreatedAt:   b.CreatedAt,
	}
}

func BookingDetailToResponse(d *entity.BookingDetail) BookingDetailResponse {
	resp := BookingDetailResponse{
		BookingResponse: BookingToResponse(&d.Booking),
		Show:            ShowToResponse(&d.Show, &d.Movie),
	}
	if d.User != nil {
		resp.User = &UserResponse{
			ID:       d.User.ID,
			Name:     d.User.Name,
			Email:    d.User.Email,
			ImageURL: d.User.ImageURL,
		}
	}
	return resp
}
