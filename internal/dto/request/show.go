package request

// ShowSlot is one date with the start times scheduled on it
type ShowSlot struct {
	Date  string   `json:"date" validate:"required,datetime=2006-01-02"`
	Times []string `json:"time" validate:"required,min=1,dive,datetime=15:04"`
}

type AddShowRequest struct {
	MovieID     string     `json:"movie_id" validate:"required"`
	ShowPrice   float64    `json:"show_price" validate:"gte=0"`
	TheaterType string     `json:"theater_type" validate:"omitempty,oneof=Standard IMAX Premium"`
	ShowInput   []ShowSlot `json:"show_input" validate:"required,min=1,dive"`
}
