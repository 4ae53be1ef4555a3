package response

import (
	"time"

	"movie-ticket-booking/internal/data/entity"
)

type MovieResponse struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Overview     string   `json:"overview"`
	PosterPath   string   `json:"poster_path"`
	BackdropPath string   `json:"backdrop_path"`
	ReleaseDate  string   `json:"release_date"`
	Runtime      int      `json:"runtime"`
	VoteAverage  float64  `json:"vote_average"`
	Genres       []string `json:"genres"`
}

type ShowResponse struct {
	ID           string         `json:"id"`
	ShowDateTime time.Time      `json:"show_date_time"`
	ShowPrice    float64        `json:"show_price"`
	TheaterType  string         `json:"theater_type"`
	SeatPrice    float64        `json:"seat_price"`
	Movie        *MovieResponse `json:"movie,omitempty"`
}

// ShowTime is one bookable start time on a date
type ShowTime struct {
	ShowID      string    `json:"show_id"`
	Time        time.Time `json:"time"`
	TheaterType string    `json:"theater_type"`
	SeatPrice   float64   `json:"seat_price"`
}

type MovieShowsResponse struct {
	Movie     MovieResponse         `json:"movie"`
	DateTimes map[string][]ShowTime `json:"date_time"`
}

type AddShowResponse struct {
	MovieID string   `json:"movie_id"`
	ShowIDs []string `json:"show_ids"`
}

func MovieToResponse(m *entity.Movie) MovieResponse {
	genres := m.Genres
	if genres == nil {
		genres = []string{}
	}
	return MovieResponse{
		ID:           m.ID,
		Title:        m.Title,
		Overview:     m.Overview,
		PosterPath:   m.PosterPath,
		BackdropPath: m.BackdropPath,
		ReleaseDate:  m.ReleaseDate,
		Runtime:      m.Runtime,
		VoteAverage:  m.VoteAverage,
		Genres:       genres,
	}
}

func ShowToResponse(s *entity.Show, m *entity.Movie) ShowResponse {
	resp := ShowResponse{
		ID:           s.ID.String(),
		ShowDateTime: s.ShowDateTime,
		ShowPrice:    s.ShowPrice,
		TheaterType:  string(s.TheaterType),
		SeatPrice:    s.SeatPrice(),
	}
	if m != nil && m.ID != "" {
		movie := MovieToResponse(m)
		resp.Movie = &movie
	}
	return resp
}
