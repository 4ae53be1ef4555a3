package request

type FavoriteRequest struct {
	MovieID string `json:"movie_id" validate:"required"`
}
