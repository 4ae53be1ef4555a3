package response

type FavoriteResponse struct {
	MovieID    string `json:"movie_id"`
	IsFavorite bool   `json:"is_favorite"`
}
