package entity

type Movie struct {
	ID           string   `db:"id"`
	Title        string   `db:"title"`
	Overview     string   `db:"overview"`
	PosterPath   string   `db:"poster_path"`
	BackdropPath string   `db:"backdrop_path"`
	ReleaseDate  string   `db:"release_date"`
	Runtime      int      `db:"runtime"`
	VoteAverage  float64  `db:"vote_average"`
	Genres       []string `db:"genres"`
	Timestamps
}
