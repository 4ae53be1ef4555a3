package entity

// User mirrors an account of the external identity provider
type User struct {
	ID       string  `db:"id"`
	Name     string  `db:"name"`
	Email    string  `db:"email"`
	ImageURL *string `db:"image_url"`
	Timestamps
}
