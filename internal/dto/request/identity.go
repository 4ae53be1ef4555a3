package request

type IdentityEmail struct {
	EmailAddress string `json:"email_address"`
}

type IdentityUserData struct {
	ID             string          `json:"id" validate:"required"`
	FirstName      string          `json:"first_name"`
	LastName       string          `json:"last_name"`
	EmailAddresses []IdentityEmail `json:"email_addresses"`
	ImageURL       string          `json:"image_url"`
}

// IdentityEvent is a user lifecycle event from the identity provider
type IdentityEvent struct {
	Type string           `json:"type" validate:"required,oneof=user.created user.updated user.deleted"`
	Data IdentityUserData `json:"data"`
}
