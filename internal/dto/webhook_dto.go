package dto

// IdentityUserDeleted is posted by the identity provider after it deletes a user.
type IdentityUserDeleted struct {
	Subject string `json:"subject"`
}

type IdentityUserDeletedResponse struct {
	Deleted bool   `json:"deleted"`
	UserID  string `json:"user_id,omitempty"`
}
