package dto

type CreateUserRequest struct {
	Email    string   `json:"email"`
	Name     string   `json:"name"`
	Password string   `json:"password"`
	Roles    []string `json:"roles"`
}

// Actor is the admin performing a privileged mutation.
type Actor struct {
	Email   string
	IP      string
	Comment string
}
