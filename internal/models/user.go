package models

// User owns an ordered log of exercise ids. Insertion order is the order in
// which exercises were logged, not their dates.
type User struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Log      []string `json:"-"`
}

// CreateUserRequest is the body for POST /api/users.
type CreateUserRequest struct {
	Username string `json:"username"`
}

// UserResponse is the public projection of a user.
type UserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}
