package user

import "time"

// User represents a user in the system
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateUserRequest is the body of POST /users
type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}
