package domain

import "time"

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Creation is a user-owned build record. Photos is an ordered list of
// photo URLs; the order is the order the client attached them in.
type Creation struct {
	ID          string    `json:"id"`
	Owner       string    `json:"owner"`
	Title       string    `json:"title"`
	Photos      []string  `json:"photos"`
	Description string    `json:"description"`
	Rating      float64   `json:"rating"`
	LegoFamily  string    `json:"legoFamily"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Photo struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
}

// Identity is the authenticated caller derived from a verified session token.
type Identity struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}
