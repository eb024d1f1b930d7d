package model

import "time"

// User is an API caller. Requests authenticate with a bearer token whose
// SHA-256 hash is stored here.
type User struct {
	ID              string    `db:"id" json:"id"`
	Email           string    `db:"email" json:"email"`
	Name            string    `db:"name" json:"name"`
	TokenHash       string    `db:"token_hash" json:"-"`
	RateLimitPerMin int       `db:"rate_limit_per_min" json:"-"`
	IsActive        bool      `db:"is_active" json:"isActive"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
}
