// Package model defines the data structures used throughout the application.
package model

import "time"

// Account is an authenticated identity. Its ID is the subject carried in the
// session token and is the "user id" every other record refers to.
//
// An account is created either by email/password sign-up or on the first
// GitHub sign-in. PasswordHash is empty for GitHub-only accounts and GitHubID
// is nil for password-only accounts.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	GitHubID     *int64    `json:"githubId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
