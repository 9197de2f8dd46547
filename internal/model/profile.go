package model

import "time"

// Profile is the public face of an account on the leaderboard.
//
// UserID equals Account.ID; there is at most one profile per account.
// Username uniqueness is case-insensitive: "Reader_1" and "reader_1" cannot
// both exist.
type Profile struct {
	UserID         string    `json:"userId"`
	Username       string    `json:"username"`
	RegisterNumber string    `json:"registerNumber"`
	AvatarURL      string    `json:"avatarUrl,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// ProfileUpdate carries the fields of a partial profile update. A nil field
// is left unchanged.
type ProfileUpdate struct {
	Username       *string
	RegisterNumber *string
	AvatarURL      *string
}

// IsEmpty reports whether the update changes nothing.
func (u ProfileUpdate) IsEmpty() bool {
	return u.Username == nil && u.RegisterNumber == nil && u.AvatarURL == nil
}
