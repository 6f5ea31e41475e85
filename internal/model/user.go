package model

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

// UserDraft is a user that has not been stored yet and therefore has no ID.
type UserDraft struct {
	Email        string
	Name         string
	PasswordHash string
}

// Commit turns the draft into a stored user.
func (d UserDraft) Commit(id int64, createdAt time.Time) *User {
	return &User{
		ID:           id,
		Email:        d.Email,
		Name:         d.Name,
		PasswordHash: d.PasswordHash,
		CreatedAt:    createdAt,
	}
}

type Profile struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) Profile() *Profile {
	return &Profile{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
	}
}

// NormalizeEmail makes equal addresses compare equal regardless of case,
// surrounding space or unicode composition.
func NormalizeEmail(email string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(email)))
}
