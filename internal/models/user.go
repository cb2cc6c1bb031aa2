package models

import (
	"time"
)

type User struct {
	ID              int64
	CreatedAt       time.Time
	Email           string
	Username        *string // nil until the user picks one
	PasswordHash    string
	APIKeyHash      string
	IsAdministrator bool
	RequestCount    int64
}

// Identity is what a verified token proves about its bearer
type Identity struct {
	UserID          int64
	IsAdministrator bool
}

func (u User) Identity() Identity {
	return Identity{UserID: u.ID, IsAdministrator: u.IsAdministrator}
}
