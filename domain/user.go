// Package domain contains core concepts of the messaging system.
// No runtime, network, or storage logic should be added here.
package domain

import "time"

// User is the account entity. The delivery core only ever reads
// ID and Username; everything else belongs to the auth collaborator.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// UserRef is the narrow identity view carried inside events and pushes.
type UserRef struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

func (u User) Ref() UserRef {
	return UserRef{ID: u.ID, Username: u.Username}
}
