package models

import "time"

// User is an account that can take part in chats.
type User struct {
	ID            int       `db:"id" json:"id"`
	Username      string    `db:"username" json:"username"`
	PasswordHash  string    `db:"password_hash" json:"-"`
	AvatarURL     *string   `db:"avatar_url" json:"avatarUrl"`
	AvatarMediaID *string   `db:"avatar_media_id" json:"avatarMediaId,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// Profile is a user as seen by other users.
type Profile struct {
	User
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"lastSeen"`
}

// AuthResult is returned by register and login.
type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
