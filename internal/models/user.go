package models

import "time"

// User carries the subset of the user row the chat service works with,
// including the presence fields owned by the presence publisher.
type User struct {
	ID         int       `db:"id" json:"id"`
	Username   string    `db:"username" json:"username"`
	ProfilePic *string   `db:"profile_pic" json:"profilePic"`
	IsPrivate  bool      `db:"is_private" json:"isPrivate"`
	IsOnline   bool      `db:"is_online" json:"isOnline"`
	LastSeen   time.Time `db:"last_seen" json:"lastSeen"`
}
