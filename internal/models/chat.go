package models

import "time"

// Chat represents a direct chat between exactly two users.
type Chat struct {
	ID        int       `db:"id" json:"id"`
	User1ID   int       `db:"user1_id" json:"user1Id"`
	User2ID   int       `db:"user2_id" json:"user2Id"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// OtherParticipant returns the participant that is not userID.
func (c Chat) OtherParticipant(userID int) int {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

// HasParticipant reports whether userID belongs to the chat.
func (c Chat) HasParticipant(userID int) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// ChatPreview is the chat-list view of a chat: participants, last message and
// the unread count for the requesting user. It is also what rides along a
// message:new event so the recipient can render a new chat-list entry without
// a refetch.
type ChatPreview struct {
	ID          int       `json:"id"`
	User1ID     int       `json:"user1Id"`
	User2ID     int       `json:"user2Id"`
	User1       *User     `json:"user1,omitempty"`
	User2       *User     `json:"user2,omitempty"`
	LastMessage *Message  `json:"lastMessage,omitempty"`
	UnreadCount int       `json:"unreadCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
