package models

import "time"

// Notification types mirror what the web client renders.
const (
	NotificationTypeMessage       = "MESSAGE"
	NotificationTypeChat          = "CHAT"
	NotificationTypeFlagged       = "FLAGGED"
	NotificationTypeModeration    = "MODERATION"
	NotificationTypeSystem        = "SYSTEM"
	NotificationTypeFriendRequest = "FRIEND_REQUEST"
	NotificationTypeFriendAccept  = "FRIEND_ACCEPT"
)

// Notification is a persisted per-user notification row.
type Notification struct {
	ID        int       `db:"id" json:"id"`
	UserID    int       `db:"user_id" json:"userId"`
	Type      string    `db:"type" json:"type"`
	Title     *string   `db:"title" json:"title"`
	Content   *string   `db:"content" json:"content"`
	IsRead    bool      `db:"is_read" json:"isRead"`
	ChatID    *int      `db:"chat_id" json:"chatId"`
	MessageID *int      `db:"message_id" json:"messageId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
