package models

import "time"

// Realtime event names pushed over websocket connections.
const (
	EventMessageNew      = "message:new"
	EventMessageRead     = "message:read"
	EventChatNew         = "chat:new"
	EventNotificationNew = "notification:new"
	EventPresenceUpdate  = "presence:update"

	// EventRegister is the only client-to-server event: it binds a
	// connection to a user room.
	EventRegister = "register"
)

// MessageNewPayload accompanies message:new. ChatPreview is included so the
// recipient can render a brand-new chat-list entry without a refetch.
type MessageNewPayload struct {
	ChatID      int          `json:"chatId"`
	Message     Message      `json:"message"`
	ChatPreview *ChatPreview `json:"chatPreview,omitempty"`
}

// MessageReadPayload accompanies message:read and carries the exact receipt
// rows created by the reconciler.
type MessageReadPayload struct {
	ChatID   int           `json:"chatId"`
	Receipts []ReadReceipt `json:"receipts"`
}

// ChatNewPayload accompanies chat:new.
type ChatNewPayload struct {
	Chat ChatPreview `json:"chat"`
}

// NotificationNewPayload accompanies notification:new.
type NotificationNewPayload struct {
	Notification Notification `json:"notification"`
}

// PresencePayload accompanies presence:update. Visible is false for private
// users, whose transitions are only delivered to friends and themselves.
type PresencePayload struct {
	UserID   int       `json:"userId"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
	Visible  bool      `json:"visible"`
}
