package models

import "time"

// Message represents a chat message. The toxicity fields are written by the
// external moderation scorer after the fact; fan-out forwards whatever values
// are present at dispatch time.
type Message struct {
	ID               int           `db:"id" json:"id"`
	ChatID           int           `db:"chat_id" json:"chatId"`
	UserID           int           `db:"user_id" json:"userId"`
	MessageText      string        `db:"message_text" json:"messageText"`
	ToxicityScore    *float64      `db:"toxicity_score" json:"toxicityScore"`
	ToxicityCategory *string       `db:"toxicity_category" json:"toxicityCategory"`
	Emotion          *string       `db:"emotion" json:"emotion"`
	IsFlagged        bool          `db:"is_flagged" json:"isFlagged"`
	CreatedAt        time.Time     `db:"created_at" json:"createdAt"`
	ReadReceipts     []ReadReceipt `db:"-" json:"readReceipts"`
}

// ReadReceipt records that a specific user has seen a specific message.
// There is at most one row per (messageId, userId).
type ReadReceipt struct {
	MessageID int       `db:"message_id" json:"messageId"`
	UserID    int       `db:"user_id" json:"userId"`
	ReadAt    time.Time `db:"read_at" json:"readAt"`
}

// HasReceiptFrom reports whether the message already carries a receipt by userID.
func (m Message) HasReceiptFrom(userID int) bool {
	for _, r := range m.ReadReceipts {
		if r.UserID == userID {
			return true
		}
	}
	return false
}
