package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"safechat-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for chat messages and read receipts.
type MessageRepository interface {
	CreateMessage(ctx context.Context, chatID int, senderID int, text string) (models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	ListMessages(ctx context.Context, chatID int) ([]models.Message, error)
	UnreadMessageIDs(ctx context.Context, chatID int, readerID int, messageIDs []int) ([]int, error)
	InsertReadReceipts(ctx context.Context, messageIDs []int, readerID int, readAt time.Time) ([]models.ReadReceipt, error)
	UnreadCounts(ctx context.Context, userID int) (map[int]int, error)
	UpdateModeration(ctx context.Context, messageID int, score float64, category string, emotion string, flagged bool) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, chat_id, user_id, message_text, toxicity_score, toxicity_category, emotion, is_flagged, created_at`

// CreateMessage stores a message in a chat.
func (r *MessageRepo) CreateMessage(ctx context.Context, chatID int, senderID int, text string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (chat_id, user_id, message_text) VALUES ($1, $2, $3)
        RETURNING `+messageColumns, chatID, senderID, text).StructScan(&msg)
	if err != nil {
		return models.Message{}, err
	}
	msg.ReadReceipts = []models.ReadReceipt{}
	return msg, nil
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListMessages returns the chat's messages in send order with their receipts attached.
func (r *MessageRepo) ListMessages(ctx context.Context, chatID int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages
        WHERE chat_id=$1 ORDER BY created_at ASC, id ASC`, chatID)
	if err != nil {
		return nil, err
	}

	var receipts []models.ReadReceipt
	err = r.db.SelectContext(ctx, &receipts, `SELECT rr.message_id, rr.user_id, rr.read_at
        FROM message_read_receipts rr
        JOIN messages m ON m.id = rr.message_id
        WHERE m.chat_id=$1`, chatID)
	if err != nil {
		return nil, err
	}

	byMessage := make(map[int][]models.ReadReceipt, len(receipts))
	for _, receipt := range receipts {
		byMessage[receipt.MessageID] = append(byMessage[receipt.MessageID], receipt)
	}
	for i := range msgs {
		if rs, ok := byMessage[msgs[i].ID]; ok {
			msgs[i].ReadReceipts = rs
		} else {
			msgs[i].ReadReceipts = []models.ReadReceipt{}
		}
	}
	return msgs, nil
}

// UnreadMessageIDs returns ids of messages in the chat that were authored by
// someone other than readerID and carry no receipt from readerID. When
// messageIDs is non-empty the result is restricted to that set.
func (r *MessageRepo) UnreadMessageIDs(ctx context.Context, chatID int, readerID int, messageIDs []int) ([]int, error) {
	query := `SELECT m.id FROM messages m
        WHERE m.chat_id=$1 AND m.user_id<>$2
        AND NOT EXISTS (
            SELECT 1 FROM message_read_receipts rr
            WHERE rr.message_id = m.id AND rr.user_id = $2
        )`
	args := []interface{}{chatID, readerID}
	if len(messageIDs) > 0 {
		query += ` AND m.id = ANY($3)`
		args = append(args, pq.Array(messageIDs))
	}
	query += ` ORDER BY m.id ASC`

	var ids []int
	err := r.db.SelectContext(ctx, &ids, query, args...)
	return ids, err
}

// InsertReadReceipts inserts one receipt per message id with insert-or-skip
// semantics and returns only the rows actually created, so a concurrent
// duplicate call yields an empty result instead of an error.
func (r *MessageRepo) InsertReadReceipts(ctx context.Context, messageIDs []int, readerID int, readAt time.Time) ([]models.ReadReceipt, error) {
	if len(messageIDs) == 0 {
		return []models.ReadReceipt{}, nil
	}
	rows, err := r.db.QueryxContext(ctx, `INSERT INTO message_read_receipts (message_id, user_id, read_at)
        SELECT unnest($1::int[]), $2, $3
        ON CONFLICT (message_id, user_id) DO NOTHING
        RETURNING message_id, user_id, read_at`, pq.Array(messageIDs), readerID, readAt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	receipts := []models.ReadReceipt{}
	for rows.Next() {
		var receipt models.ReadReceipt
		if err := rows.StructScan(&receipt); err != nil {
			return nil, err
		}
		receipts = append(receipts, receipt)
	}
	return receipts, rows.Err()
}

// UnreadCounts groups unreceipted messages from other senders by chat for the
// user. Chats with zero unread messages are absent from the map.
func (r *MessageRepo) UnreadCounts(ctx context.Context, userID int) (map[int]int, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT m.chat_id, COUNT(*)
        FROM messages m
        JOIN chats c ON c.id = m.chat_id
        WHERE (c.user1_id=$1 OR c.user2_id=$1) AND m.user_id<>$1
        AND NOT EXISTS (
            SELECT 1 FROM message_read_receipts rr
            WHERE rr.message_id = m.id AND rr.user_id = $1
        )
        GROUP BY m.chat_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[int]int{}
	for rows.Next() {
		var chatID, count int
		if err := rows.Scan(&chatID, &count); err != nil {
			return nil, err
		}
		counts[chatID] = count
	}
	return counts, rows.Err()
}

// UpdateModeration writes the scorer's annotations onto the message row.
func (r *MessageRepo) UpdateModeration(ctx context.Context, messageID int, score float64, category string, emotion string, flagged bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages
        SET toxicity_score=$1, toxicity_category=$2, emotion=$3, is_flagged=$4
        WHERE id=$5`, score, category, emotion, flagged, messageID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}
