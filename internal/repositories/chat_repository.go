package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"safechat-service/internal/models"
)

var ErrChatNotFound = errors.New("chat not found")

// ChatRepository abstracts chat persistence.
type ChatRepository interface {
	CreateOrGetChat(ctx context.Context, userID int, friendID int) (models.Chat, bool, error)
	GetChat(ctx context.Context, chatID int) (models.Chat, error)
	IsParticipant(ctx context.Context, chatID int, userID int) (bool, error)
	ListChats(ctx context.Context, userID int) ([]models.ChatPreview, error)
	GetChatPreview(ctx context.Context, chatID int) (models.ChatPreview, error)
	TouchChat(ctx context.Context, chatID int, at time.Time) error
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

const chatColumns = `id, user1_id, user2_id, created_at, updated_at`

// CreateOrGetChat creates a chat between two users if it does not already
// exist. The second return value reports whether a new row was created.
func (r *ChatRepo) CreateOrGetChat(ctx context.Context, userID int, friendID int) (models.Chat, bool, error) {
	if userID == friendID {
		return models.Chat{}, false, errors.New("cannot create chat with self")
	}
	participants := []int{userID, friendID}
	sort.Ints(participants)
	user1, user2 := participants[0], participants[1]

	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chats WHERE user1_id=$1 AND user2_id=$2`, user1, user2)
	if err == nil {
		return chat, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, false, err
	}

	err = r.db.QueryRowxContext(ctx, `INSERT INTO chats (user1_id, user2_id) VALUES ($1, $2)
        ON CONFLICT (user1_id, user2_id) DO UPDATE SET user1_id = EXCLUDED.user1_id
        RETURNING `+chatColumns, user1, user2).StructScan(&chat)
	if err != nil {
		return models.Chat{}, false, err
	}
	// On a lost insert race the RETURNING row is the concurrently created chat.
	created := chat.CreatedAt.Equal(chat.UpdatedAt)
	return chat, created, nil
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// IsParticipant checks whether a user belongs to the chat.
func (r *ChatRepo) IsParticipant(ctx context.Context, chatID int, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM chats WHERE id=$1 AND (user1_id=$2 OR user2_id=$2))`, chatID, userID)
	return exists, err
}

// chatPreviewRow is the flat scan target for the preview queries.
type chatPreviewRow struct {
	models.Chat
	U1ID       int        `db:"u1_id"`
	U1Name     string     `db:"u1_username"`
	U1Pic      *string    `db:"u1_profile_pic"`
	U1Private  bool       `db:"u1_is_private"`
	U1Online   bool       `db:"u1_is_online"`
	U1LastSeen time.Time  `db:"u1_last_seen"`
	U2ID       int        `db:"u2_id"`
	U2Name     string     `db:"u2_username"`
	U2Pic      *string    `db:"u2_profile_pic"`
	U2Private  bool       `db:"u2_is_private"`
	U2Online   bool       `db:"u2_is_online"`
	U2LastSeen time.Time  `db:"u2_last_seen"`
	MsgID      *int       `db:"msg_id"`
	MsgUserID  *int       `db:"msg_user_id"`
	MsgText    *string    `db:"msg_text"`
	MsgFlagged *bool      `db:"msg_is_flagged"`
	MsgCreated *time.Time `db:"msg_created_at"`
}

const chatPreviewQuery = `SELECT
        c.id, c.user1_id, c.user2_id, c.created_at, c.updated_at,
        u1.id AS u1_id, u1.username AS u1_username, u1.profile_pic AS u1_profile_pic,
        u1.is_private AS u1_is_private, u1.is_online AS u1_is_online, u1.last_seen AS u1_last_seen,
        u2.id AS u2_id, u2.username AS u2_username, u2.profile_pic AS u2_profile_pic,
        u2.is_private AS u2_is_private, u2.is_online AS u2_is_online, u2.last_seen AS u2_last_seen,
        m.id AS msg_id, m.user_id AS msg_user_id, m.message_text AS msg_text,
        m.is_flagged AS msg_is_flagged, m.created_at AS msg_created_at
    FROM chats c
    JOIN users u1 ON u1.id = c.user1_id
    JOIN users u2 ON u2.id = c.user2_id
    LEFT JOIN LATERAL (
        SELECT id, user_id, message_text, is_flagged, created_at
        FROM messages WHERE chat_id = c.id
        ORDER BY created_at DESC, id DESC LIMIT 1
    ) m ON TRUE`

func (row chatPreviewRow) toPreview() models.ChatPreview {
	preview := models.ChatPreview{
		ID:        row.ID,
		User1ID:   row.User1ID,
		User2ID:   row.User2ID,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		User1: &models.User{
			ID: row.U1ID, Username: row.U1Name, ProfilePic: row.U1Pic,
			IsPrivate: row.U1Private, IsOnline: row.U1Online, LastSeen: row.U1LastSeen,
		},
		User2: &models.User{
			ID: row.U2ID, Username: row.U2Name, ProfilePic: row.U2Pic,
			IsPrivate: row.U2Private, IsOnline: row.U2Online, LastSeen: row.U2LastSeen,
		},
	}
	if row.MsgID != nil {
		preview.LastMessage = &models.Message{
			ID:          *row.MsgID,
			ChatID:      row.ID,
			UserID:      *row.MsgUserID,
			MessageText: *row.MsgText,
			IsFlagged:   *row.MsgFlagged,
			CreatedAt:   *row.MsgCreated,
		}
	}
	return preview
}

// ListChats returns previews of every chat the user participates in, most
// recently active first. Unread counts are filled in by the caller.
func (r *ChatRepo) ListChats(ctx context.Context, userID int) ([]models.ChatPreview, error) {
	rows, err := r.db.QueryxContext(ctx, chatPreviewQuery+`
        WHERE c.user1_id=$1 OR c.user2_id=$1
        ORDER BY c.updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	previews := []models.ChatPreview{}
	for rows.Next() {
		var row chatPreviewRow
		if err := rows.StructScan(&row); err != nil {
			return nil, err
		}
		previews = append(previews, row.toPreview())
	}
	return previews, rows.Err()
}

// GetChatPreview returns the preview of a single chat.
func (r *ChatRepo) GetChatPreview(ctx context.Context, chatID int) (models.ChatPreview, error) {
	var row chatPreviewRow
	err := r.db.GetContext(ctx, &row, chatPreviewQuery+` WHERE c.id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatPreview{}, ErrChatNotFound
	}
	if err != nil {
		return models.ChatPreview{}, err
	}
	return row.toPreview(), nil
}

// TouchChat bumps the chat's updated_at so it sorts to the top of chat lists.
func (r *ChatRepo) TouchChat(ctx context.Context, chatID int, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE chats SET updated_at=$1 WHERE id=$2`, at, chatID)
	return err
}
