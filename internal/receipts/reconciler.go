// Package receipts reconciles which messages a user has seen.
package receipts

import (
	"context"
	"time"

	"github.com/samber/lo"

	"safechat-service/internal/models"
	"safechat-service/internal/observability"
	"safechat-service/internal/repositories"
	"safechat-service/internal/ws"
)

// Reconciler computes and persists read receipts for a reader, then notifies
// the chat's other participant. Marking read is idempotent: repeat calls with
// the same inputs create no extra rows and emit no extra events.
type Reconciler struct {
	chats      repositories.ChatRepository
	messages   repositories.MessageRepository
	dispatcher ws.Dispatcher
}

// NewReconciler constructs a Reconciler.
func NewReconciler(chats repositories.ChatRepository, messages repositories.MessageRepository, dispatcher ws.Dispatcher) *Reconciler {
	return &Reconciler{chats: chats, messages: messages, dispatcher: dispatcher}
}

// MarkRead records that readerID has seen the chat's messages from other
// senders. A non-empty messageIDs restricts the scope to those messages.
// Returns the receipts actually created; an empty result means everything
// was already read and nothing was dispatched.
func (r *Reconciler) MarkRead(ctx context.Context, chatID int, readerID int, messageIDs []int) ([]models.ReadReceipt, error) {
	chat, err := r.chats.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}

	unread, err := r.messages.UnreadMessageIDs(ctx, chatID, readerID, lo.Uniq(messageIDs))
	if err != nil {
		return nil, err
	}
	if len(unread) == 0 {
		return []models.ReadReceipt{}, nil
	}

	created, err := r.messages.InsertReadReceipts(ctx, unread, readerID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if len(created) == 0 {
		// A concurrent call won the insert race; it also owns the event.
		return created, nil
	}

	observability.AddReceiptsCreated(len(created))
	r.dispatcher.EmitToUser(chat.OtherParticipant(readerID), models.EventMessageRead, models.MessageReadPayload{
		ChatID:   chatID,
		Receipts: created,
	})
	return created, nil
}
