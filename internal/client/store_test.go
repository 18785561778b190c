package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"safechat-service/internal/models"
)

func msg(id, chatID, userID int, at time.Time) models.Message {
	return models.Message{ID: id, ChatID: chatID, UserID: userID, CreatedAt: at}
}

func TestApplyMessageNewIsIdempotent(t *testing.T) {
	store := NewStore(1)
	store.SetChats([]models.ChatPreview{{ID: 5, User1ID: 1, User2ID: 2}})

	payload := models.MessageNewPayload{ChatID: 5, Message: msg(10, 5, 2, time.Now())}
	store.ApplyMessageNew(payload)
	store.ApplyMessageNew(payload)
	store.ApplyMessageNew(payload)

	require.Len(t, store.Messages(5), 1)
	require.Equal(t, 1, store.Chats()[0].UnreadCount)
}

func TestApplyMessageNewKeepsCreationOrder(t *testing.T) {
	store := NewStore(1)
	base := time.Now()

	store.ApplyMessageNew(models.MessageNewPayload{ChatID: 5, Message: msg(11, 5, 2, base.Add(time.Second))})
	store.ApplyMessageNew(models.MessageNewPayload{ChatID: 5, Message: msg(10, 5, 2, base)})

	msgs := store.Messages(5)
	require.Len(t, msgs, 2)
	require.Equal(t, 10, msgs[0].ID)
	require.Equal(t, 11, msgs[1].ID)
}

func TestApplyMessageNewCreatesChatFromPreview(t *testing.T) {
	store := NewStore(1)

	preview := models.ChatPreview{ID: 7, User1ID: 1, User2ID: 3}
	store.ApplyMessageNew(models.MessageNewPayload{
		ChatID:      7,
		Message:     msg(20, 7, 3, time.Now()),
		ChatPreview: &preview,
	})

	chats := store.Chats()
	require.Len(t, chats, 1)
	require.Equal(t, 7, chats[0].ID)
	require.Equal(t, 1, chats[0].UnreadCount)
	require.NotNil(t, chats[0].LastMessage)
	require.Equal(t, 20, chats[0].LastMessage.ID)
}

func TestApplyMessageNewOwnMessageDoesNotCountUnread(t *testing.T) {
	store := NewStore(1)
	store.SetChats([]models.ChatPreview{{ID: 5, User1ID: 1, User2ID: 2}})

	store.ApplyMessageNew(models.MessageNewPayload{ChatID: 5, Message: msg(10, 5, 1, time.Now())})

	require.Equal(t, 0, store.Chats()[0].UnreadCount)
}

func TestApplyMessageNewSelectedChatTriggersMarkRead(t *testing.T) {
	store := NewStore(1)
	store.SetChats([]models.ChatPreview{{ID: 5, User1ID: 1, User2ID: 2}})
	store.SelectChat(5)

	var gotChat int
	var gotIDs []int
	store.OnMarkRead(func(chatID int, messageIDs []int) {
		gotChat = chatID
		gotIDs = messageIDs
	})

	store.ApplyMessageNew(models.MessageNewPayload{ChatID: 5, Message: msg(10, 5, 2, time.Now())})

	require.Equal(t, 5, gotChat)
	require.Equal(t, []int{10}, gotIDs)
	require.Equal(t, 0, store.Chats()[0].UnreadCount)
}

func TestApplyMessageReadDeduplicatesReceipts(t *testing.T) {
	store := NewStore(1)
	at := time.Now()
	store.SetMessages(5, []models.Message{msg(10, 5, 1, at)})

	payload := models.MessageReadPayload{
		ChatID:   5,
		Receipts: []models.ReadReceipt{{MessageID: 10, UserID: 2, ReadAt: at}},
	}
	store.ApplyMessageRead(payload)
	store.ApplyMessageRead(payload)

	msgs := store.Messages(5)
	require.Len(t, msgs[0].ReadReceipts, 1)
}

func TestApplyMessageReadMirrorsLastMessage(t *testing.T) {
	store := NewStore(1)
	at := time.Now()
	last := msg(10, 5, 1, at)
	store.SetChats([]models.ChatPreview{{ID: 5, LastMessage: &last}})
	store.SetMessages(5, []models.Message{last})

	store.ApplyMessageRead(models.MessageReadPayload{
		ChatID:   5,
		Receipts: []models.ReadReceipt{{MessageID: 10, UserID: 2, ReadAt: at}},
	})

	chats := store.Chats()
	require.Len(t, chats[0].LastMessage.ReadReceipts, 1)
}

func TestApplyChatNewDeduplicates(t *testing.T) {
	store := NewStore(1)

	payload := models.ChatNewPayload{Chat: models.ChatPreview{ID: 5}}
	store.ApplyChatNew(payload)
	store.ApplyChatNew(payload)

	require.Len(t, store.Chats(), 1)
}

func TestApplyNotificationPrependsAndDeduplicates(t *testing.T) {
	store := NewStore(1)

	store.ApplyNotification(models.NotificationNewPayload{Notification: models.Notification{ID: 1}})
	store.ApplyNotification(models.NotificationNewPayload{Notification: models.Notification{ID: 2}})
	store.ApplyNotification(models.NotificationNewPayload{Notification: models.Notification{ID: 2}})

	notifications := store.Notifications()
	require.Len(t, notifications, 2)
	require.Equal(t, 2, notifications[0].ID)
}

func TestApplyPresencePatchesChatParticipants(t *testing.T) {
	store := NewStore(1)
	store.SetChats([]models.ChatPreview{{
		ID:    5,
		User1: &models.User{ID: 1},
		User2: &models.User{ID: 2},
	}})

	at := time.Now()
	store.ApplyPresence(models.PresencePayload{UserID: 2, IsOnline: true, LastSeen: at, Visible: true})

	chats := store.Chats()
	require.True(t, chats[0].User2.IsOnline)
	require.Equal(t, at, chats[0].User2.LastSeen)
	require.False(t, chats[0].User1.IsOnline)
}

func TestApplyPresencePatchesFriendsList(t *testing.T) {
	store := NewStore(1)
	store.SetFriends([]models.User{{ID: 2, Username: "alice"}, {ID: 3, Username: "bob"}})

	at := time.Now()
	store.ApplyPresence(models.PresencePayload{UserID: 2, IsOnline: true, LastSeen: at, Visible: true})

	friends := store.Friends()
	require.True(t, friends[0].IsOnline)
	require.Equal(t, at, friends[0].LastSeen)
	require.False(t, friends[1].IsOnline)
}

func TestChatsSnapshotUnaffectedByLaterEvents(t *testing.T) {
	store := NewStore(1)
	at := time.Now()
	last := msg(10, 5, 2, at)
	store.SetChats([]models.ChatPreview{{
		ID:          5,
		User1:       &models.User{ID: 1},
		User2:       &models.User{ID: 2},
		LastMessage: &last,
	}})
	store.SetMessages(5, []models.Message{last})

	snapshot := store.Chats()

	store.ApplyMessageRead(models.MessageReadPayload{
		ChatID:   5,
		Receipts: []models.ReadReceipt{{MessageID: 10, UserID: 1, ReadAt: at}},
	})
	store.ApplyPresence(models.PresencePayload{UserID: 2, IsOnline: true, LastSeen: at, Visible: true})

	require.Empty(t, snapshot[0].LastMessage.ReadReceipts)
	require.False(t, snapshot[0].User2.IsOnline)

	fresh := store.Chats()
	require.Len(t, fresh[0].LastMessage.ReadReceipts, 1)
	require.True(t, fresh[0].User2.IsOnline)
}

func TestMessagesSnapshotUnaffectedByLaterReceipts(t *testing.T) {
	store := NewStore(1)
	at := time.Now()
	store.SetMessages(5, []models.Message{msg(10, 5, 2, at)})

	snapshot := store.Messages(5)

	store.ApplyMessageRead(models.MessageReadPayload{
		ChatID:   5,
		Receipts: []models.ReadReceipt{{MessageID: 10, UserID: 1, ReadAt: at}},
	})

	require.Empty(t, snapshot[0].ReadReceipts)
	require.Len(t, store.Messages(5)[0].ReadReceipts, 1)
}

func TestSelectChatClearsUnread(t *testing.T) {
	store := NewStore(1)
	store.SetChats([]models.ChatPreview{{ID: 5, User1ID: 1, User2ID: 2}})

	store.ApplyMessageNew(models.MessageNewPayload{ChatID: 5, Message: msg(10, 5, 2, time.Now())})
	require.Equal(t, 1, store.Chats()[0].UnreadCount)

	store.SelectChat(5)
	require.Equal(t, 0, store.Chats()[0].UnreadCount)
}
