package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"safechat-service/internal/models"
	"safechat-service/internal/repositories"
	"safechat-service/internal/ws"
)

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) CreateOrGetChat(ctx context.Context, userID int, friendID int) (models.Chat, bool, error) {
	args := m.Called(ctx, userID, friendID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Bool(1), args.Error(2)
}

func (m *ChatRepositoryMock) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	args := m.Called(ctx, chatID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) IsParticipant(ctx context.Context, chatID int, userID int) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ChatRepositoryMock) ListChats(ctx context.Context, userID int) ([]models.ChatPreview, error) {
	args := m.Called(ctx, userID)
	var list []models.ChatPreview
	if val := args.Get(0); val != nil {
		list = val.([]models.ChatPreview)
	}
	return list, args.Error(1)
}

func (m *ChatRepositoryMock) GetChatPreview(ctx context.Context, chatID int) (models.ChatPreview, error) {
	args := m.Called(ctx, chatID)
	var preview models.ChatPreview
	if val := args.Get(0); val != nil {
		preview = val.(models.ChatPreview)
	}
	return preview, args.Error(1)
}

func (m *ChatRepositoryMock) TouchChat(ctx context.Context, chatID int, at time.Time) error {
	args := m.Called(ctx, chatID, at)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, chatID int, senderID int, text string) (models.Message, error) {
	args := m.Called(ctx, chatID, senderID, text)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, chatID int) ([]models.Message, error) {
	args := m.Called(ctx, chatID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) UnreadMessageIDs(ctx context.Context, chatID int, readerID int, messageIDs []int) ([]int, error) {
	args := m.Called(ctx, chatID, readerID, messageIDs)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

func (m *MessageRepositoryMock) InsertReadReceipts(ctx context.Context, messageIDs []int, readerID int, readAt time.Time) ([]models.ReadReceipt, error) {
	args := m.Called(ctx, messageIDs, readerID, readAt)
	var receipts []models.ReadReceipt
	if val := args.Get(0); val != nil {
		receipts = val.([]models.ReadReceipt)
	}
	return receipts, args.Error(1)
}

func (m *MessageRepositoryMock) UnreadCounts(ctx context.Context, userID int) (map[int]int, error) {
	args := m.Called(ctx, userID)
	var counts map[int]int
	if val := args.Get(0); val != nil {
		counts = val.(map[int]int)
	}
	return counts, args.Error(1)
}

func (m *MessageRepositoryMock) UpdateModeration(ctx context.Context, messageID int, score float64, category string, emotion string, flagged bool) error {
	args := m.Called(ctx, messageID, score, category, emotion, flagged)
	return args.Error(0)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetUsers(ctx context.Context, userIDs []int) ([]models.User, error) {
	args := m.Called(ctx, userIDs)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *UserRepositoryMock) SetPresence(ctx context.Context, userID int, isOnline bool, at time.Time) (models.User, error) {
	args := m.Called(ctx, userID, isOnline, at)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

type FriendshipRepositoryMock struct {
	mock.Mock
}

func (m *FriendshipRepositoryMock) AreFriends(ctx context.Context, userID int, friendID int) (bool, error) {
	args := m.Called(ctx, userID, friendID)
	return args.Bool(0), args.Error(1)
}

func (m *FriendshipRepositoryMock) FriendIDs(ctx context.Context, userID int) ([]int, error) {
	args := m.Called(ctx, userID)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

func (m *FriendshipRepositoryMock) CreateRequest(ctx context.Context, userID int, friendID int) error {
	args := m.Called(ctx, userID, friendID)
	return args.Error(0)
}

func (m *FriendshipRepositoryMock) AcceptRequest(ctx context.Context, userID int, requesterID int) error {
	args := m.Called(ctx, userID, requesterID)
	return args.Error(0)
}

type NotificationRepositoryMock struct {
	mock.Mock
}

func (m *NotificationRepositoryMock) CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error) {
	args := m.Called(ctx, n)
	var created models.Notification
	if val := args.Get(0); val != nil {
		created = val.(models.Notification)
	}
	return created, args.Error(1)
}

func (m *NotificationRepositoryMock) ListNotifications(ctx context.Context, userID int) ([]models.Notification, error) {
	args := m.Called(ctx, userID)
	var notifications []models.Notification
	if val := args.Get(0); val != nil {
		notifications = val.([]models.Notification)
	}
	return notifications, args.Error(1)
}

func (m *NotificationRepositoryMock) MarkNotificationRead(ctx context.Context, notificationID int, userID int) error {
	args := m.Called(ctx, notificationID, userID)
	return args.Error(0)
}

type DispatcherMock struct {
	mock.Mock
}

func (m *DispatcherMock) EmitToUser(userID int, event string, payload any) int {
	args := m.Called(userID, event, payload)
	return args.Int(0)
}

func (m *DispatcherMock) EmitToUsers(userIDs []int, event string, payload any) int {
	args := m.Called(userIDs, event, payload)
	return args.Int(0)
}

func (m *DispatcherMock) Broadcast(event string, payload any) int {
	args := m.Called(event, payload)
	return args.Int(0)
}

type ReconcilerMock struct {
	mock.Mock
}

func (m *ReconcilerMock) MarkRead(ctx context.Context, chatID int, readerID int, messageIDs []int) ([]models.ReadReceipt, error) {
	args := m.Called(ctx, chatID, readerID, messageIDs)
	var receipts []models.ReadReceipt
	if val := args.Get(0); val != nil {
		receipts = val.([]models.ReadReceipt)
	}
	return receipts, args.Error(1)
}

type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) Notify(ctx context.Context, n models.Notification) (models.Notification, error) {
	args := m.Called(ctx, n)
	var created models.Notification
	if val := args.Get(0); val != nil {
		created = val.(models.Notification)
	}
	return created, args.Error(1)
}

var _ repositories.ChatRepository = (*ChatRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.UserRepository = (*UserRepositoryMock)(nil)
var _ repositories.FriendshipRepository = (*FriendshipRepositoryMock)(nil)
var _ repositories.NotificationRepository = (*NotificationRepositoryMock)(nil)
var _ ws.Dispatcher = (*DispatcherMock)(nil)
