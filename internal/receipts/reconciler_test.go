package receipts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"safechat-service/internal/mocks"
	"safechat-service/internal/models"
)

var testChat = models.Chat{ID: 5, User1ID: 1, User2ID: 2}

func TestMarkReadCreatesReceiptsAndNotifiesOtherParticipant(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	dispatcher := new(mocks.DispatcherMock)
	reconciler := NewReconciler(chats, messages, dispatcher)

	created := []models.ReadReceipt{
		{MessageID: 10, UserID: 1, ReadAt: time.Now()},
		{MessageID: 11, UserID: 1, ReadAt: time.Now()},
	}

	chats.On("GetChat", mock.Anything, 5).Return(testChat, nil).Once()
	messages.On("UnreadMessageIDs", mock.Anything, 5, 1, []int{}).Return([]int{10, 11}, nil).Once()
	messages.On("InsertReadReceipts", mock.Anything, []int{10, 11}, 1, mock.Anything).Return(created, nil).Once()
	dispatcher.On("EmitToUser", 2, models.EventMessageRead, models.MessageReadPayload{ChatID: 5, Receipts: created}).Return(1).Once()

	got, err := reconciler.MarkRead(context.Background(), 5, 1, nil)

	require.NoError(t, err)
	require.Equal(t, created, got)
	chats.AssertExpectations(t)
	messages.AssertExpectations(t)
	dispatcher.AssertExpectations(t)
}

func TestMarkReadNothingUnreadEmitsNothing(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	dispatcher := new(mocks.DispatcherMock)
	reconciler := NewReconciler(chats, messages, dispatcher)

	chats.On("GetChat", mock.Anything, 5).Return(testChat, nil).Once()
	messages.On("UnreadMessageIDs", mock.Anything, 5, 2, []int{}).Return([]int{}, nil).Once()

	got, err := reconciler.MarkRead(context.Background(), 5, 2, nil)

	require.NoError(t, err)
	require.Empty(t, got)
	dispatcher.AssertNotCalled(t, "EmitToUser", mock.Anything, mock.Anything, mock.Anything)
	messages.AssertNotCalled(t, "InsertReadReceipts", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkReadDeduplicatesRequestedIDs(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	dispatcher := new(mocks.DispatcherMock)
	reconciler := NewReconciler(chats, messages, dispatcher)

	created := []models.ReadReceipt{{MessageID: 10, UserID: 1}, {MessageID: 11, UserID: 1}}

	chats.On("GetChat", mock.Anything, 5).Return(testChat, nil).Once()
	messages.On("UnreadMessageIDs", mock.Anything, 5, 1, []int{10, 11}).Return([]int{10, 11}, nil).Once()
	messages.On("InsertReadReceipts", mock.Anything, []int{10, 11}, 1, mock.Anything).Return(created, nil).Once()
	dispatcher.On("EmitToUser", 2, models.EventMessageRead, mock.Anything).Return(1).Once()

	got, err := reconciler.MarkRead(context.Background(), 5, 1, []int{10, 10, 11})

	require.NoError(t, err)
	require.Len(t, got, 2)
	messages.AssertExpectations(t)
}

func TestMarkReadSkipsAlreadyReadMessages(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	dispatcher := new(mocks.DispatcherMock)
	reconciler := NewReconciler(chats, messages, dispatcher)

	created := []models.ReadReceipt{{MessageID: 11, UserID: 1}}

	chats.On("GetChat", mock.Anything, 5).Return(testChat, nil).Once()
	// message 10 already carries a receipt, only 11 is still unread
	messages.On("UnreadMessageIDs", mock.Anything, 5, 1, []int{10, 11}).Return([]int{11}, nil).Once()
	messages.On("InsertReadReceipts", mock.Anything, []int{11}, 1, mock.Anything).Return(created, nil).Once()
	dispatcher.On("EmitToUser", 2, models.EventMessageRead, models.MessageReadPayload{ChatID: 5, Receipts: created}).Return(1).Once()

	got, err := reconciler.MarkRead(context.Background(), 5, 1, []int{10, 10, 11})

	require.NoError(t, err)
	require.Equal(t, created, got)
	dispatcher.AssertExpectations(t)
}

func TestMarkReadConcurrentWinnerOwnsTheEvent(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	dispatcher := new(mocks.DispatcherMock)
	reconciler := NewReconciler(chats, messages, dispatcher)

	chats.On("GetChat", mock.Anything, 5).Return(testChat, nil).Once()
	messages.On("UnreadMessageIDs", mock.Anything, 5, 1, []int{}).Return([]int{10}, nil).Once()
	messages.On("InsertReadReceipts", mock.Anything, []int{10}, 1, mock.Anything).Return([]models.ReadReceipt{}, nil).Once()

	got, err := reconciler.MarkRead(context.Background(), 5, 1, nil)

	require.NoError(t, err)
	require.Empty(t, got)
	dispatcher.AssertNotCalled(t, "EmitToUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkReadChatLookupError(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	reconciler := NewReconciler(chats, new(mocks.MessageRepositoryMock), new(mocks.DispatcherMock))

	chats.On("GetChat", mock.Anything, 5).Return(models.Chat{}, assert.AnError).Once()

	_, err := reconciler.MarkRead(context.Background(), 5, 1, nil)
	require.Error(t, err)
}
