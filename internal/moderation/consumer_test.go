package moderation

import (
	"context"
	"encoding/json"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"safechat-service/internal/mocks"
	"safechat-service/internal/models"
)

func delivery(t *testing.T, result Result) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(result)
	require.NoError(t, err)
	return amqp.Delivery{Body: body}
}

func TestHandleFlaggedResultNotifiesSender(t *testing.T) {
	messages := new(mocks.MessageRepositoryMock)
	notifier := new(mocks.NotifierMock)
	consumer := NewConsumer("", "", messages, notifier)

	messages.On("UpdateModeration", mock.Anything, 42, 0.91, "insult", "anger", true).Return(nil).Once()
	messages.On("GetMessage", mock.Anything, 42).Return(models.Message{ID: 42, ChatID: 5, UserID: 7}, nil).Once()
	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(n models.Notification) bool {
		return n.UserID == 7 && n.Type == models.NotificationTypeFlagged &&
			n.ChatID != nil && *n.ChatID == 5 &&
			n.MessageID != nil && *n.MessageID == 42
	})).Return(models.Notification{ID: 1}, nil).Once()

	consumer.handle(context.Background(), delivery(t, Result{
		MessageID:        42,
		ToxicityScore:    0.91,
		ToxicityCategory: "insult",
		Emotion:          "anger",
		IsFlagged:        true,
	}))

	messages.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestHandleCleanResultDoesNotNotify(t *testing.T) {
	messages := new(mocks.MessageRepositoryMock)
	notifier := new(mocks.NotifierMock)
	consumer := NewConsumer("", "", messages, notifier)

	messages.On("UpdateModeration", mock.Anything, 42, 0.02, "", "joy", false).Return(nil).Once()

	consumer.handle(context.Background(), delivery(t, Result{
		MessageID:     42,
		ToxicityScore: 0.02,
		Emotion:       "joy",
	}))

	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
	messages.AssertNotCalled(t, "GetMessage", mock.Anything, mock.Anything)
}
