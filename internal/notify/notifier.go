// Package notify persists notifications and pushes them to their owner.
package notify

import (
	"context"

	"safechat-service/internal/models"
	"safechat-service/internal/repositories"
	"safechat-service/internal/ws"
)

// Notifier creates a notification row and emits notification:new to its
// owner. The emit is best-effort; the row is the durable truth.
type Notifier struct {
	notifications repositories.NotificationRepository
	dispatcher    ws.Dispatcher
}

// NewNotifier constructs a Notifier.
func NewNotifier(notifications repositories.NotificationRepository, dispatcher ws.Dispatcher) *Notifier {
	return &Notifier{notifications: notifications, dispatcher: dispatcher}
}

// Notify persists n and pushes it to n.UserID.
func (s *Notifier) Notify(ctx context.Context, n models.Notification) (models.Notification, error) {
	created, err := s.notifications.CreateNotification(ctx, n)
	if err != nil {
		return models.Notification{}, err
	}
	s.dispatcher.EmitToUser(created.UserID, models.EventNotificationNew, models.NotificationNewPayload{Notification: created})
	return created, nil
}
