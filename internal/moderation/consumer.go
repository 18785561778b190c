package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"

	"safechat-service/internal/models"
	"safechat-service/internal/repositories"
)

// Notifier pushes a persisted notification to its owner.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) (models.Notification, error)
}

// Consumer applies scorer results to stored messages and notifies senders
// whose messages were flagged.
type Consumer struct {
	url      string
	exchange string
	messages repositories.MessageRepository
	notifier Notifier

	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewConsumer constructs a Consumer. Call Start to begin consuming.
func NewConsumer(url, exchange string, messages repositories.MessageRepository, notifier Notifier) *Consumer {
	return &Consumer{url: url, exchange: exchange, messages: messages, notifier: notifier}
}

// Start connects, binds a queue to the results routing key and consumes until
// ctx is cancelled. When AMQP is not configured it is a no-op.
func (c *Consumer) Start(ctx context.Context) error {
	if c.url == "" {
		log.Printf("moderation consumer disabled: empty amqp url")
		return nil
	}

	conn, err := amqp.Dial(c.url)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}

	if err := ch.ExchangeDeclare(c.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}
	queue, err := ch.QueueDeclare("safechat.moderation.results", true, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}
	if err := ch.QueueBind(queue.Name, ResultsKey, c.exchange, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	deliveries, err := ch.Consume(queue.Name, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	c.conn = conn
	c.ch = ch
	log.Printf("moderation consumer started queue=%s", queue.Name)

	go c.loop(ctx, deliveries)
	return nil
}

func (c *Consumer) loop(ctx context.Context, deliveries <-chan amqp.Delivery) {
	defer c.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case delivery, ok := <-deliveries:
			if !ok {
				return
			}
			c.handle(ctx, delivery)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, delivery amqp.Delivery) {
	var result Result
	if err := json.Unmarshal(delivery.Body, &result); err != nil {
		log.Printf("moderation result decode failed: %v", err)
		_ = delivery.Nack(false, false)
		return
	}

	err := c.messages.UpdateModeration(ctx, result.MessageID,
		result.ToxicityScore, result.ToxicityCategory, result.Emotion, result.IsFlagged)
	if err != nil {
		log.Printf("moderation update failed message=%d: %v", result.MessageID, err)
		// Unknown message ids are dead-lettered rather than requeued.
		_ = delivery.Nack(false, !errors.Is(err, repositories.ErrMessageNotFound))
		return
	}

	if result.IsFlagged {
		c.notifyFlagged(ctx, result.MessageID)
	}
	_ = delivery.Ack(false)
}

// notifyFlagged tells the sender their message was flagged. Best-effort: the
// annotation write above is the durable outcome.
func (c *Consumer) notifyFlagged(ctx context.Context, messageID int) {
	if c.notifier == nil {
		return
	}
	msg, err := c.messages.GetMessage(ctx, messageID)
	if err != nil {
		log.Printf("flagged message lookup failed message=%d: %v", messageID, err)
		return
	}
	title := "Your message was flagged by moderation"
	if _, err := c.notifier.Notify(ctx, models.Notification{
		UserID:    msg.UserID,
		Type:      models.NotificationTypeFlagged,
		Title:     &title,
		ChatID:    &msg.ChatID,
		MessageID: &msg.ID,
	}); err != nil {
		log.Printf("flagged notification failed message=%d: %v", messageID, err)
	}
}

// Close tears down the AMQP channel and connection.
func (c *Consumer) Close() {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}
