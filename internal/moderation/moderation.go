// Package moderation ties the chat service to the external toxicity scorer.
// The service publishes newly created messages to the requests routing key
// and consumes scored results back, writing the annotations onto the message
// row. The scorer itself lives in a separate service.
package moderation

import (
	"context"
	"log"

	"safechat-service/internal/models"
	"safechat-service/internal/rabbitmq"
)

const (
	RequestsKey = "moderation.requests"
	ResultsKey  = "moderation.results"
)

// Request is what the scorer receives for each new message.
type Request struct {
	MessageID   int    `json:"messageId"`
	ChatID      int    `json:"chatId"`
	UserID      int    `json:"userId"`
	MessageText string `json:"messageText"`
}

// Result is the scorer's verdict for a message.
type Result struct {
	MessageID        int     `json:"messageId"`
	ToxicityScore    float64 `json:"toxicityScore"`
	ToxicityCategory string  `json:"toxicityCategory"`
	Emotion          string  `json:"emotion"`
	IsFlagged        bool    `json:"isFlagged"`
}

// PublishRequest hands a message to the scorer. Best-effort: a publish
// failure never affects the message write that triggered it.
func PublishRequest(ctx context.Context, publisher rabbitmq.Publisher, msg models.Message) {
	if publisher == nil {
		return
	}
	req := Request{
		MessageID:   msg.ID,
		ChatID:      msg.ChatID,
		UserID:      msg.UserID,
		MessageText: msg.MessageText,
	}
	if err := publisher.Publish(ctx, RequestsKey, req); err != nil {
		log.Printf("moderation request publish failed message=%d: %v", msg.ID, err)
	}
}
