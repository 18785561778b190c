package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"safechat-service/internal/models"
	"safechat-service/internal/moderation"
	"safechat-service/internal/rabbitmq"
	"safechat-service/internal/repositories"
	"safechat-service/internal/telemetry"
	"safechat-service/internal/ws"
)

// ReadReconciler is the mark-read surface the chat handlers call.
type ReadReconciler interface {
	MarkRead(ctx context.Context, chatID int, readerID int, messageIDs []int) ([]models.ReadReceipt, error)
}

// Notifier persists and pushes a notification.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) (models.Notification, error)
}

// ChatHandler manages the chat REST endpoints.
type ChatHandler struct {
	chatRepo    repositories.ChatRepository
	messageRepo repositories.MessageRepository
	friendRepo  repositories.FriendshipRepository
	reconciler  ReadReconciler
	dispatcher  ws.Dispatcher
	notifier    Notifier
	publisher   rabbitmq.Publisher
	audit       *telemetry.AuditEmitter
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(
	chatRepo repositories.ChatRepository,
	messageRepo repositories.MessageRepository,
	friendRepo repositories.FriendshipRepository,
	reconciler ReadReconciler,
	dispatcher ws.Dispatcher,
	notifier Notifier,
	publisher rabbitmq.Publisher,
	audit *telemetry.AuditEmitter,
) *ChatHandler {
	return &ChatHandler{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		friendRepo:  friendRepo,
		reconciler:  reconciler,
		dispatcher:  dispatcher,
		notifier:    notifier,
		publisher:   publisher,
		audit:       audit,
	}
}

// ListChats returns the user's chats with previews and unread counts.
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID := c.GetInt("userID")

	chats, err := h.chatRepo.ListChats(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
		return
	}

	counts, err := h.messageRepo.UnreadCounts(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load unread counts"})
		return
	}
	for i := range chats {
		chats[i].UnreadCount = counts[chats[i].ID]
	}

	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// StartChat creates (or returns) the direct chat with a friend. A freshly
// created chat is pushed to the other participant as chat:new.
func (h *ChatHandler) StartChat(c *gin.Context) {
	var req struct {
		FriendID int `json:"friendId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	if userID == req.FriendID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot chat with yourself"})
		return
	}

	friends, err := h.friendRepo.AreFriends(c.Request.Context(), userID, req.FriendID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to validate friendship"})
		return
	}
	if !friends {
		c.JSON(http.StatusForbidden, gin.H{"error": "users are not friends"})
		return
	}

	chat, created, err := h.chatRepo.CreateOrGetChat(c.Request.Context(), userID, req.FriendID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create chat"})
		return
	}

	preview, err := h.chatRepo.GetChatPreview(c.Request.Context(), chat.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load chat"})
		return
	}

	if created {
		h.dispatcher.EmitToUser(req.FriendID, models.EventChatNew, models.ChatNewPayload{Chat: preview})
		if h.notifier != nil {
			title := "New chat"
			if _, err := h.notifier.Notify(c.Request.Context(), models.Notification{
				UserID: req.FriendID,
				Type:   models.NotificationTypeChat,
				Title:  &title,
				ChatID: &chat.ID,
			}); err != nil {
				log.Printf("chat notification failed chat=%d: %v", chat.ID, err)
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"chat": preview})
}

// GetChatMessages returns the chat's messages. Fetching implicitly marks the
// other side's messages read; the receipts created here are merged into the
// response so the caller sees up-to-date read state.
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	userID := c.GetInt("userID")
	member, err := h.chatRepo.IsParticipant(c.Request.Context(), chatID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
		return
	}

	msgs, err := h.messageRepo.ListMessages(c.Request.Context(), chatID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	// Best-effort: a receipt failure must not block reading.
	receipts, err := h.reconciler.MarkRead(c.Request.Context(), chatID, userID, nil)
	if err != nil {
		log.Printf("implicit mark-read failed chat=%d user=%d: %v", chatID, userID, err)
	}
	if len(receipts) > 0 {
		byMessage := make(map[int]models.ReadReceipt, len(receipts))
		for _, receipt := range receipts {
			byMessage[receipt.MessageID] = receipt
		}
		for i := range msgs {
			if receipt, ok := byMessage[msgs[i].ID]; ok && !msgs[i].HasReceiptFrom(userID) {
				msgs[i].ReadReceipts = append(msgs[i].ReadReceipts, receipt)
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostChatMessage stores a message, pushes message:new to the other
// participant and hands the text to the moderation pipeline. Dispatch runs
// strictly after the write commits; its failure never fails the request.
func (h *ChatHandler) PostChatMessage(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	userID := c.GetInt("userID")
	chat, err := h.chatRepo.GetChat(c.Request.Context(), chatID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrChatNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "chat not found"})
		return
	}
	if !chat.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
		return
	}

	var req struct {
		MessageText string `json:"messageText" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	text := strings.TrimSpace(req.MessageText)
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message text is required"})
		return
	}

	msg, err := h.messageRepo.CreateMessage(c.Request.Context(), chatID, userID, text)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}
	if err := h.chatRepo.TouchChat(c.Request.Context(), chatID, msg.CreatedAt); err != nil {
		log.Printf("chat touch failed chat=%d: %v", chatID, err)
	}

	h.dispatchMessage(c, chat, msg)
	moderation.PublishRequest(c.Request.Context(), h.publisher, msg)
	h.audit.Emit(c.Request.Context(), "INFO", "message sent", requestIDFromContext(c), userIDPtr(userID))

	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

func (h *ChatHandler) dispatchMessage(c *gin.Context, chat models.Chat, msg models.Message) {
	payload := models.MessageNewPayload{ChatID: chat.ID, Message: msg}
	if preview, err := h.chatRepo.GetChatPreview(c.Request.Context(), chat.ID); err == nil {
		payload.ChatPreview = &preview
	} else {
		log.Printf("chat preview load failed chat=%d: %v", chat.ID, err)
	}
	h.dispatcher.EmitToUser(chat.OtherParticipant(msg.UserID), models.EventMessageNew, payload)
}

// MarkMessagesRead marks the chat's messages (optionally a subset) read for
// the caller and returns the receipts created. Idempotent.
func (h *ChatHandler) MarkMessagesRead(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	userID := c.GetInt("userID")
	member, err := h.chatRepo.IsParticipant(c.Request.Context(), chatID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
		return
	}

	var req struct {
		MessageIDs []int `json:"messageIds"`
	}
	// An empty body means "everything unread in this chat"; anything else
	// must decode.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	receipts, err := h.reconciler.MarkRead(c.Request.Context(), chatID, userID, req.MessageIDs)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrChatNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "failed to mark messages as read"})
		return
	}
	if len(receipts) > 0 {
		h.audit.Emit(c.Request.Context(), "INFO", "messages marked read", requestIDFromContext(c), userIDPtr(userID))
	}

	c.JSON(http.StatusOK, gin.H{"receipts": receipts})
}
