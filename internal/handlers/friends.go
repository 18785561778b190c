package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"safechat-service/internal/models"
	"safechat-service/internal/repositories"
)

// FriendHandler serves the friends list and the request/accept flow that
// creates the friendship rows chat creation depends on.
type FriendHandler struct {
	friendRepo repositories.FriendshipRepository
	userRepo   repositories.UserRepository
	notifier   Notifier
}

// NewFriendHandler builds a FriendHandler.
func NewFriendHandler(friendRepo repositories.FriendshipRepository, userRepo repositories.UserRepository, notifier Notifier) *FriendHandler {
	return &FriendHandler{friendRepo: friendRepo, userRepo: userRepo, notifier: notifier}
}

// ListFriends returns the caller's accepted friends as full user records.
func (h *FriendHandler) ListFriends(c *gin.Context) {
	userID := c.GetInt("userID")

	ids, err := h.friendRepo.FriendIDs(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load friends"})
		return
	}

	friends, err := h.userRepo.GetUsers(c.Request.Context(), ids)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load friends"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"friends": friends})
}

// SendFriendRequest creates a pending friendship and pushes a
// notification:new to the requested user.
func (h *FriendHandler) SendFriendRequest(c *gin.Context) {
	var req struct {
		FriendID int `json:"friendId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	if userID == req.FriendID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot befriend yourself"})
		return
	}

	if err := h.friendRepo.CreateRequest(c.Request.Context(), userID, req.FriendID); err != nil {
		if errors.Is(err, repositories.ErrFriendshipExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "friendship already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create friend request"})
		return
	}

	if h.notifier != nil {
		title := "New friend request"
		if _, err := h.notifier.Notify(c.Request.Context(), models.Notification{
			UserID: req.FriendID,
			Type:   models.NotificationTypeFriendRequest,
			Title:  &title,
		}); err != nil {
			log.Printf("friend request notification failed user=%d: %v", req.FriendID, err)
		}
	}

	c.JSON(http.StatusCreated, gin.H{"status": "PENDING"})
}

// AcceptFriendRequest accepts a pending request from the user in the path
// and notifies the requester.
func (h *FriendHandler) AcceptFriendRequest(c *gin.Context) {
	requesterID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	userID := c.GetInt("userID")
	if err := h.friendRepo.AcceptRequest(c.Request.Context(), userID, requesterID); err != nil {
		if errors.Is(err, repositories.ErrFriendRequestNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "friend request not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not accept friend request"})
		return
	}

	if h.notifier != nil {
		title := "Friend request accepted"
		if _, err := h.notifier.Notify(c.Request.Context(), models.Notification{
			UserID: requesterID,
			Type:   models.NotificationTypeFriendAccept,
			Title:  &title,
		}); err != nil {
			log.Printf("friend accept notification failed user=%d: %v", requesterID, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ACCEPTED"})
}
