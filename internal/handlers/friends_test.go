package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"safechat-service/internal/mocks"
	"safechat-service/internal/models"
	"safechat-service/internal/repositories"
)

func setupFriendRouter(handler *FriendHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.GET("/friends", handler.ListFriends)
	r.POST("/friends/request", handler.SendFriendRequest)
	r.POST("/friends/:user_id/accept", handler.AcceptFriendRequest)
	return r
}

func newFriendHandler(
	friendRepo *mocks.FriendshipRepositoryMock,
	userRepo *mocks.UserRepositoryMock,
	notifier *mocks.NotifierMock,
) *FriendHandler {
	var n Notifier
	if notifier != nil {
		n = notifier
	}
	return NewFriendHandler(friendRepo, userRepo, n)
}

func TestListFriendsReturnsUserRecords(t *testing.T) {
	friendRepo := new(mocks.FriendshipRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := newFriendHandler(friendRepo, userRepo, nil)
	router := setupFriendRouter(handler)

	friendRepo.On("FriendIDs", mock.Anything, 1).Return([]int{2, 3}, nil).Once()
	userRepo.On("GetUsers", mock.Anything, []int{2, 3}).Return([]models.User{
		{ID: 2, Username: "alice", IsOnline: true},
		{ID: 3, Username: "bob"},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/friends", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Friends []models.User `json:"friends"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Friends, 2)
	require.Equal(t, "alice", resp.Friends[0].Username)
	require.True(t, resp.Friends[0].IsOnline)
	friendRepo.AssertExpectations(t)
	userRepo.AssertExpectations(t)
}

func TestSendFriendRequestNotifiesTarget(t *testing.T) {
	friendRepo := new(mocks.FriendshipRepositoryMock)
	notifier := new(mocks.NotifierMock)
	handler := newFriendHandler(friendRepo, new(mocks.UserRepositoryMock), notifier)
	router := setupFriendRouter(handler)

	friendRepo.On("CreateRequest", mock.Anything, 1, 2).Return(nil).Once()
	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(n models.Notification) bool {
		return n.UserID == 2 && n.Type == models.NotificationTypeFriendRequest
	})).Return(models.Notification{ID: 1}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/friends/request", bytes.NewBufferString(`{"friendId":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	friendRepo.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestSendFriendRequestToSelfRejected(t *testing.T) {
	handler := newFriendHandler(new(mocks.FriendshipRepositoryMock), new(mocks.UserRepositoryMock), nil)
	router := setupFriendRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/friends/request", bytes.NewBufferString(`{"friendId":1}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendFriendRequestDuplicateConflict(t *testing.T) {
	friendRepo := new(mocks.FriendshipRepositoryMock)
	notifier := new(mocks.NotifierMock)
	handler := newFriendHandler(friendRepo, new(mocks.UserRepositoryMock), notifier)
	router := setupFriendRouter(handler)

	friendRepo.On("CreateRequest", mock.Anything, 1, 2).Return(repositories.ErrFriendshipExists).Once()

	req := httptest.NewRequest(http.MethodPost, "/friends/request", bytes.NewBufferString(`{"friendId":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func TestAcceptFriendRequestNotifiesRequester(t *testing.T) {
	friendRepo := new(mocks.FriendshipRepositoryMock)
	notifier := new(mocks.NotifierMock)
	handler := newFriendHandler(friendRepo, new(mocks.UserRepositoryMock), notifier)
	router := setupFriendRouter(handler)

	friendRepo.On("AcceptRequest", mock.Anything, 1, 7).Return(nil).Once()
	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(n models.Notification) bool {
		return n.UserID == 7 && n.Type == models.NotificationTypeFriendAccept
	})).Return(models.Notification{ID: 2}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/friends/7/accept", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	friendRepo.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestAcceptFriendRequestUnknownRequest(t *testing.T) {
	friendRepo := new(mocks.FriendshipRepositoryMock)
	handler := newFriendHandler(friendRepo, new(mocks.UserRepositoryMock), nil)
	router := setupFriendRouter(handler)

	friendRepo.On("AcceptRequest", mock.Anything, 1, 7).Return(repositories.ErrFriendRequestNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/friends/7/accept", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
