package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-engine/internal/middleware"
	"chat-engine/internal/mocks"
	"chat-engine/internal/models"
	"chat-engine/internal/repositories"
	"chat-engine/internal/rooms"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// asUser injects the authenticated username the way the auth middleware
// does, so handlers can be exercised without minting tokens.
func asUser(username string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UsernameContextKey, username)
		c.Next()
	}
}

func performRequest(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestListUsersReturnsDirectory(t *testing.T) {
	lastSeen := time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)
	userRepo := new(mocks.UserRepositoryMock)
	userRepo.On("ListUsers", mock.Anything).Return([]models.User{
		{ID: 1, Username: "alice", Online: true},
		{ID: 2, Username: "bob", Online: false, LastSeen: &lastSeen},
	}, nil)

	router := gin.New()
	router.GET("/api/users", NewUsersHandler(userRepo).ListUsers)

	rec := performRequest(router, http.MethodGet, "/api/users")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Users []models.User `json:"users"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Users, 2)
	assert.Equal(t, "alice", body.Users[0].Username)
	assert.True(t, body.Users[0].Online)
	assert.False(t, body.Users[1].Online)
	require.NotNil(t, body.Users[1].LastSeen)
	assert.True(t, lastSeen.Equal(*body.Users[1].LastSeen))
}

func TestListUsersRepositoryFailure(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	userRepo.On("ListUsers", mock.Anything).Return(nil, assert.AnError)

	router := gin.New()
	router.GET("/api/users", NewUsersHandler(userRepo).ListUsers)

	rec := performRequest(router, http.MethodGet, "/api/users")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetHistoryDefaultsToPublic(t *testing.T) {
	msgRepo := new(mocks.MessageRepositoryMock)
	msgRepo.On("History", mock.Anything, models.PublicConversationID).Return([]models.Message{
		{ID: 1, ConversationID: models.PublicConversationID, Seq: 1, SenderUsername: "alice", Content: "hi", Kind: models.MessageChat, Status: models.StatusSent},
	}, nil)

	router := gin.New()
	router.GET("/api/messages", NewMessagesHandler(msgRepo).GetHistory)

	rec := performRequest(router, http.MethodGet, "/api/messages")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Messages, 1)
	assert.Equal(t, int64(1), body.Messages[0].Seq)
	msgRepo.AssertExpectations(t)
}

func TestGetHistoryEmptyConversationReturnsEmptyList(t *testing.T) {
	msgRepo := new(mocks.MessageRepositoryMock)
	msgRepo.On("History", mock.Anything, int64(7)).Return(nil, nil)

	router := gin.New()
	router.GET("/api/messages", NewMessagesHandler(msgRepo).GetHistory)

	rec := performRequest(router, http.MethodGet, "/api/messages?conversationId=7")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"messages":[]}`, rec.Body.String())
}

func TestGetHistoryRejectsMalformedConversationID(t *testing.T) {
	router := gin.New()
	router.GET("/api/messages", NewMessagesHandler(new(mocks.MessageRepositoryMock)).GetHistory)

	rec := performRequest(router, http.MethodGet, "/api/messages?conversationId=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetHistoryUnknownConversation(t *testing.T) {
	msgRepo := new(mocks.MessageRepositoryMock)
	msgRepo.On("History", mock.Anything, int64(42)).Return(nil, repositories.ErrConversationNotFound)

	router := gin.New()
	router.GET("/api/messages", NewMessagesHandler(msgRepo).GetHistory)

	rec := performRequest(router, http.MethodGet, "/api/messages?conversationId=42")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetUnreadCountsForCaller(t *testing.T) {
	msgRepo := new(mocks.MessageRepositoryMock)
	msgRepo.On("UnreadCounts", mock.Anything, "alice").Return(map[string]int64{"bob": 3, "carol": 1}, nil)

	router := gin.New()
	router.GET("/api/messages/unread-counts", asUser("alice"), NewMessagesHandler(msgRepo).GetUnreadCounts)

	rec := performRequest(router, http.MethodGet, "/api/messages/unread-counts")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"unreadCounts":{"bob":3,"carol":1}}`, rec.Body.String())
}

func TestGetLastMessagesForCaller(t *testing.T) {
	msgRepo := new(mocks.MessageRepositoryMock)
	msgRepo.On("LastMessages", mock.Anything, "alice").Return(map[string]string{"bob": "see you"}, nil)

	router := gin.New()
	router.GET("/api/messages/last-messages", asUser("alice"), NewMessagesHandler(msgRepo).GetLastMessages)

	rec := performRequest(router, http.MethodGet, "/api/messages/last-messages")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"lastMessages":{"bob":"see you"}}`, rec.Body.String())
}

func newConversationsRouter(convRepo *mocks.ConversationRepositoryMock, userRepo *mocks.UserRepositoryMock) *gin.Engine {
	router := gin.New()
	handler := NewConversationsHandler(rooms.NewResolver(convRepo), userRepo)
	router.GET("/api/conversations/private", handler.ResolvePrivate)
	return router
}

func TestResolvePrivateNormalizesPairOrder(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	userRepo.On("GetOrCreate", mock.Anything, "bob").Return(models.User{ID: 2, Username: "bob"}, nil)
	userRepo.On("GetOrCreate", mock.Anything, "alice").Return(models.User{ID: 1, Username: "alice"}, nil)

	alice, bob := "alice", "bob"
	convRepo := new(mocks.ConversationRepositoryMock)
	convRepo.On("GetOrCreatePrivate", mock.Anything, "alice", "bob").
		Return(models.Conversation{ID: 7, Kind: models.KindPrivate, UserA: &alice, UserB: &bob}, nil)

	router := newConversationsRouter(convRepo, userRepo)

	// Query names the pair in reverse order; the resolver sorts it.
	rec := performRequest(router, http.MethodGet, "/api/conversations/private?user1=bob&user2=alice")

	require.Equal(t, http.StatusOK, rec.Code)
	var conv models.Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conv))
	assert.Equal(t, int64(7), conv.ID)
	convRepo.AssertExpectations(t)
}

func TestResolvePrivateRejectsSelfPair(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	userRepo.On("GetOrCreate", mock.Anything, "alice").Return(models.User{ID: 1, Username: "alice"}, nil)

	router := newConversationsRouter(new(mocks.ConversationRepositoryMock), userRepo)

	rec := performRequest(router, http.MethodGet, "/api/conversations/private?user1=alice&user2=alice")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolvePrivateRequiresBothUsers(t *testing.T) {
	router := newConversationsRouter(new(mocks.ConversationRepositoryMock), new(mocks.UserRepositoryMock))

	rec := performRequest(router, http.MethodGet, "/api/conversations/private?user1=alice")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
