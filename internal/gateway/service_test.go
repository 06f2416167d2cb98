package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-engine/internal/mocks"
	"chat-engine/internal/models"
	"chat-engine/internal/repositories"
	"chat-engine/internal/router"
)

type stubPresence map[string]string

func (s stubPresence) ConnectionFor(username string) (string, bool) {
	connID, ok := s[username]
	return connID, ok
}

type recordingTracker struct {
	delivered []int64
	err       error
}

func (t *recordingTracker) MarkDelivered(_ context.Context, messageID int64) error {
	if t.err != nil {
		return t.err
	}
	t.delivered = append(t.delivered, messageID)
	return nil
}

func privateConv(id int64, userA, userB string) models.Conversation {
	return models.Conversation{ID: id, Kind: models.KindPrivate, UserA: &userA, UserB: &userB}
}

func TestSendMessageRejectsBlankContent(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	svc := NewChatService(convRepo, msgRepo, router.New(), stubPresence{}, &recordingTracker{})

	_, err := svc.SendMessage(context.Background(), "alice", nil, "   \t ")

	require.ErrorIs(t, err, ErrEmptyContent)
	convRepo.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	msgRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMessageDefaultsToPublicConversation(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	convRepo.On("Get", mock.Anything, models.PublicConversationID).
		Return(models.Conversation{ID: models.PublicConversationID, Kind: models.KindPublic}, nil)

	msgRepo := new(mocks.MessageRepositoryMock)
	stored := models.Message{ID: 10, ConversationID: models.PublicConversationID, Seq: 4, SenderUsername: "alice", Content: "hi", Kind: models.MessageChat, Status: models.StatusSent}
	msgRepo.On("Append", mock.Anything, models.PublicConversationID, "alice", "hi", models.MessageChat).
		Return(stored, nil)

	tracker := &recordingTracker{}
	svc := NewChatService(convRepo, msgRepo, router.New(), stubPresence{}, tracker)

	msg, err := svc.SendMessage(context.Background(), "alice", nil, "hi")

	require.NoError(t, err)
	assert.Equal(t, models.PublicConversationID, msg.ConversationID)
	// Nobody was listening, so the message stays SENT.
	assert.Equal(t, models.StatusSent, msg.Status)
	assert.Empty(t, tracker.delivered)
	convRepo.AssertExpectations(t)
	msgRepo.AssertExpectations(t)
}

func TestSendMessagePropagatesUnknownConversation(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	convRepo.On("Get", mock.Anything, int64(99)).
		Return(nil, repositories.ErrConversationNotFound)

	svc := NewChatService(convRepo, new(mocks.MessageRepositoryMock), router.New(), stubPresence{}, &recordingTracker{})

	convID := int64(99)
	_, err := svc.SendMessage(context.Background(), "alice", &convID, "hi")

	require.ErrorIs(t, err, repositories.ErrConversationNotFound)
}

func TestSendMessageMarksDeliveredWhenPeerSubscribed(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	convRepo.On("Get", mock.Anything, int64(7)).Return(privateConv(7, "alice", "bob"), nil)

	msgRepo := new(mocks.MessageRepositoryMock)
	stored := models.Message{ID: 5, ConversationID: 7, Seq: 1, SenderUsername: "alice", Content: "hi", Kind: models.MessageChat, Status: models.StatusSent}
	msgRepo.On("Append", mock.Anything, int64(7), "alice", "hi", models.MessageChat).Return(stored, nil)

	rt := router.New()
	sub := router.NewSubscriber("conn-bob", 8, func(error) {})
	rt.Subscribe(router.ConversationTopic(7), sub)

	tracker := &recordingTracker{}
	svc := NewChatService(convRepo, msgRepo, rt, stubPresence{"bob": "conn-bob"}, tracker)

	convID := int64(7)
	msg, err := svc.SendMessage(context.Background(), "alice", &convID, "hi")

	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, msg.Status)
	assert.Equal(t, []int64{5}, tracker.delivered)

	// The peer's subscriber saw the chat envelope itself.
	select {
	case env := <-sub.Events():
		assert.Equal(t, models.EventChat, env.Type)
	default:
		t.Fatal("expected a fanned-out envelope on the peer's queue")
	}
}

func TestSendMessageStaysSentWhenPeerOffline(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	convRepo.On("Get", mock.Anything, int64(7)).Return(privateConv(7, "alice", "bob"), nil)

	msgRepo := new(mocks.MessageRepositoryMock)
	stored := models.Message{ID: 6, ConversationID: 7, Seq: 2, SenderUsername: "alice", Content: "still there?", Kind: models.MessageChat, Status: models.StatusSent}
	msgRepo.On("Append", mock.Anything, int64(7), "alice", "still there?", models.MessageChat).Return(stored, nil)

	tracker := &recordingTracker{}
	svc := NewChatService(convRepo, msgRepo, router.New(), stubPresence{}, tracker)

	convID := int64(7)
	msg, err := svc.SendMessage(context.Background(), "alice", &convID, "still there?")

	require.NoError(t, err)
	assert.Equal(t, models.StatusSent, msg.Status)
	assert.Empty(t, tracker.delivered)
}

func TestSendMessageIgnoresSendersOwnSubscription(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	convRepo.On("Get", mock.Anything, models.PublicConversationID).
		Return(models.Conversation{ID: models.PublicConversationID, Kind: models.KindPublic}, nil)

	msgRepo := new(mocks.MessageRepositoryMock)
	stored := models.Message{ID: 11, ConversationID: models.PublicConversationID, Seq: 5, SenderUsername: "alice", Content: "echo?", Kind: models.MessageChat, Status: models.StatusSent}
	msgRepo.On("Append", mock.Anything, models.PublicConversationID, "alice", "echo?", models.MessageChat).Return(stored, nil)

	rt := router.New()
	own := router.NewSubscriber("conn-alice", 8, func(error) {})
	rt.Subscribe(router.PublicTopic, own)

	tracker := &recordingTracker{}
	svc := NewChatService(convRepo, msgRepo, rt, stubPresence{"alice": "conn-alice"}, tracker)

	msg, err := svc.SendMessage(context.Background(), "alice", nil, "echo?")

	require.NoError(t, err)
	// Reaching only your own connection is not a delivery.
	assert.Equal(t, models.StatusSent, msg.Status)
	assert.Empty(t, tracker.delivered)
}

func TestSendMessageBroadcastDeliveredToAnyOtherConnection(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	convRepo.On("Get", mock.Anything, models.PublicConversationID).
		Return(models.Conversation{ID: models.PublicConversationID, Kind: models.KindPublic}, nil)

	msgRepo := new(mocks.MessageRepositoryMock)
	stored := models.Message{ID: 12, ConversationID: models.PublicConversationID, Seq: 6, SenderUsername: "alice", Content: "hello all", Kind: models.MessageChat, Status: models.StatusSent}
	msgRepo.On("Append", mock.Anything, models.PublicConversationID, "alice", "hello all", models.MessageChat).Return(stored, nil)

	rt := router.New()
	rt.Subscribe(router.PublicTopic, router.NewSubscriber("conn-alice", 8, func(error) {}))
	rt.Subscribe(router.PublicTopic, router.NewSubscriber("conn-bob", 8, func(error) {}))

	tracker := &recordingTracker{}
	svc := NewChatService(convRepo, msgRepo, rt, stubPresence{"alice": "conn-alice", "bob": "conn-bob"}, tracker)

	msg, err := svc.SendMessage(context.Background(), "alice", nil, "hello all")

	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, msg.Status)
	assert.Equal(t, []int64{12}, tracker.delivered)
}
