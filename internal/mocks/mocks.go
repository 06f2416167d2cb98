package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"chat-engine/internal/models"
)

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetOrCreate(ctx context.Context, username string) (models.User, error) {
	args := m.Called(ctx, username)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetByUsername(ctx context.Context, username string) (models.User, error) {
	args := m.Called(ctx, username)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) ListUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *UserRepositoryMock) SetOnline(ctx context.Context, username string) error {
	args := m.Called(ctx, username)
	return args.Error(0)
}

func (m *UserRepositoryMock) SetOffline(ctx context.Context, username string, lastSeen time.Time) error {
	args := m.Called(ctx, username, lastSeen)
	return args.Error(0)
}

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) GetOrCreatePrivate(ctx context.Context, userA, userB string) (models.Conversation, error) {
	args := m.Called(ctx, userA, userB)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) Get(ctx context.Context, conversationID int64) (models.Conversation, error) {
	args := m.Called(ctx, conversationID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Append(ctx context.Context, conversationID int64, sender string, content string, kind models.MessageKind) (models.Message, error) {
	args := m.Called(ctx, conversationID, sender, content, kind)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) History(ctx context.Context, conversationID int64) ([]models.Message, error) {
	args := m.Called(ctx, conversationID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) Get(ctx context.Context, messageID int64) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) MarkDelivered(ctx context.Context, messageID int64) (bool, error) {
	args := m.Called(ctx, messageID)
	return args.Bool(0), args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, conversationID int64, reader string) ([]int64, error) {
	args := m.Called(ctx, conversationID, reader)
	var ids []int64
	if val := args.Get(0); val != nil {
		ids = val.([]int64)
	}
	return ids, args.Error(1)
}

func (m *MessageRepositoryMock) UnreadCounts(ctx context.Context, username string) (map[string]int64, error) {
	args := m.Called(ctx, username)
	var counts map[string]int64
	if val := args.Get(0); val != nil {
		counts = val.(map[string]int64)
	}
	return counts, args.Error(1)
}

func (m *MessageRepositoryMock) LastMessages(ctx context.Context, username string) (map[string]string, error) {
	args := m.Called(ctx, username)
	var previews map[string]string
	if val := args.Get(0); val != nil {
		previews = val.(map[string]string)
	}
	return previews, args.Error(1)
}

// BroadcasterMock captures topic publishes.
type BroadcasterMock struct {
	mock.Mock
}

func (m *BroadcasterMock) Publish(topic string, env models.Envelope) []string {
	args := m.Called(topic, env)
	var delivered []string
	if val := args.Get(0); val != nil {
		delivered = val.([]string)
	}
	return delivered
}
