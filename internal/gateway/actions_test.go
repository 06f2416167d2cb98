package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeActionSendMessage(t *testing.T) {
	action, err := decodeAction([]byte(`{"action":"sendMessage","content":"hi","conversationId":7}`))

	require.NoError(t, err)
	assert.Equal(t, ActionSendMessage, action.Action)
	assert.Equal(t, "hi", action.Content)
	require.NotNil(t, action.ConversationID)
	assert.Equal(t, int64(7), *action.ConversationID)
}

func TestDecodeActionPublicSendOmitsConversation(t *testing.T) {
	action, err := decodeAction([]byte(`{"action":"sendMessage","content":"hello all"}`))

	require.NoError(t, err)
	assert.Nil(t, action.ConversationID)
}

func TestDecodeActionSubscribeRequiresConversation(t *testing.T) {
	_, err := decodeAction([]byte(`{"action":"subscribe"}`))
	require.Error(t, err)

	_, err = decodeAction([]byte(`{"action":"readMessages"}`))
	require.Error(t, err)
}

func TestDecodeActionRejectsUnknownAction(t *testing.T) {
	_, err := decodeAction([]byte(`{"action":"shout"}`))
	require.ErrorIs(t, err, ErrUnknownAction)
}

func TestDecodeActionRejectsMalformedPayload(t *testing.T) {
	_, err := decodeAction([]byte(`{"action":`))
	require.Error(t, err)
}
