package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ActionType names the client-to-server actions carried over the socket.
type ActionType string

const (
	ActionAddUser      ActionType = "addUser"
	ActionSubscribe    ActionType = "subscribe"
	ActionUnsubscribe  ActionType = "unsubscribe"
	ActionSendMessage  ActionType = "sendMessage"
	ActionReadMessages ActionType = "readMessages"
)

// ErrUnknownAction rejects frames with an unrecognized action name.
var ErrUnknownAction = errors.New("unknown action")

// ClientAction is one inbound frame. ConversationID is optional for
// sendMessage (nil addresses the public conversation) and required for
// subscribe and readMessages.
type ClientAction struct {
	Action         ActionType `json:"action"`
	Content        string     `json:"content,omitempty"`
	ConversationID *int64     `json:"conversationId,omitempty"`
}

// decodeAction parses and validates a raw frame.
func decodeAction(raw []byte) (ClientAction, error) {
	var action ClientAction
	if err := json.Unmarshal(raw, &action); err != nil {
		return ClientAction{}, fmt.Errorf("malformed payload: %w", err)
	}

	switch action.Action {
	case ActionAddUser, ActionUnsubscribe, ActionSendMessage:
	case ActionSubscribe, ActionReadMessages:
		if action.ConversationID == nil {
			return ClientAction{}, fmt.Errorf("%s requires a conversationId", action.Action)
		}
	default:
		return ClientAction{}, fmt.Errorf("%w: %q", ErrUnknownAction, action.Action)
	}
	return action, nil
}
