package domain

import "encoding/json"

// Action websocket request action
type Action string

const (
	// Join websocket action join, declares the user id of this channel
	Join Action = "join"
	// SendMessage websocket action send_message, persist then push
	SendMessage Action = "send_message"
	// RelayMessage websocket action relay_message, legacy raw forward without persistence
	RelayMessage Action = "relay_message"
	// ReadMessage websocket action read_message, mark conversation read
	ReadMessage Action = "read_message"
	// GetHistory websocket action get_history
	GetHistory Action = "get_history"
	// GetChats websocket action get_chats
	GetChats Action = "get_chats"
	// Ping websocket action ping, refresh presence ttl
	Ping Action = "ping"

	// NotifyMessage server push of a persisted message
	NotifyMessage Action = "notify_message"
	// MessagesRead server push to the sender when the receiver read the conversation
	MessagesRead Action = "messages_read"
	// SessionSuperseded server push to a channel replaced by a newer join
	SessionSuperseded Action = "session_superseded"
	// Pong reply of ping
	Pong Action = "pong"
	// ActionError generic error response
	ActionError Action = "error"
)

// WSRequest websocket Request
type WSRequest struct {
	Action      string          `json:"action"`
	UserID      string          `json:"user_id"`
	ReceiverID  string          `json:"receiver_id"`
	OtherUserID string          `json:"other_user_id"`
	Content     string          `json:"content"`
	Image       string          `json:"image"`
	Video       string          `json:"video"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// WSResponse websocket Response
type WSResponse struct {
	Action  string                 `json:"action"`
	Success bool                   `json:"success"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// NewNotifyMessage push event carrying the persisted message
func NewNotifyMessage(m *Message) WSResponse {
	return WSResponse{
		Action:  string(NotifyMessage),
		Success: true,
		Payload: map[string]interface{}{"message": m},
	}
}

// NewRelayEvent legacy relay event, payload forwarded as is
func NewRelayEvent(senderID string, payload json.RawMessage) WSResponse {
	return WSResponse{
		Action:  string(RelayMessage),
		Success: true,
		Payload: map[string]interface{}{
			"sender_id": senderID,
			"data":      payload,
		},
	}
}

// NewMessagesRead read receipt for the original sender
func NewMessagesRead(readerID string, count int64) WSResponse {
	return WSResponse{
		Action:  string(MessagesRead),
		Success: true,
		Payload: map[string]interface{}{
			"reader_id": readerID,
			"count":     count,
		},
	}
}

// NewSessionSuperseded eviction notice for an older channel of the same user
func NewSessionSuperseded(userID string) WSResponse {
	return WSResponse{
		Action:  string(SessionSuperseded),
		Success: true,
		Payload: map[string]interface{}{"user_id": userID},
	}
}
