package ws

import (
	"encoding/json"
	"time"

	"czarhouse/internal/domain"
)

// MessageType represents the type of WebSocket message
type MessageType string

// Client → Server message types
const (
	MsgJoin           MessageType = "join"
	MsgProfile        MessageType = "profile"
	MsgConfigure      MessageType = "configure"
	MsgSubmit         MessageType = "submit"
	MsgStartReading   MessageType = "start_reading"
	MsgReveal         MessageType = "reveal"
	MsgSelectResponse MessageType = "select_response"
	MsgSelectWinner   MessageType = "select_winner"
	MsgNextRound      MessageType = "next_round"
	MsgLeave          MessageType = "leave"
	MsgPing           MessageType = "ping"
)

// Server → Client message types. Room events keep their event type.
const (
	MsgConnected MessageType = "CONNECTED"
	MsgError     MessageType = MessageType(domain.EventError)
	MsgPong      MessageType = "PONG"
)

// ClientMessage represents a message from client to server
type ClientMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage represents a message from server to client
type ServerMessage struct {
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// NewServerMessage creates a new server message with current timestamp
func NewServerMessage(msgType MessageType, payload any) *ServerMessage {
	return &ServerMessage{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// eventMessage wraps a room event for the wire
func eventMessage(event *domain.RoomEvent) *ServerMessage {
	return &ServerMessage{
		Type:      MessageType(event.Type),
		Payload:   event.Payload,
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
	}
}

// Client message payloads

// JoinPayload is the payload for join
type JoinPayload struct {
	Token string `json:"token"`
	Name  string `json:"name"`
	Icon  string `json:"icon"`
}

// ProfilePayload is the payload for profile
type ProfilePayload struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// ConfigurePayload is the payload for configure
type ConfigurePayload struct {
	Edition    string   `json:"edition"`
	Packs      []string `json:"packs"`
	RotateCzar bool     `json:"rotateCzar"`
	Open       bool     `json:"open"`
}

// SubmitPayload is the payload for submit
type SubmitPayload struct {
	Cards []domain.CardID `json:"cards"`
}

// IndexPayload is the payload for reveal, select_response and
// select_winner. A null index clears the highlight.
type IndexPayload struct {
	Index *int `json:"index"`
}

// Server message payloads

// ConnectedPayload is the payload for connected
type ConnectedPayload struct {
	MemberID domain.MemberID `json:"memberId"`
	RoomID   domain.RoomID   `json:"roomId"`
	Room     domain.RoomView `json:"room"`
}

// Error codes added by the transport. Engine errors use domain.KindOf.
const (
	ErrCodeInvalidMessage = "INVALID_MESSAGE"
	ErrCodeNotJoined      = "NOT_JOINED"
	ErrCodeRateLimited    = "RATE_LIMITED"
)
