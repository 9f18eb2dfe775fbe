package domain

import "time"

// EventType represents the type of room event
type EventType string

const (
	EventMemberJoined     EventType = "MEMBER_JOINED"
	EventMemberLeft       EventType = "MEMBER_LEFT"
	EventMemberUpdated    EventType = "MEMBER_UPDATED"
	EventRoomConfigured   EventType = "ROOM_CONFIGURED"
	EventHandDealt        EventType = "HAND_DEALT"
	EventRoundStarted     EventType = "ROUND_STARTED"
	EventMemberState      EventType = "MEMBER_STATE"
	EventAnswersReady     EventType = "ANSWERS_READY"
	EventReadingStarted   EventType = "READING_STARTED"
	EventResponseRevealed EventType = "RESPONSE_REVEALED"
	EventResponseSelected EventType = "RESPONSE_SELECTED"
	EventWinnerSelected   EventType = "WINNER_SELECTED"
	EventCzarReplaced     EventType = "CZAR_REPLACED"
	EventSystemMessage    EventType = "SYSTEM_MESSAGE"
	EventError            EventType = "ERROR"
)

// RoomEvent is an outbound notification. Target limits delivery to one
// member; Exclude skips one member of the room.
type RoomEvent struct {
	Type      EventType `json:"type"`
	RoomID    RoomID    `json:"roomId"`
	Target    MemberID  `json:"-"`
	Exclude   MemberID  `json:"-"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates an event for the whole room
func NewEvent(eventType EventType, roomID RoomID, payload any) *RoomEvent {
	return &RoomEvent{
		Type:      eventType,
		RoomID:    roomID,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// NewMemberEvent creates an event for a single member
func NewMemberEvent(eventType EventType, roomID RoomID, memberID MemberID, payload any) *RoomEvent {
	e := NewEvent(eventType, roomID, payload)
	e.Target = memberID
	return e
}

// NewEventExcept creates an event for everyone in the room but one member
func NewEventExcept(eventType EventType, roomID RoomID, exclude MemberID, payload any) *RoomEvent {
	e := NewEvent(eventType, roomID, payload)
	e.Exclude = exclude
	return e
}

// Payload types for different events

// MemberPayload carries one member's public state
type MemberPayload struct {
	Member MemberInfo `json:"member"`
}

// MemberLeftPayload is sent when a member leaves
type MemberLeftPayload struct {
	MemberID MemberID `json:"memberId"`
	NewAdmin MemberID `json:"newAdmin,omitempty"`
}

// RoomConfiguredPayload is sent once a room leaves the NEW phase
type RoomConfiguredPayload struct {
	Edition    string   `json:"edition"`
	Packs      []string `json:"packs"`
	RotateCzar bool     `json:"rotateCzar"`
	Open       bool     `json:"open"`
}

// HandPayload is sent privately with a member's current hand
type HandPayload struct {
	Hand  []Card   `json:"hand"`
	Dealt []CardID `json:"dealt,omitempty"`
}

// RoundStartedPayload is sent when a new prompt is shown
type RoundStartedPayload struct {
	Round   int          `json:"round"`
	Prompt  PromptCard   `json:"prompt"`
	CzarID  MemberID     `json:"czarId"`
	Members []MemberInfo `json:"members"`
}

// MemberStatePayload is sent after a submission, without the cards
type MemberStatePayload struct {
	MemberID  MemberID   `json:"memberId"`
	Role      MemberRole `json:"role"`
	Submitted int        `json:"submitted"`
	Expected  int        `json:"expected"`
}

// AnswersReadyPayload tells the czar reading may begin
type AnswersReadyPayload struct {
	Submitted int `json:"submitted"`
}

// ReadingStartedPayload lists the anonymous submission slots
type ReadingStartedPayload struct {
	Groups  int          `json:"groups"`
	Members []MemberInfo `json:"members"`
}

// ResponseRevealedPayload is sent when the czar flips a submission
type ResponseRevealedPayload struct {
	Index int    `json:"index"`
	Cards []Card `json:"cards"`
}

// ResponseSelectedPayload is sent when the czar highlights a submission
type ResponseSelectedPayload struct {
	Index *int `json:"index"`
}

// WinnerSelectedPayload is sent when a round ends
type WinnerSelectedPayload struct {
	Index    int          `json:"index"`
	Winner   MemberInfo   `json:"winner"`
	Cards    []Card       `json:"cards"`
	NextCzar MemberID     `json:"nextCzar,omitempty"`
	Vacant   bool         `json:"vacant"`
	Members  []MemberInfo `json:"members"`
}

// CzarReplacedPayload is sent when a new czar takes over after a departure
type CzarReplacedPayload struct {
	Departed MemberID `json:"departed,omitempty"`
	CzarID   MemberID `json:"czarId,omitempty"`
	Vacant   bool     `json:"vacant"`
}

// SystemMessagePayload is a server-authored chat line
type SystemMessagePayload struct {
	Text string `json:"text"`
}

// ErrorPayload is sent when an error occurs
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
