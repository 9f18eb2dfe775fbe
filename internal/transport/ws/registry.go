package ws

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"czarhouse/internal/domain"
)

// Registry tracks live connections by member and room. It is the app's
// Notifier.
type Registry struct {
	mu      sync.RWMutex
	clients map[domain.MemberID]*Client
	rooms   map[domain.RoomID]map[domain.MemberID]struct{}
	logger  zerolog.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		clients: make(map[domain.MemberID]*Client),
		rooms:   make(map[domain.RoomID]map[domain.MemberID]struct{}),
		logger:  logger,
	}
}

// Register makes c the connection for its member, closing any previous one
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	old := r.clients[c.memberID]
	r.clients[c.memberID] = c
	r.mu.Unlock()

	if old != nil && old != c {
		r.logger.Debug().Str("member", string(c.memberID)).Msg("replacing previous connection")
		old.Close()
	}
}

// Unregister removes c if it is still the member's connection and reports
// whether it was
func (r *Registry) Unregister(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.clients[c.memberID] != c {
		return false
	}
	delete(r.clients, c.memberID)
	return true
}

// JoinRoom subscribes a member to room broadcasts
func (r *Registry) JoinRoom(roomID domain.RoomID, memberID domain.MemberID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[domain.MemberID]struct{})
		r.rooms[roomID] = members
	}
	members[memberID] = struct{}{}
}

// LeaveRoom unsubscribes a member from room broadcasts
func (r *Registry) LeaveRoom(roomID domain.RoomID, memberID domain.MemberID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(members, memberID)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
}

// SendToMember delivers an event to one member
func (r *Registry) SendToMember(memberID domain.MemberID, event *domain.RoomEvent) {
	data, ok := r.encode(event)
	if !ok {
		return
	}

	r.mu.RLock()
	c := r.clients[memberID]
	r.mu.RUnlock()
	if c != nil {
		c.sendRaw(data)
	}
}

// SendToRoom delivers an event to every subscribed member
func (r *Registry) SendToRoom(roomID domain.RoomID, event *domain.RoomEvent) {
	r.SendToRoomExcept(roomID, "", event)
}

// SendToRoomExcept delivers an event to every subscribed member but one
func (r *Registry) SendToRoomExcept(roomID domain.RoomID, exclude domain.MemberID, event *domain.RoomEvent) {
	data, ok := r.encode(event)
	if !ok {
		return
	}

	r.mu.RLock()
	targets := make([]*Client, 0, len(r.rooms[roomID]))
	for id := range r.rooms[roomID] {
		if id == exclude {
			continue
		}
		if c := r.clients[id]; c != nil {
			targets = append(targets, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range targets {
		c.sendRaw(data)
	}
}

// Count returns the number of live connections
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// CloseAll closes every connection
func (r *Registry) CloseAll() {
	r.mu.RLock()
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.RUnlock()

	for _, c := range clients {
		c.Close()
	}
}

func (r *Registry) encode(event *domain.RoomEvent) ([]byte, bool) {
	data, err := json.Marshal(eventMessage(event))
	if err != nil {
		r.logger.Error().Err(err).Str("type", string(event.Type)).Msg("failed to encode event")
		return nil, false
	}
	return data, true
}
