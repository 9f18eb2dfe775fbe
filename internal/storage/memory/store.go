// Package memory keeps rooms in process memory. It is the default store and
// the one used by tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"czarhouse/internal/domain"
)

// Message is a recorded system message
type Message struct {
	RoomID    domain.RoomID
	Text      string
	CreatedAt time.Time
}

// Store holds copies of every saved room and member
type Store struct {
	mu       sync.RWMutex
	rooms    map[domain.RoomID]*domain.Room
	members  map[domain.RoomID]map[domain.MemberID]*domain.Member
	messages map[domain.RoomID][]Message
	cards    *domain.CardSets
}

// New creates a store serving the given card catalog
func New(cards *domain.CardSets) *Store {
	return &Store{
		rooms:    make(map[domain.RoomID]*domain.Room),
		members:  make(map[domain.RoomID]map[domain.MemberID]*domain.Member),
		messages: make(map[domain.RoomID][]Message),
		cards:    cards,
	}
}

// LoadRoom returns a copy of the stored room without its members
func (s *Store) LoadRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: load room: %v", domain.ErrStorage, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room.Clone(), nil
}

// SaveRoom stores the room and its members if the stored version matches
func (s *Store) SaveRoom(ctx context.Context, room *domain.Room, expected uint64) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: save room: %v", domain.ErrStorage, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.rooms[room.ID]
	if (ok && stored.Version != expected) || (!ok && expected != 0) {
		return domain.ErrStaleVersion
	}

	clone := room.Clone()
	members := make(map[domain.MemberID]*domain.Member, len(clone.Members))
	for id, m := range clone.Members {
		members[id] = m
	}
	clone.Members = make(map[domain.MemberID]*domain.Member)

	s.rooms[room.ID] = clone
	s.members[room.ID] = members
	return nil
}

// DeleteRoom removes a room, its members and its messages
func (s *Store) DeleteRoom(ctx context.Context, id domain.RoomID) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: delete room: %v", domain.ErrStorage, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rooms, id)
	delete(s.members, id)
	delete(s.messages, id)
	return nil
}

// LoadMembers returns copies of a room's members
func (s *Store) LoadMembers(ctx context.Context, id domain.RoomID) ([]*domain.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: load members: %v", domain.ErrStorage, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	members := make([]*domain.Member, 0, len(s.members[id]))
	for _, m := range s.members[id] {
		c := *m
		members = append(members, &c)
	}
	return members, nil
}

// SaveMember stores a single member
func (s *Store) SaveMember(ctx context.Context, member *domain.Member) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: save member: %v", domain.ErrStorage, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	members, ok := s.members[member.RoomID]
	if !ok {
		return domain.ErrRoomNotFound
	}
	c := *member
	members[member.ID] = &c
	return nil
}

// LoadCardSets returns the catalog the store was created with
func (s *Store) LoadCardSets(ctx context.Context) (*domain.CardSets, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: load card sets: %v", domain.ErrStorage, err)
	}
	return s.cards, nil
}

// RecordMessage appends a system message to the room's log
func (s *Store) RecordMessage(ctx context.Context, roomID domain.RoomID, text string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: record message: %v", domain.ErrStorage, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[roomID] = append(s.messages[roomID], Message{RoomID: roomID, Text: text, CreatedAt: time.Now()})
	return nil
}

// Messages returns the messages recorded for a room
func (s *Store) Messages(roomID domain.RoomID) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Message(nil), s.messages[roomID]...)
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}
