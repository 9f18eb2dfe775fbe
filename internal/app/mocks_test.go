package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/stretchr/testify/mock"

	"czarhouse/internal/domain"
	"czarhouse/internal/storage/memory"
)

// --- Notifier ---

type delivery struct {
	to     domain.MemberID // Set for member events
	except domain.MemberID
	event  *domain.RoomEvent
}

type MockNotifier struct {
	mock.Mock

	mu        sync.Mutex
	delivered []delivery
}

func newMockNotifier() *MockNotifier {
	n := &MockNotifier{}
	n.On("JoinRoom", mock.Anything, mock.Anything).Return().Maybe()
	n.On("LeaveRoom", mock.Anything, mock.Anything).Return().Maybe()
	return n
}

func (m *MockNotifier) SendToMember(memberID domain.MemberID, event *domain.RoomEvent) {
	m.record(delivery{to: memberID, event: event})
}

func (m *MockNotifier) SendToRoom(roomID domain.RoomID, event *domain.RoomEvent) {
	m.record(delivery{event: event})
}

func (m *MockNotifier) SendToRoomExcept(roomID domain.RoomID, exclude domain.MemberID, event *domain.RoomEvent) {
	m.record(delivery{except: exclude, event: event})
}

func (m *MockNotifier) JoinRoom(roomID domain.RoomID, memberID domain.MemberID) {
	m.Called(roomID, memberID)
}

func (m *MockNotifier) LeaveRoom(roomID domain.RoomID, memberID domain.MemberID) {
	m.Called(roomID, memberID)
}

func (m *MockNotifier) record(d delivery) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delivered = append(m.delivered, d)
}

// ofType returns the deliveries of one event type in delivery order
func (m *MockNotifier) ofType(t domain.EventType) []delivery {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []delivery
	for _, d := range m.delivered {
		if d.event.Type == t {
			out = append(out, d)
		}
	}
	return out
}

// --- Store ---

// failingStore fails writes on demand
type failingStore struct {
	*memory.Store
	failSaves atomic.Bool
}

func (s *failingStore) SaveRoom(ctx context.Context, room *domain.Room, expected uint64) error {
	if s.failSaves.Load() {
		return fmt.Errorf("%w: disk unavailable", domain.ErrStorage)
	}
	return s.Store.SaveRoom(ctx, room, expected)
}
