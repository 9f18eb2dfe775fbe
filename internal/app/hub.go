package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	mrand "math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"czarhouse/internal/domain"
)

const (
	// DefaultRoomCodeLength is the default length for room codes
	DefaultRoomCodeLength = 6

	// TokenLength is the length of the join token shared with players
	TokenLength = 8

	// DefaultStaleRoomTimeout is how long an idle room is kept
	DefaultStaleRoomTimeout = 2 * time.Hour

	// DefaultStoreTimeout bounds every store round-trip
	DefaultStoreTimeout = 3 * time.Second

	cleanupInterval = 10 * time.Minute
)

// RoomCodeChars are characters used for room codes (no ambiguous chars)
const RoomCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// HubConfig holds the hub's tunables
type HubConfig struct {
	Settings         domain.RoomSettings
	StaleRoomTimeout time.Duration
	StoreTimeout     time.Duration

	// NewRand returns the random source for one action. Defaults to a
	// freshly seeded PCG.
	NewRand func() *mrand.Rand
	Now     func() time.Time
}

// Hub is the arena of rooms keyed by room id. It owns the sessions and
// the open room listing; each session owns its room.
type Hub struct {
	sessions map[domain.RoomID]*Session
	mu       sync.RWMutex

	// Eventually consistent listing, refreshed on every commit
	listing   map[domain.RoomID]domain.RoomSummary
	listingMu sync.RWMutex

	cfg      HubConfig
	store    Store
	notifier Notifier
	cards    *domain.CardSets
	logger   zerolog.Logger
	done     chan struct{}
	stopOnce sync.Once
}

// NewHub loads the card catalog and creates a hub
func NewHub(ctx context.Context, cfg HubConfig, store Store, notifier Notifier, logger zerolog.Logger) (*Hub, error) {
	if cfg.Settings.HandSize <= 0 {
		cfg.Settings = domain.DefaultRoomSettings()
	}
	if cfg.StaleRoomTimeout <= 0 {
		cfg.StaleRoomTimeout = DefaultStaleRoomTimeout
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	if cfg.NewRand == nil {
		cfg.NewRand = func() *mrand.Rand {
			return mrand.New(mrand.NewPCG(mrand.Uint64(), mrand.Uint64()))
		}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	loadCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
	defer cancel()
	cards, err := store.LoadCardSets(loadCtx)
	if err != nil {
		return nil, fmt.Errorf("load card sets: %w", err)
	}

	h := &Hub{
		sessions: make(map[domain.RoomID]*Session),
		listing:  make(map[domain.RoomID]domain.RoomSummary),
		cfg:      cfg,
		store:    store,
		notifier: notifier,
		cards:    cards,
		logger:   logger,
		done:     make(chan struct{}),
	}

	logger.Info().
		Int("prompts", len(cards.Prompts)).
		Int("responses", len(cards.Responses)).
		Int("editions", len(cards.Editions)).
		Msg("card sets loaded")

	return h, nil
}

// Cards returns the card catalog
func (h *Hub) Cards() *domain.CardSets {
	return h.cards
}

// CreateRoom creates a new room and returns its session. The caller becomes
// admin by joining with the admin token.
func (h *Hub) CreateRoom(ctx context.Context) (*Session, error) {
	var id domain.RoomID
	for attempts := 0; attempts < 10; attempts++ {
		candidate := domain.RoomID(randomCode(DefaultRoomCodeLength))
		h.mu.RLock()
		_, exists := h.sessions[candidate]
		h.mu.RUnlock()
		if !exists {
			id = candidate
			break
		}
	}
	if id == "" {
		return nil, fmt.Errorf("failed to generate unique room code")
	}

	room := domain.NewRoom(id, randomCode(TokenLength), uuid.NewString(), h.cfg.Settings, h.cfg.Now())

	// Version zero only succeeds if no room with this code was ever stored
	saveCtx, cancel := context.WithTimeout(ctx, h.cfg.StoreTimeout)
	defer cancel()
	if err := h.store.SaveRoom(saveCtx, room, 0); err != nil {
		if errors.Is(err, domain.ErrStaleVersion) {
			return nil, fmt.Errorf("room code %s already taken", id)
		}
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	session := h.newSession(room)
	h.sessions[id] = session
	h.publish(listingOf(room))

	h.logger.Info().Str("room", string(id)).Msg("room created")
	return session, nil
}

// GetSession returns a room's session, loading the room from the store if
// this process has not seen it yet.
func (h *Hub) GetSession(ctx context.Context, id domain.RoomID) (*Session, error) {
	h.mu.RLock()
	session, ok := h.sessions[id]
	h.mu.RUnlock()
	if ok {
		return session, nil
	}

	loadCtx, cancel := context.WithTimeout(ctx, h.cfg.StoreTimeout)
	defer cancel()
	room, err := loadRoom(loadCtx, h.store, id)
	if err != nil {
		return nil, err
	}
	if room.ActiveCount() == 0 && room.Phase.Started() {
		return nil, domain.ErrRoomNotFound
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	// Another caller may have loaded it meanwhile
	if session, ok := h.sessions[id]; ok {
		return session, nil
	}
	session = h.newSession(room)
	h.sessions[id] = session
	h.publish(listingOf(room))

	h.logger.Info().Str("room", string(id)).Uint64("version", room.Version).Msg("room loaded from store")
	return session, nil
}

// Draw draws cards for a room outside a game action
func (h *Hub) Draw(ctx context.Context, id domain.RoomID, color domain.Color, count int) ([]domain.Card, error) {
	session, err := h.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return session.Draw(ctx, color, count)
}

// DeleteRoom closes a room's session and removes it from the store
func (h *Hub) DeleteRoom(ctx context.Context, id domain.RoomID) {
	h.mu.Lock()
	session, ok := h.sessions[id]
	if ok {
		session.Close()
		delete(h.sessions, id)
	}
	h.mu.Unlock()
	h.unpublish(id)

	delCtx, cancel := context.WithTimeout(ctx, h.cfg.StoreTimeout)
	defer cancel()
	if err := h.store.DeleteRoom(delCtx, id); err != nil {
		h.logger.Error().Err(err).Str("room", string(id)).Msg("failed to delete room")
		return
	}
	h.logger.Info().Str("room", string(id)).Msg("room deleted")
}

// OpenRooms lists rooms that accept players from the lobby
func (h *Hub) OpenRooms() []domain.RoomSummary {
	h.listingMu.RLock()
	defer h.listingMu.RUnlock()

	rooms := make([]domain.RoomSummary, 0, len(h.listing))
	for _, summary := range h.listing {
		rooms = append(rooms, summary)
	}
	slices.SortFunc(rooms, func(a, b domain.RoomSummary) int {
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return rooms
}

// GetSessionCount returns the number of active sessions
func (h *Hub) GetSessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// GetTotalMemberCount returns the number of members across all sessions
func (h *Hub) GetTotalMemberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, session := range h.sessions {
		total += session.ActiveCount()
	}
	return total
}

// Run removes stale rooms until ctx is done or the hub is closed
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.done:
			return nil
		case <-ticker.C:
			h.cleanupStaleRooms(ctx)
		}
	}
}

// Close shuts down the hub and all sessions
func (h *Hub) Close() {
	h.stopOnce.Do(func() { close(h.done) })

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, session := range h.sessions {
		session.Close()
	}
	h.sessions = make(map[domain.RoomID]*Session)
}

// cleanupStaleRooms removes rooms that have been inactive for too long
func (h *Hub) cleanupStaleRooms(ctx context.Context) {
	now := h.cfg.Now()

	h.mu.RLock()
	stale := make([]domain.RoomID, 0)
	for id, session := range h.sessions {
		if now.Sub(session.LastActive()) > h.cfg.StaleRoomTimeout {
			stale = append(stale, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range stale {
		h.DeleteRoom(ctx, id)
		h.logger.Info().Str("room", string(id)).Msg("stale room cleaned up")
	}
}

// newSession wires a session to the hub (caller must hold lock)
func (h *Hub) newSession(room *domain.Room) *Session {
	return newSession(room, sessionDeps{
		store:        h.store,
		notifier:     h.notifier,
		cards:        h.cards,
		newRand:      h.cfg.NewRand,
		now:          h.cfg.Now,
		storeTimeout: h.cfg.StoreTimeout,
		logger:       h.logger,
		onCommit:     h.publish,
		onEmpty: func(id domain.RoomID) {
			h.DeleteRoom(context.Background(), id)
		},
	})
}

// roomListing is a room's open-room entry, taken while the room was
// guarded by its session
type roomListing struct {
	summary domain.RoomSummary
	listed  bool
}

func listingOf(room *domain.Room) roomListing {
	return roomListing{
		summary: room.Summary(),
		listed:  room.Open && room.ActiveCount() > 0,
	}
}

// publish refreshes the room's listing entry
func (h *Hub) publish(entry roomListing) {
	h.listingMu.Lock()
	defer h.listingMu.Unlock()

	if entry.listed {
		h.listing[entry.summary.ID] = entry.summary
	} else {
		delete(h.listing, entry.summary.ID)
	}
}

func (h *Hub) unpublish(id domain.RoomID) {
	h.listingMu.Lock()
	defer h.listingMu.Unlock()
	delete(h.listing, id)
}

// loadRoom rebuilds a room and its members from the store
func loadRoom(ctx context.Context, store Store, id domain.RoomID) (*domain.Room, error) {
	room, err := store.LoadRoom(ctx, id)
	if err != nil {
		return nil, err
	}
	members, err := store.LoadMembers(ctx, id)
	if err != nil {
		return nil, err
	}

	room.Members = make(map[domain.MemberID]*domain.Member, len(members))
	for _, m := range members {
		room.Members[m.ID] = m
	}
	if room.Allocation == nil {
		room.Allocation = domain.NewAllocation()
	}
	if room.Round == nil {
		room.Round = domain.NewRound(0)
	}
	return room, nil
}

// randomCode generates a random code from RoomCodeChars
func randomCode(length int) string {
	b := make([]byte, length)
	rand.Read(b)

	code := make([]byte, length)
	for i := range code {
		code[i] = RoomCodeChars[int(b[i])%len(RoomCodeChars)]
	}

	return string(code)
}
