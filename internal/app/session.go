package app

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"czarhouse/internal/domain"
)

const (
	// maxApplyAttempts bounds how often an action is re-run after losing a
	// commit race
	maxApplyAttempts = 32

	eventBufferSize = 256
)

// operation mutates a private copy of the room and returns the events to
// send if the copy is committed. It may run more than once.
type operation func(room *domain.Room, env domain.Env) ([]*domain.RoomEvent, error)

// sessionDeps are the collaborators a session shares with its hub
type sessionDeps struct {
	store        Store
	notifier     Notifier
	cards        *domain.CardSets
	newRand      func() *rand.Rand
	now          func() time.Time
	storeTimeout time.Duration
	logger       zerolog.Logger
	onCommit     func(entry roomListing)
	onEmpty      func(id domain.RoomID)
}

// Session serializes every action on one room.
//
// Actions run on a clone of the committed room outside the lock, are written
// through the store's versioned SaveRoom and are committed in memory only
// after the store accepted them. A session never holds its lock across a
// store round-trip.
type Session struct {
	id      domain.RoomID
	mu      sync.RWMutex
	room    *domain.Room
	commits chan struct{} // Closed and replaced on every commit
	closed  bool

	sessionDeps
	logger zerolog.Logger

	events    chan *domain.RoomEvent
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(room *domain.Room, deps sessionDeps) *Session {
	s := &Session{
		id:          room.ID,
		room:        room,
		commits:     make(chan struct{}),
		sessionDeps: deps,
		logger:      deps.logger.With().Str("room", string(room.ID)).Logger(),
		events:      make(chan *domain.RoomEvent, eventBufferSize),
		done:        make(chan struct{}),
	}

	go s.eventLoop()

	return s
}

// ID returns the room id
func (s *Session) ID() domain.RoomID {
	return s.id
}

// Room returns a copy of the committed room
func (s *Session) Room() *domain.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.room.Clone()
}

// Summary returns the room's listing entry
func (s *Session) Summary() domain.RoomSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.room.Summary()
}

// View returns the room as the member sees it
func (s *Session) View(memberID domain.MemberID) domain.RoomView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.room.ViewFor(memberID, s.cards)
}

// ActiveCount returns the number of members in the room
func (s *Session) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.room.ActiveCount()
}

// LastActive returns when the room last changed
func (s *Session) LastActive() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.room.LastActive
}

// Join adds a member to the room, or resumes one already in it. The admin
// token grants admin rights.
func (s *Session) Join(ctx context.Context, memberID domain.MemberID, token, name, icon string) (domain.RoomView, error) {
	var (
		view    domain.RoomView
		resumed bool
	)
	s.notifier.JoinRoom(s.id, memberID)

	_, err := s.apply(ctx, func(room *domain.Room, env domain.Env) ([]*domain.RoomEvent, error) {
		admin := token != "" && token == room.AdminToken
		if !admin && token != room.Token {
			return nil, domain.ErrBadToken
		}

		if m, ok := room.Members[memberID]; ok && m.IsActive() {
			m.Connected = true
			m.LastSeen = env.Now
			if admin {
				m.Admin = true
			}
			resumed = true
			view = room.ViewFor(memberID, env.Cards)
			return nil, nil
		}

		res, err := room.AddMember(memberID, name, icon, env)
		if err != nil {
			return nil, err
		}
		if admin {
			res.Member.Admin = true
		}
		view = room.ViewFor(memberID, env.Cards)

		events := []*domain.RoomEvent{
			domain.NewEventExcept(domain.EventMemberJoined, room.ID, memberID, domain.MemberPayload{Member: res.Member.ToInfo()}),
		}
		if res.Member.Name != "" {
			events = append(events, systemMessage(room, res.Member.Name+" joined the room"))
		}
		return append(events, seatEvents(room, res, env)...), nil
	})
	if err != nil {
		s.notifier.LeaveRoom(s.id, memberID)
		return domain.RoomView{}, err
	}

	s.logger.Info().Str("member", string(memberID)).Bool("resumed", resumed).Msg("member joined")
	return view, nil
}

// SetProfile changes a member's name and icon
func (s *Session) SetProfile(ctx context.Context, memberID domain.MemberID, name, icon string) (domain.MemberInfo, error) {
	var info domain.MemberInfo
	_, err := s.apply(ctx, func(room *domain.Room, env domain.Env) ([]*domain.RoomEvent, error) {
		res, err := room.SetProfile(memberID, name, icon, env)
		if err != nil {
			return nil, err
		}
		info = res.Member.ToInfo()

		events := []*domain.RoomEvent{
			domain.NewEvent(domain.EventMemberUpdated, room.ID, domain.MemberPayload{Member: info}),
		}
		return append(events, seatEvents(room, res, env)...), nil
	})
	return info, err
}

// ConfigureRequest holds the settings chosen when a room starts
type ConfigureRequest struct {
	Edition    string
	Packs      []string
	RotateCzar bool
	Open       bool
}

// Configure starts the first round
func (s *Session) Configure(ctx context.Context, memberID domain.MemberID, req ConfigureRequest) error {
	_, err := s.apply(ctx, func(room *domain.Room, env domain.Env) ([]*domain.RoomEvent, error) {
		if err := room.Configure(memberID, req.Edition, req.Packs, req.RotateCzar, req.Open, env); err != nil {
			return nil, err
		}

		events := []*domain.RoomEvent{
			domain.NewEvent(domain.EventRoomConfigured, room.ID, domain.RoomConfiguredPayload{
				Edition:    room.Edition,
				Packs:      room.Packs,
				RotateCzar: room.RotateCzar,
				Open:       room.Open,
			}),
		}
		return append(events, roundEvents(room, env.Cards)...), nil
	})
	if err == nil {
		s.logger.Info().Str("edition", req.Edition).Strs("packs", req.Packs).Msg("room configured")
	}
	return err
}

// Submit records a member's answer for the current prompt
func (s *Session) Submit(ctx context.Context, memberID domain.MemberID, cards []domain.CardID) (domain.SubmitResult, error) {
	var result domain.SubmitResult
	_, err := s.apply(ctx, func(room *domain.Room, env domain.Env) ([]*domain.RoomEvent, error) {
		res, err := room.Submit(memberID, cards, env)
		if err != nil {
			return nil, err
		}
		result = res

		events := []*domain.RoomEvent{
			handEvent(room, memberID, env.Cards, res.Replacement),
			domain.NewEvent(domain.EventMemberState, room.ID, domain.MemberStatePayload{
				MemberID:  memberID,
				Role:      room.Members[memberID].Role,
				Submitted: room.CompleteGroups(),
				Expected:  room.EligibleResponders(),
			}),
		}
		if res.AnswersReady {
			events = append(events, answersReady(room)...)
		}
		return events, nil
	})
	if err != nil {
		return domain.SubmitResult{}, err
	}

	if result.Exhausted {
		s.logger.Warn().Str("member", string(memberID)).Msg("response cards exhausted, submission kept without replacement")
	}
	if result.AnswersReady {
		s.logger.Debug().Msg("answers ready")
	}
	return result, nil
}

// StartReading closes submissions
func (s *Session) StartReading(ctx context.Context, memberID domain.MemberID) error {
	_, err := s.apply(ctx, func(room *domain.Room, env domain.Env) ([]*domain.RoomEvent, error) {
		if err := room.StartReading(memberID, env); err != nil {
			return nil, err
		}
		return []*domain.RoomEvent{
			domain.NewEvent(domain.EventReadingStarted, room.ID, domain.ReadingStartedPayload{
				Groups:  len(room.Round.Groups),
				Members: room.MemberInfos(),
			}),
		}, nil
	})
	return err
}

// Reveal flips one submission over for everyone
func (s *Session) Reveal(ctx context.Context, memberID domain.MemberID, index int) error {
	_, err := s.apply(ctx, func(room *domain.Room, env domain.Env) ([]*domain.RoomEvent, error) {
		g, err := room.RevealGroup(memberID, index, env)
		if err != nil {
			return nil, err
		}
		return []*domain.RoomEvent{
			domain.NewEvent(domain.EventResponseRevealed, room.ID, domain.ResponseRevealedPayload{
				Index: g.Index,
				Cards: env.Cards.CardsOf(g.Cards),
			}),
		}, nil
	})
	return err
}

// SelectResponse highlights a revealed submission; nil clears the highlight
func (s *Session) SelectResponse(ctx context.Context, memberID domain.MemberID, index *int) error {
	_, err := s.apply(ctx, func(room *domain.Room, env domain.Env) ([]*domain.RoomEvent, error) {
		if err := room.SelectGroup(memberID, index, env); err != nil {
			return nil, err
		}
		return []*domain.RoomEvent{
			domain.NewEvent(domain.EventResponseSelected, room.ID, domain.ResponseSelectedPayload{Index: room.SelectedGroup}),
		}, nil
	})
	return err
}

// SelectWinner ends the round
func (s *Session) SelectWinner(ctx context.Context, memberID domain.MemberID, index int) (domain.WinResult, error) {
	var result domain.WinResult
	_, err := s.apply(ctx, func(room *domain.Room, env domain.Env) ([]*domain.RoomEvent, error) {
		res, err := room.SelectWinner(memberID, index, env)
		if err != nil {
			return nil, err
		}
		result = res

		winner := room.Members[res.Winner]
		events := []*domain.RoomEvent{
			domain.NewEvent(domain.EventWinnerSelected, room.ID, domain.WinnerSelectedPayload{
				Index:    index,
				Winner:   winner.ToInfo(),
				Cards:    env.Cards.CardsOf(res.Group.Cards),
				NextCzar: res.NextCzar,
				Vacant:   room.CzarVacant,
				Members:  room.MemberInfos(),
			}),
			systemMessage(room, winner.Name+" won the round"),
		}
		return events, nil
	})
	if err != nil {
		return domain.WinResult{}, err
	}

	if result.NextCzar == "" {
		s.logger.Warn().Msg("no eligible member for the next round")
	}
	return result, nil
}

// NextRound starts the next round
func (s *Session) NextRound(ctx context.Context, memberID domain.MemberID) error {
	_, err := s.apply(ctx, func(room *domain.Room, env domain.Env) ([]*domain.RoomEvent, error) {
		designated := room.NextCzar()
		czar, err := room.NextRound(memberID, env)
		if err != nil {
			return nil, err
		}

		events := roundEvents(room, env.Cards)
		if designated == nil {
			events = append(events, czarReplaced(room, "", czar)...)
		}
		return events, nil
	})
	return err
}

// Leave marks a member inactive and recovers the round if they were judging.
// The room is removed once nobody is left.
func (s *Session) Leave(ctx context.Context, memberID domain.MemberID) error {
	var result domain.LeaveResult
	_, err := s.apply(ctx, func(room *domain.Room, env domain.Env) ([]*domain.RoomEvent, error) {
		res, err := room.RemoveMember(memberID, env)
		if err != nil {
			return nil, err
		}
		result = res
		return leaveEvents(room, res, env), nil
	})
	if err != nil {
		return err
	}

	s.notifier.LeaveRoom(s.id, memberID)
	log := s.logger.Info().Str("member", string(memberID)).Bool("wasCzar", result.WasCzar)
	if result.Replacement != "" {
		log = log.Str("czar", string(result.Replacement))
	}
	log.Msg("member left")

	if result.ReplaceErr != nil {
		s.logger.Warn().Err(result.ReplaceErr).Msg("czar seat left vacant")
	}
	if result.Empty && s.onEmpty != nil {
		s.onEmpty(s.id)
	}
	return nil
}

// Draw takes count unused cards of the color from the room's pool and
// records them as used. Response cards go straight out of play and prompt
// cards do not replace the current prompt. A short pool returns
// ErrExhausted and records nothing.
func (s *Session) Draw(ctx context.Context, color domain.Color, count int) ([]domain.Card, error) {
	if color != domain.ColorPrompt && color != domain.ColorResponse {
		return nil, fmt.Errorf("%w: unknown card color %q", domain.ErrValidationFailed, color)
	}
	if count <= 0 {
		return nil, nil
	}

	var drawn []domain.Card
	_, err := s.apply(ctx, func(room *domain.Room, env domain.Env) ([]*domain.RoomEvent, error) {
		ids, err := room.Allocation.Draw(env.Cards, color, room.Edition, room.Packs, count, env.Rand)
		if err != nil {
			return nil, err
		}

		drawn = make([]domain.Card, 0, len(ids))
		if color == domain.ColorPrompt {
			for _, id := range ids {
				room.Allocation.RecordPrompt(id)
				drawn = append(drawn, env.Cards.Prompts[id].Card)
			}
		} else {
			room.Allocation.RecordPlayed(ids)
			drawn = env.Cards.CardsOf(ids)
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Str("color", string(color)).Int("count", count).Msg("cards drawn")
	return drawn, nil
}

// Touch records that a member is still connected. It bypasses the
// versioned commit and replaces the committed room with a copy carrying the
// new presence. The stored member row may lag behind a concurrent room
// write until the next touch.
func (s *Session) Touch(ctx context.Context, memberID domain.MemberID) error {
	s.mu.Lock()
	m, ok := s.room.Members[memberID]
	if !ok {
		s.mu.Unlock()
		return domain.ErrMemberNotFound
	}
	if !m.IsActive() {
		s.mu.Unlock()
		return nil
	}
	touched := *m
	touched.LastSeen = s.now()
	touched.Connected = true

	// Readers may still hold the previous room, so never write into it
	next := *s.room
	next.Members = maps.Clone(s.room.Members)
	next.Members[memberID] = &touched
	s.room = &next
	s.mu.Unlock()

	ctx, cancel := s.storeContext(ctx)
	defer cancel()
	return s.store.SaveMember(ctx, &touched)
}

// keepPresence copies presence recorded by Touch after the draft was cloned
// into the draft. Members the draft removed stay disconnected.
func keepPresence(draft, committed *domain.Room) {
	for id, m := range draft.Members {
		cur, ok := committed.Members[id]
		if !ok || !cur.LastSeen.After(m.LastSeen) {
			continue
		}
		m.LastSeen = cur.LastSeen
		if m.IsActive() {
			m.Connected = m.Connected || cur.Connected
		}
	}
}

// apply runs op against the committed room and commits the result.
func (s *Session) apply(ctx context.Context, op operation) (*domain.Room, error) {
	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		s.mu.RLock()
		if s.closed {
			s.mu.RUnlock()
			return nil, domain.ErrRoomNotFound
		}
		base := s.room
		commits := s.commits
		draft := base.Clone()
		s.mu.RUnlock()

		env := domain.Env{Cards: s.cards, Rand: s.newRand(), Now: s.now()}
		events, err := op(draft, env)
		if err != nil {
			return nil, err
		}
		draft.Version = base.Version + 1

		err = s.persist(ctx, draft, base.Version)
		if errors.Is(err, domain.ErrStaleVersion) {
			// Another action won this version; retry once it is visible
			if err := s.awaitCommit(ctx, commits); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to persist room")
			return nil, err
		}

		s.mu.Lock()
		// A resync may already have loaded this very write
		if s.room.Version < draft.Version {
			keepPresence(draft, s.room)
			s.room = draft
			s.signalCommit()
		}
		entry := listingOf(s.room)
		for _, event := range events {
			s.queueEvent(event)
		}
		s.mu.Unlock()

		if s.onCommit != nil {
			s.onCommit(entry)
		}
		return draft, nil
	}

	s.logger.Warn().Int("attempts", maxApplyAttempts).Msg("gave up after repeated conflicts")
	return nil, domain.ErrConflict
}

func (s *Session) persist(ctx context.Context, room *domain.Room, expected uint64) error {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()
	return s.store.SaveRoom(ctx, room, expected)
}

// awaitCommit waits for the commit that beat this action. If it never shows
// up the room was changed elsewhere and is reloaded from the store.
func (s *Session) awaitCommit(ctx context.Context, commits <-chan struct{}) error {
	timer := time.NewTimer(s.storeTimeout)
	defer timer.Stop()

	select {
	case <-commits:
		return nil
	case <-timer.C:
		return s.resync(ctx)
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return domain.ErrRoomNotFound
	}
}

// resync replaces the committed room with the stored one if it is newer
func (s *Session) resync(ctx context.Context) error {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	room, err := loadRoom(ctx, s.store, s.id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if room.Version > s.room.Version {
		s.logger.Warn().Uint64("from", s.room.Version).Uint64("to", room.Version).Msg("room reloaded from store")
		s.room = room
		s.signalCommit()
	}
	return nil
}

// signalCommit wakes actions waiting for a commit (caller must hold lock)
func (s *Session) signalCommit() {
	close(s.commits)
	s.commits = make(chan struct{})
}

func (s *Session) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

// queueEvent adds an event to the broadcast queue. On a full queue events
// are dropped, except answers-ready, which first waits up to the store
// timeout.
func (s *Session) queueEvent(event *domain.RoomEvent) {
	select {
	case s.events <- event:
		return
	default:
	}

	if event.Type == domain.EventAnswersReady {
		timer := time.NewTimer(s.storeTimeout)
		defer timer.Stop()
		select {
		case s.events <- event:
			return
		case <-timer.C:
		case <-s.done:
		}
	}
	s.logger.Error().
		Str("type", string(event.Type)).
		Str("target", string(event.Target)).
		Msg("event queue full, dropping event")
}

// eventLoop delivers events in commit order
func (s *Session) eventLoop() {
	for {
		select {
		case <-s.done:
			return
		case event := <-s.events:
			s.deliver(event)
		}
	}
}

// deliver routes an event to its audience
func (s *Session) deliver(event *domain.RoomEvent) {
	if event.Type == domain.EventSystemMessage {
		s.recordMessage(event)
	}

	switch {
	case event.Target != "":
		s.notifier.SendToMember(event.Target, event)
	case event.Exclude != "":
		s.notifier.SendToRoomExcept(s.id, event.Exclude, event)
	default:
		s.notifier.SendToRoom(s.id, event)
	}
}

func (s *Session) recordMessage(event *domain.RoomEvent) {
	payload, ok := event.Payload.(domain.SystemMessagePayload)
	if !ok {
		return
	}
	ctx, cancel := s.storeContext(context.Background())
	defer cancel()
	if err := s.store.RecordMessage(ctx, s.id, payload.Text); err != nil {
		s.logger.Warn().Err(err).Msg("failed to record system message")
	}
}

// Close shuts down the session
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
	})
}
