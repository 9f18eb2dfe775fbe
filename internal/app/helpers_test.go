package app

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"czarhouse/internal/domain"
)

const (
	testEdition = "base"
	eventFlush  = domain.EventType("TEST_FLUSH")
)

func newTestCards() *domain.CardSets {
	cards := domain.NewCardSets()
	cards.Editions[testEdition] = "Base"
	for i := 1; i <= 30; i++ {
		cards.AddPrompt(domain.PromptCard{Card: domain.Card{ID: domain.CardID(i), Text: fmt.Sprintf("prompt %d", i)}, Pick: 1}, []string{testEdition}, "")
	}
	for i := 1; i <= 400; i++ {
		cards.AddResponse(domain.Card{ID: domain.CardID(i), Text: fmt.Sprintf("response %d", i)}, []string{testEdition}, "")
	}
	return cards
}

func newTestHub(t *testing.T, store Store, storeTimeout time.Duration) (*Hub, *MockNotifier) {
	t.Helper()
	var seed atomic.Uint64
	notifier := newMockNotifier()

	hub, err := NewHub(context.Background(), HubConfig{
		Settings:     domain.DefaultRoomSettings(),
		StoreTimeout: storeTimeout,
		NewRand: func() *rand.Rand {
			s := seed.Add(1)
			return rand.New(rand.NewPCG(s, s*31))
		},
	}, store, notifier, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(hub.Close)
	return hub, notifier
}

// joinMembers creates a room and joins n named members; m0 uses the admin
// token.
func joinMembers(t *testing.T, hub *Hub, n int) *Session {
	t.Helper()
	ctx := context.Background()
	session, err := hub.CreateRoom(ctx)
	require.NoError(t, err)
	room := session.Room()

	for i := 0; i < n; i++ {
		token := room.Token
		if i == 0 {
			token = room.AdminToken
		}
		_, err := session.Join(ctx, member(i), token, fmt.Sprintf("player %d", i), domain.Icons[i])
		require.NoError(t, err)
	}
	return session
}

func startGame(t *testing.T, hub *Hub, n int) *Session {
	t.Helper()
	session := joinMembers(t, hub, n)
	require.NoError(t, session.Configure(context.Background(), member(0), ConfigureRequest{Edition: testEdition, RotateCzar: true}))
	return session
}

func member(i int) domain.MemberID {
	return domain.MemberID(fmt.Sprintf("m%d", i))
}

// flush waits until every event queued so far has been delivered
func flush(t *testing.T, session *Session, notifier *MockNotifier) {
	t.Helper()
	marker := domain.NewEvent(eventFlush, session.ID(), nil)
	session.queueEvent(marker)
	require.Eventually(t, func() bool {
		for _, d := range notifier.ofType(eventFlush) {
			if d.event == marker {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
}

func submitAny(ctx context.Context, session *Session, id domain.MemberID) error {
	hand := session.View(id).Hand
	if len(hand) == 0 {
		return fmt.Errorf("%s has no cards", id)
	}
	_, err := session.Submit(ctx, id, []domain.CardID{hand[0].ID})
	return err
}
