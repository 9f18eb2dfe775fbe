package domain

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testEdition = "base"

// newTestCards builds a catalog with prompts numbered from 1 and responses
// numbered from 1000, all in the base edition.
func newTestCards(prompts, pick, responses int) *CardSets {
	cards := NewCardSets()
	cards.Editions[testEdition] = "Base Game"
	cards.Packs["extra"] = "Extra Pack"
	for i := 1; i <= prompts; i++ {
		cards.AddPrompt(PromptCard{Card: Card{ID: CardID(i), Text: fmt.Sprintf("prompt %d", i)}, Pick: pick}, []string{testEdition}, "")
	}
	for i := 0; i < responses; i++ {
		id := CardID(1000 + i)
		cards.AddResponse(Card{ID: id, Text: fmt.Sprintf("response %d", i)}, []string{testEdition}, "")
	}
	return cards
}

func newTestEnv(cards *CardSets, seed uint64) Env {
	return Env{Cards: cards, Rand: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), Now: time.Now()}
}

func memberID(i int) MemberID {
	return MemberID(fmt.Sprintf("m%d", i))
}

// newStartedRoom creates a room with n named members and configures it with
// m0 as czar. Every other member is choosing when it returns.
func newStartedRoom(t *testing.T, n int, rotate bool, env Env) *Room {
	t.Helper()
	room := NewRoom("room1", "token", "admin", DefaultRoomSettings(), env.Now)
	for i := 0; i < n; i++ {
		_, err := room.AddMember(memberID(i), fmt.Sprintf("player %d", i), Icons[i], env)
		require.NoError(t, err)
	}
	require.NoError(t, room.Configure(memberID(0), testEdition, nil, rotate, false, env))
	return room
}

func countRole(room *Room, role MemberRole) int {
	n := 0
	for _, m := range room.Members {
		if m.Role == role {
			n++
		}
	}
	return n
}

func countNextCzars(room *Room) int {
	n := 0
	for _, m := range room.Members {
		if m.Role.IsNextCzar() {
			n++
		}
	}
	return n
}

// submitFirst submits the first Pick cards of a member's hand
func submitFirst(t *testing.T, room *Room, id MemberID, env Env) SubmitResult {
	t.Helper()
	hand := room.Allocation.Hand(id)
	require.GreaterOrEqual(t, len(hand), room.Prompt.Pick)
	res, err := room.Submit(id, hand[:room.Prompt.Pick], env)
	require.NoError(t, err)
	return res
}
