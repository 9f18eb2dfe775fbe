package domain

import (
	"maps"
	"math/rand/v2"
	"slices"
)

// CardAllocation records where a drawn response card is
type CardAllocation struct {
	Owner MemberID  `json:"owner"`
	State CardState `json:"state"`
	Slot  int       `json:"slot"` // Position within a submission
}

// Allocation is the per-room record of every card drawn into the room.
// A card present here is never drawn again for the room.
type Allocation struct {
	Prompts   map[CardID]bool            `json:"prompts"`
	Responses map[CardID]*CardAllocation `json:"responses"`
}

// NewAllocation creates an empty allocation record
func NewAllocation() *Allocation {
	return &Allocation{
		Prompts:   make(map[CardID]bool),
		Responses: make(map[CardID]*CardAllocation),
	}
}

// Clone returns a deep copy
func (a *Allocation) Clone() *Allocation {
	out := &Allocation{
		Prompts:   maps.Clone(a.Prompts),
		Responses: make(map[CardID]*CardAllocation, len(a.Responses)),
	}
	for id, ca := range a.Responses {
		c := *ca
		out.Responses[id] = &c
	}
	return out
}

// Used reports whether the card was already drawn into the room
func (a *Allocation) Used(color Color, id CardID) bool {
	if color == ColorPrompt {
		return a.Prompts[id]
	}
	_, ok := a.Responses[id]
	return ok
}

// Available returns the eligible cards not yet drawn
func (a *Allocation) Available(sets *CardSets, color Color, edition string, packs []string) []CardID {
	eligible := sets.Eligible(color, edition, packs)
	free := eligible[:0]
	for _, id := range eligible {
		if !a.Used(color, id) {
			free = append(free, id)
		}
	}
	return free
}

// Draw picks count unused cards of the color uniformly at random. Nothing is
// recorded; callers record the result with Record* on the same value.
func (a *Allocation) Draw(sets *CardSets, color Color, edition string, packs []string, count int, rng *rand.Rand) ([]CardID, error) {
	if count <= 0 {
		return nil, nil
	}

	free := a.Available(sets, color, edition, packs)
	if len(free) < count {
		return nil, ErrExhausted
	}

	// Partial Fisher-Yates over the candidates
	for i := 0; i < count; i++ {
		j := i + rng.IntN(len(free)-i)
		free[i], free[j] = free[j], free[i]
	}
	return slices.Clone(free[:count]), nil
}

// RecordPrompt marks a prompt card as used
func (a *Allocation) RecordPrompt(id CardID) {
	a.Prompts[id] = true
}

// RecordHand deals response cards to a member
func (a *Allocation) RecordHand(owner MemberID, ids []CardID) {
	for _, id := range ids {
		a.Responses[id] = &CardAllocation{Owner: owner, State: CardInHand}
	}
}

// RecordPlayed marks response cards drawn outside any hand as out of play
func (a *Allocation) RecordPlayed(ids []CardID) {
	for _, id := range ids {
		a.Responses[id] = &CardAllocation{State: CardPlayed}
	}
}

// Hand returns the cards a member currently holds, in id order
func (a *Allocation) Hand(owner MemberID) []CardID {
	return a.cardsIn(owner, CardInHand)
}

// Holds reports whether the card is in the member's hand
func (a *Allocation) Holds(owner MemberID, id CardID) bool {
	ca, ok := a.Responses[id]
	return ok && ca.Owner == owner && ca.State == CardInHand
}

// SetState moves a card to a new state
func (a *Allocation) SetState(id CardID, state CardState) {
	if ca, ok := a.Responses[id]; ok {
		ca.State = state
	}
}

// Count returns how many cards are in the given state
func (a *Allocation) Count(state CardState) int {
	n := 0
	for _, ca := range a.Responses {
		if ca.State == state {
			n++
		}
	}
	return n
}

func (a *Allocation) cardsIn(owner MemberID, state CardState) []CardID {
	var ids []CardID
	for id, ca := range a.Responses {
		if ca.Owner == owner && ca.State == state {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}
