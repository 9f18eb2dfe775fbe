package domain

import (
	"math/rand/v2"
	"slices"
)

// SubmissionGroup is one responder's cards for the current prompt
type SubmissionGroup struct {
	Member   MemberID `json:"member"`
	Cards    []CardID `json:"cards"`
	Revealed bool     `json:"revealed"`
	Index    int      `json:"index"`
	Key      uint64   `json:"key"` // Random display order before reading
}

// Round holds the per-round submission state
type Round struct {
	Number         int                `json:"number"`
	Groups         []*SubmissionGroup `json:"groups"`
	Finalized      bool               `json:"finalized"`
	AnswersReady   bool               `json:"answersReady"` // Czar was told reading may begin
	Winner         MemberID           `json:"winner,omitempty"`
	WinningIndex   int                `json:"winningIndex"`
	PreviousCzarID MemberID           `json:"previousCzarId,omitempty"`
}

// NewRound creates an empty round
func NewRound(number int) *Round {
	return &Round{Number: number, WinningIndex: -1}
}

// Clone returns a deep copy
func (r *Round) Clone() *Round {
	out := *r
	out.Groups = make([]*SubmissionGroup, len(r.Groups))
	for i, g := range r.Groups {
		c := *g
		c.Cards = slices.Clone(g.Cards)
		out.Groups[i] = &c
	}
	return &out
}

// GroupOf returns the member's group, if any
func (r *Round) GroupOf(member MemberID) *SubmissionGroup {
	for _, g := range r.Groups {
		if g.Member == member {
			return g
		}
	}
	return nil
}

// Group returns the group at a finalized index
func (r *Round) Group(index int) (*SubmissionGroup, error) {
	if !r.Finalized || index < 0 || index >= len(r.Groups) {
		return nil, ErrGroupNotFound
	}
	return r.Groups[index], nil
}

// add inserts a group at a random position among the existing ones, so the
// order never reflects who answered first.
func (r *Round) add(member MemberID, cards []CardID, rng *rand.Rand) *SubmissionGroup {
	g := &SubmissionGroup{Member: member, Cards: cards, Index: -1, Key: rng.Uint64()}
	i, _ := slices.BinarySearchFunc(r.Groups, g.Key, func(e *SubmissionGroup, k uint64) int {
		switch {
		case e.Key < k:
			return -1
		case e.Key > k:
			return 1
		}
		return 0
	})
	r.Groups = slices.Insert(r.Groups, i, g)
	return g
}

// remove drops the member's group and returns its cards
func (r *Round) remove(member MemberID) []CardID {
	for i, g := range r.Groups {
		if g.Member == member {
			r.Groups = slices.Delete(r.Groups, i, i+1)
			return g.Cards
		}
	}
	return nil
}

// finalize shuffles the groups into their reading order
func (r *Round) finalize(rng *rand.Rand) {
	rng.Shuffle(len(r.Groups), func(i, j int) {
		r.Groups[i], r.Groups[j] = r.Groups[j], r.Groups[i]
	})
	for i, g := range r.Groups {
		g.Index = i
	}
	r.Finalized = true
}

// SubmitResult describes the effects of a submission
type SubmitResult struct {
	Submitted    []CardID
	Replacement  []CardID
	Exhausted    bool // No replacement could be dealt
	AnswersReady bool // First time every eligible responder has submitted
}

// Submit records a member's answer for the current prompt. The member must be
// choosing, must submit exactly Prompt.Pick distinct cards and must hold every
// one of them. The replacement draw is best effort: running out of cards does
// not undo the submission.
func (r *Room) Submit(memberID MemberID, cards []CardID, env Env) (SubmitResult, error) {
	member, err := r.GetMember(memberID)
	if err != nil {
		return SubmitResult{}, err
	}
	if r.Phase != PhaseChoosingCards || member.Role != RoleChoosing || r.Prompt == nil {
		return SubmitResult{}, ErrNotChoosing
	}

	if len(cards) != r.Prompt.Pick || hasDuplicates(cards) {
		return SubmitResult{}, ErrCardCountMismatch
	}
	for _, id := range cards {
		if !r.Allocation.Holds(memberID, id) {
			return SubmitResult{}, ErrCardNotOwned
		}
	}

	submitted := slices.Clone(cards)
	for i, id := range submitted {
		r.Allocation.SetState(id, CardSelected)
		r.Allocation.Responses[id].Slot = i
	}
	r.Round.add(memberID, submitted, env.Rand)

	result := SubmitResult{Submitted: submitted}
	replacement, err := r.Allocation.Draw(env.Cards, ColorResponse, r.Edition, r.Packs, len(cards), env.Rand)
	if err != nil {
		result.Exhausted = true
	} else {
		r.Allocation.RecordHand(memberID, replacement)
		result.Replacement = replacement
	}

	member.setRole(RoleIdle)
	result.AnswersReady = r.checkAnswersReady()
	return result, nil
}

// CompleteGroups counts submissions from members still in the room
func (r *Room) CompleteGroups() int {
	n := 0
	for _, g := range r.Round.Groups {
		if m, ok := r.Members[g.Member]; ok && m.IsActive() {
			n++
		}
	}
	return n
}

// EligibleResponders counts members expected to answer this round
func (r *Room) EligibleResponders() int {
	n := 0
	for _, m := range r.Members {
		if m.IsEligible() && !m.Role.IsCzarLike() {
			n++
		}
	}
	return n
}

// checkAnswersReady flips the round's notification flag the first time the
// submission threshold is met and reports whether it did.
func (r *Room) checkAnswersReady() bool {
	if r.Phase != PhaseChoosingCards || r.Round.AnswersReady {
		return false
	}
	eligible := r.EligibleResponders()
	if eligible == 0 || r.CompleteGroups() < eligible {
		return false
	}
	r.Round.AnswersReady = true
	return true
}

func hasDuplicates(ids []CardID) bool {
	seen := make(map[CardID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}
