package domain

// GroupView is a submission as one member may see it
type GroupView struct {
	Index    int    `json:"index"`
	Revealed bool   `json:"revealed"`
	Cards    []Card `json:"cards,omitempty"`
	Mine     bool   `json:"mine,omitempty"`
}

// RoomView is the room as one member may see it. Hands are private and
// submissions stay anonymous until the winner is chosen.
type RoomView struct {
	ID            RoomID       `json:"id"`
	Phase         RoomPhase    `json:"phase"`
	Edition       string       `json:"edition,omitempty"`
	Packs         []string     `json:"packs"`
	RotateCzar    bool         `json:"rotateCzar"`
	Open          bool         `json:"open"`
	Round         int          `json:"round"`
	Prompt        *PromptCard  `json:"prompt,omitempty"`
	SelectedGroup *int         `json:"selectedGroup,omitempty"`
	CzarVacant    bool         `json:"czarVacant"`
	Members       []MemberInfo `json:"members"`
	Submitted     int          `json:"submitted"`
	Groups        []GroupView  `json:"groups,omitempty"`
	Winner        MemberID     `json:"winner,omitempty"`
	Hand          []Card       `json:"hand"`
	Icons         []string     `json:"icons"`
	You           *MemberInfo  `json:"you,omitempty"`
}

// ViewFor builds the snapshot sent to a member on join or reconnect
func (r *Room) ViewFor(id MemberID, cards *CardSets) RoomView {
	view := RoomView{
		ID:         r.ID,
		Phase:      r.Phase,
		Edition:    r.Edition,
		Packs:      r.Packs,
		RotateCzar: r.RotateCzar,
		Open:       r.Open,
		Round:      r.Round.Number,
		Prompt:     r.Prompt,
		CzarVacant: r.CzarVacant,
		Members:    r.MemberInfos(),
		Submitted:  r.CompleteGroups(),
		Hand:       r.Hand(id, cards),
		Icons:      r.AvailableIcons(),
	}
	if r.SelectedGroup != nil {
		g := *r.SelectedGroup
		view.SelectedGroup = &g
	}
	if m, ok := r.Members[id]; ok {
		info := m.ToInfo()
		view.You = &info
	}
	if r.Phase == PhaseViewingWinner {
		view.Winner = r.Round.Winner
	}

	switch r.Phase {
	case PhaseChoosingCards:
		if g := r.Round.GroupOf(id); g != nil {
			view.Groups = []GroupView{{Index: -1, Cards: cardsOf(g.Cards, cards), Mine: true}}
		}
	case PhaseReadingCards, PhaseViewingWinner:
		for _, g := range r.Round.Groups {
			gv := GroupView{Index: g.Index, Revealed: g.Revealed}
			if g.Revealed || g.Member == id {
				gv.Cards = cardsOf(g.Cards, cards)
			}
			view.Groups = append(view.Groups, gv)
		}
	}
	return view
}

// MemberInfos lists the public member state in seat order
func (r *Room) MemberInfos() []MemberInfo {
	seated := r.Seated()
	infos := make([]MemberInfo, 0, len(seated))
	for _, m := range seated {
		if m.IsActive() {
			infos = append(infos, m.ToInfo())
		}
	}
	return infos
}

// RoomSummary is the entry shown in the open room listing
type RoomSummary struct {
	ID      RoomID    `json:"id"`
	Phase   RoomPhase `json:"phase"`
	Edition string    `json:"edition,omitempty"`
	Members int       `json:"members"`
	Round   int       `json:"round"`
}

// Summary returns the listing entry for the room
func (r *Room) Summary() RoomSummary {
	return RoomSummary{
		ID:      r.ID,
		Phase:   r.Phase,
		Edition: r.Edition,
		Members: r.ActiveCount(),
		Round:   r.Round.Number,
	}
}

func cardsOf(ids []CardID, cards *CardSets) []Card {
	out := make([]Card, 0, len(ids))
	for _, id := range ids {
		if c, ok := cards.Responses[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// CardsOf resolves response card ids to cards
func (c *CardSets) CardsOf(ids []CardID) []Card {
	return cardsOf(ids, c)
}
