package app

import "czarhouse/internal/domain"

func systemMessage(room *domain.Room, text string) *domain.RoomEvent {
	return domain.NewEvent(domain.EventSystemMessage, room.ID, domain.SystemMessagePayload{Text: text})
}

func handEvent(room *domain.Room, memberID domain.MemberID, cards *domain.CardSets, dealt []domain.CardID) *domain.RoomEvent {
	return domain.NewMemberEvent(domain.EventHandDealt, room.ID, memberID, domain.HandPayload{
		Hand:  room.Hand(memberID, cards),
		Dealt: dealt,
	})
}

// roundEvents announces a fresh round and sends every player their hand
func roundEvents(room *domain.Room, cards *domain.CardSets) []*domain.RoomEvent {
	var czarID domain.MemberID
	if czar := room.Czar(); czar != nil {
		czarID = czar.ID
	}

	events := []*domain.RoomEvent{
		domain.NewEvent(domain.EventRoundStarted, room.ID, domain.RoundStartedPayload{
			Round:   room.Round.Number,
			Prompt:  *room.Prompt,
			CzarID:  czarID,
			Members: room.MemberInfos(),
		}),
	}
	for _, m := range room.Seated() {
		if m.IsEligible() {
			events = append(events, handEvent(room, m.ID, cards, nil))
		}
	}
	return events
}

// answersReady tells the czar every answer is in. With the seat vacant
// there is nobody to tell.
func answersReady(room *domain.Room) []*domain.RoomEvent {
	czar := room.Czar()
	if czar == nil {
		return nil
	}
	return []*domain.RoomEvent{
		domain.NewMemberEvent(domain.EventAnswersReady, room.ID, czar.ID, domain.AnswersReadyPayload{
			Submitted: room.CompleteGroups(),
		}),
	}
}

func czarReplaced(room *domain.Room, departed, czar domain.MemberID) []*domain.RoomEvent {
	events := []*domain.RoomEvent{
		domain.NewEvent(domain.EventCzarReplaced, room.ID, domain.CzarReplacedPayload{
			Departed: departed,
			CzarID:   czar,
			Vacant:   czar == "",
		}),
	}
	if m, ok := room.Members[czar]; ok {
		events = append(events, systemMessage(room, m.Name+" is now the czar"))
	} else {
		events = append(events, systemMessage(room, "Waiting for another player to take over as czar"))
	}
	return events
}

// seatEvents covers what happens when a member becomes able to play
func seatEvents(room *domain.Room, res domain.JoinResult, env domain.Env) []*domain.RoomEvent {
	if res.Replacement != "" {
		events := roundEvents(room, env.Cards)
		return append(events, czarReplaced(room, "", res.Replacement)...)
	}

	var events []*domain.RoomEvent
	if len(res.Dealt) > 0 {
		events = append(events, handEvent(room, res.Member.ID, env.Cards, res.Dealt))
	}
	if room.Phase.Started() {
		events = append(events, domain.NewEvent(domain.EventMemberState, room.ID, domain.MemberStatePayload{
			MemberID:  res.Member.ID,
			Role:      res.Member.Role,
			Submitted: room.CompleteGroups(),
			Expected:  room.EligibleResponders(),
		}))
	}
	return events
}

func leaveEvents(room *domain.Room, res domain.LeaveResult, env domain.Env) []*domain.RoomEvent {
	events := []*domain.RoomEvent{
		domain.NewEvent(domain.EventMemberLeft, room.ID, domain.MemberLeftPayload{
			MemberID: res.Member.ID,
			NewAdmin: res.NewAdmin,
		}),
	}
	if res.Empty {
		return events
	}
	if res.Member.Name != "" {
		events = append(events, systemMessage(room, res.Member.Name+" left the room"))
	}

	switch {
	case res.WasCzar && !room.Phase.Started():
		if czar, ok := room.Members[res.Replacement]; ok {
			events = append(events, domain.NewEvent(domain.EventMemberUpdated, room.ID, domain.MemberPayload{Member: czar.ToInfo()}))
		}
	case res.WasCzar && res.Replacement != "":
		events = append(events, roundEvents(room, env.Cards)...)
		events = append(events, czarReplaced(room, res.Member.ID, res.Replacement)...)
	case res.WasCzar:
		events = append(events, czarReplaced(room, res.Member.ID, "")...)
	case res.AnswersReady:
		events = append(events, answersReady(room)...)
	}

	if admin, ok := room.Members[res.NewAdmin]; ok && admin.ID != res.Replacement {
		events = append(events, domain.NewEvent(domain.EventMemberUpdated, room.ID, domain.MemberPayload{Member: admin.ToInfo()}))
	}
	return events
}
