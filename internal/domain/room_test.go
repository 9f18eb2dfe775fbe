package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseTransitions(t *testing.T) {
	cases := []struct {
		from, to RoomPhase
		want     bool
	}{
		{PhaseNew, PhaseChoosingCards, true},
		{PhaseNew, PhaseReadingCards, false},
		{PhaseChoosingCards, PhaseReadingCards, true},
		{PhaseChoosingCards, PhaseViewingWinner, false},
		{PhaseReadingCards, PhaseViewingWinner, true},
		{PhaseReadingCards, PhaseChoosingCards, false},
		{PhaseViewingWinner, PhaseChoosingCards, true},
		{PhaseViewingWinner, PhaseNew, false},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s to %s", tc.from, tc.to), func(t *testing.T) {
			assert.Equal(t, tc.want, tc.from.CanTransitionTo(tc.to))
		})
	}
}

func TestRoleTransitions(t *testing.T) {
	assert.True(t, RoleChoosing.CanTransitionTo(RoleIdle))
	assert.True(t, RoleCzar.CanTransitionTo(RoleInactive))
	assert.True(t, RoleInactive.CanTransitionTo(RoleIdle))
	assert.False(t, RoleInactive.CanTransitionTo(RoleCzar))
	assert.False(t, RoleChoosing.CanTransitionTo(RoleNextCzar))
	assert.False(t, RoleNextCzar.CanTransitionTo(RoleChoosing))

	m := NewMember("m1", "room1", "a", "cat", 0, time.Now())
	assert.Panics(t, func() { m.setRole(RoleNextCzar); m.setRole(RoleChoosing) })
}

func TestAddMember(t *testing.T) {
	env := newTestEnv(newTestCards(5, 1, 100), 1)
	room := NewRoom("room1", "t", "a", DefaultRoomSettings(), env.Now)

	res, err := room.AddMember("m0", "Ann", "cat", env)
	require.NoError(t, err)
	assert.True(t, res.Member.Admin)
	assert.Equal(t, RoleCzar, res.Member.Role)

	res, err = room.AddMember("m1", "Bob", "dog", env)
	require.NoError(t, err)
	assert.False(t, res.Member.Admin)
	assert.Equal(t, RoleIdle, res.Member.Role)

	_, err = room.AddMember("m1", "Bob", "dog", env)
	assert.ErrorIs(t, err, ErrAlreadyMember)
	_, err = room.AddMember("m2", "Cat", "cat", env)
	assert.ErrorIs(t, err, ErrIconTaken)
	_, err = room.AddMember("m2", "Cat", "unicorn", env)
	assert.ErrorIs(t, err, ErrInvalidIcon)
	assert.NotContains(t, room.AvailableIcons(), "cat")

	room.Settings.MaxMembers = 2
	_, err = room.AddMember("m3", "Dan", "", env)
	assert.ErrorIs(t, err, ErrRoomFull)
}

func TestConfigure(t *testing.T) {
	env := newTestEnv(newTestCards(5, 1, 100), 2)
	room := NewRoom("room1", "t", "a", DefaultRoomSettings(), env.Now)
	for i := 0; i < 3; i++ {
		_, err := room.AddMember(memberID(i), "p", Icons[i], env)
		require.NoError(t, err)
	}

	assert.ErrorIs(t, room.Configure("m1", testEdition, nil, true, false, env), ErrNotCzar)
	assert.ErrorIs(t, room.Configure("m0", "missing", nil, true, false, env), ErrInvalidEdition)
	assert.Equal(t, PhaseNew, room.Phase)
	assert.Empty(t, room.Allocation.Responses)

	require.NoError(t, room.Configure("m0", testEdition, []string{"extra", "bogus"}, true, true, env))
	assert.Equal(t, PhaseChoosingCards, room.Phase)
	assert.Equal(t, []string{"extra"}, room.Packs)
	assert.Equal(t, 1, room.Round.Number)
	require.NotNil(t, room.Prompt)
	assert.True(t, room.Allocation.Prompts[room.Prompt.ID])
	assert.Equal(t, RoleCzar, room.Members["m0"].Role)
	for i := 0; i < 3; i++ {
		assert.Len(t, room.Allocation.Hand(memberID(i)), 7)
	}
	assert.Equal(t, RoleChoosing, room.Members["m1"].Role)
	assert.Equal(t, RoleChoosing, room.Members["m2"].Role)

	assert.ErrorIs(t, room.Configure("m0", testEdition, nil, true, false, env), ErrInvalidTransition)
}

func TestConfigureFailsWithoutPrompts(t *testing.T) {
	env := newTestEnv(newTestCards(0, 1, 100), 3)
	room := NewRoom("room1", "t", "a", DefaultRoomSettings(), env.Now)
	_, err := room.AddMember("m0", "Ann", "cat", env)
	require.NoError(t, err)

	err = room.Configure("m0", testEdition, nil, true, false, env)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, PhaseNew, room.Phase)
	assert.Empty(t, room.Allocation.Responses)
}

func TestStartReading(t *testing.T) {
	env := newTestEnv(newTestCards(5, 1, 100), 4)
	room := newStartedRoom(t, 4, true, env)

	assert.ErrorIs(t, room.StartReading("m0", env), ErrNotEnoughGroups)
	submitFirst(t, room, "m1", env)
	assert.ErrorIs(t, room.StartReading("m1", env), ErrNotCzar)

	require.NoError(t, room.StartReading("m0", env))
	assert.Equal(t, PhaseReadingCards, room.Phase)
	assert.Equal(t, RoleIdle, room.Members["m2"].Role)
	assert.Equal(t, RoleIdle, room.Members["m3"].Role)
	assert.Zero(t, countRole(room, RoleChoosing))
	assert.True(t, room.Round.Finalized)

	_, err := room.Submit("m2", room.Allocation.Hand("m2")[:1], env)
	assert.ErrorIs(t, err, ErrNotChoosing)
}

func TestRevealAndSelect(t *testing.T) {
	env := newTestEnv(newTestCards(5, 1, 100), 5)
	room := newStartedRoom(t, 3, true, env)
	submitFirst(t, room, "m1", env)
	submitFirst(t, room, "m2", env)

	_, err := room.RevealGroup("m0", 0, env)
	assert.ErrorIs(t, err, ErrInvalidState)
	require.NoError(t, room.StartReading("m0", env))

	zero := 0
	assert.ErrorIs(t, room.SelectGroup("m0", &zero, env), ErrGroupNotRevealed)
	_, err = room.RevealGroup("m0", 5, env)
	assert.ErrorIs(t, err, ErrGroupNotFound)
	_, err = room.RevealGroup("m1", 0, env)
	assert.ErrorIs(t, err, ErrNotCzar)

	g, err := room.RevealGroup("m0", 0, env)
	require.NoError(t, err)
	assert.True(t, g.Revealed)
	for _, id := range g.Cards {
		assert.Equal(t, CardRevealed, room.Allocation.Responses[id].State)
	}

	require.NoError(t, room.SelectGroup("m0", &zero, env))
	require.NotNil(t, room.SelectedGroup)
	assert.Equal(t, 0, *room.SelectedGroup)
	require.NoError(t, room.SelectGroup("m0", nil, env))
	assert.Nil(t, room.SelectedGroup)
}

func readAll(t *testing.T, room *Room, env Env) {
	t.Helper()
	require.NoError(t, room.StartReading("m0", env))
	for i := range room.Round.Groups {
		_, err := room.RevealGroup("m0", i, env)
		require.NoError(t, err)
	}
}

func TestSelectWinner(t *testing.T) {
	env := newTestEnv(newTestCards(5, 1, 100), 6)
	room := newStartedRoom(t, 4, true, env)
	for _, id := range []MemberID{"m1", "m2", "m3"} {
		submitFirst(t, room, id, env)
	}
	readAll(t, room, env)

	res, err := room.SelectWinner("m0", 1, env)
	require.NoError(t, err)
	assert.Equal(t, PhaseViewingWinner, room.Phase)

	winner := room.Round.Groups[1].Member
	assert.Equal(t, winner, res.Winner)
	assert.Equal(t, 1, room.Members[winner].Score)
	for i, g := range room.Round.Groups {
		want := CardPlayed
		if i == 1 {
			want = CardWon
		}
		for _, id := range g.Cards {
			assert.Equal(t, want, room.Allocation.Responses[id].State)
		}
	}

	// Rotation picks the seat after the outgoing czar
	assert.Equal(t, MemberID("m1"), res.NextCzar)
	assert.Nil(t, room.Czar())
	assert.Equal(t, 1, countNextCzars(room))
	if winner == "m1" {
		assert.Equal(t, RoleWinnerAndNextCzar, room.Members["m1"].Role)
	} else {
		assert.Equal(t, RoleNextCzar, room.Members["m1"].Role)
		assert.Equal(t, RoleIdle, room.Members[winner].Role)
	}
	assert.Equal(t, RoleIdle, room.Members["m0"].Role)
}

func TestSelectWinnerWithoutRotation(t *testing.T) {
	env := newTestEnv(newTestCards(5, 1, 100), 7)
	room := newStartedRoom(t, 4, false, env)
	for _, id := range []MemberID{"m1", "m2", "m3"} {
		submitFirst(t, room, id, env)
	}
	readAll(t, room, env)

	res, err := room.SelectWinner("m0", 0, env)
	require.NoError(t, err)
	assert.Equal(t, res.Winner, res.NextCzar)
	assert.Equal(t, RoleWinnerAndNextCzar, room.Members[res.Winner].Role)
	assert.Equal(t, 1, countNextCzars(room))
}

func TestSelectWinnerGuards(t *testing.T) {
	env := newTestEnv(newTestCards(5, 1, 100), 8)
	room := newStartedRoom(t, 4, true, env)
	for _, id := range []MemberID{"m1", "m2", "m3"} {
		submitFirst(t, room, id, env)
	}
	_, err := room.SelectWinner("m0", 0, env)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, room.StartReading("m0", env))
	_, err = room.SelectWinner("m0", 0, env)
	assert.ErrorIs(t, err, ErrGroupNotRevealed)

	_, err = room.RevealGroup("m0", 0, env)
	require.NoError(t, err)
	_, err = room.RemoveMember(room.Round.Groups[0].Member, env)
	require.NoError(t, err)

	_, err = room.SelectWinner("m0", 0, env)
	assert.ErrorIs(t, err, ErrWinnerInactive)
	assert.Equal(t, PhaseReadingCards, room.Phase)
}

func TestNextRound(t *testing.T) {
	env := newTestEnv(newTestCards(5, 1, 100), 9)
	room := newStartedRoom(t, 3, true, env)
	submitFirst(t, room, "m1", env)
	submitFirst(t, room, "m2", env)
	readAll(t, room, env)
	win, err := room.SelectWinner("m0", 0, env)
	require.NoError(t, err)
	firstPrompt := room.Prompt.ID

	_, err = room.NextRound("m2", env)
	if win.NextCzar != "m2" {
		assert.ErrorIs(t, err, ErrNotNextCzar)
	}

	room = room.Clone()
	czar, err := room.NextRound(win.NextCzar, env)
	require.NoError(t, err)
	assert.Equal(t, win.NextCzar, czar)
	assert.Equal(t, PhaseChoosingCards, room.Phase)
	assert.Equal(t, 2, room.Round.Number)
	assert.Empty(t, room.Round.Groups)
	assert.NotEqual(t, firstPrompt, room.Prompt.ID)
	assert.Equal(t, RoleCzar, room.Members[czar].Role)
	assert.Equal(t, 1, countRole(room, RoleCzar))
	assert.Equal(t, 2, countRole(room, RoleChoosing))
	for i := 0; i < 3; i++ {
		assert.Len(t, room.Allocation.Hand(memberID(i)), 7)
	}
}

func TestRejoinKeepsHand(t *testing.T) {
	env := newTestEnv(newTestCards(5, 1, 100), 10)
	room := newStartedRoom(t, 3, true, env)
	hand := room.Allocation.Hand("m2")

	_, err := room.RemoveMember("m2", env)
	require.NoError(t, err)
	assert.Equal(t, RoleInactive, room.Members["m2"].Role)
	assert.Equal(t, 2, room.ActiveCount())

	res, err := room.AddMember("m2", "", "", env)
	require.NoError(t, err)
	assert.True(t, res.Rejoined)
	assert.Empty(t, res.Dealt)
	assert.Equal(t, RoleChoosing, room.Members["m2"].Role)
	assert.Equal(t, hand, room.Allocation.Hand("m2"))
}

func TestLastMemberLeaving(t *testing.T) {
	env := newTestEnv(newTestCards(5, 1, 100), 11)
	room := newStartedRoom(t, 2, true, env)

	res, err := room.RemoveMember("m1", env)
	require.NoError(t, err)
	assert.False(t, res.Empty)

	res, err = room.RemoveMember("m0", env)
	require.NoError(t, err)
	assert.True(t, res.Empty)
	assert.Len(t, room.Members, 2)
}

func TestAdminPassesOnLeave(t *testing.T) {
	env := newTestEnv(newTestCards(5, 1, 100), 12)
	room := NewRoom("room1", "t", "a", DefaultRoomSettings(), env.Now)
	for i := 0; i < 3; i++ {
		_, err := room.AddMember(memberID(i), "p", Icons[i], env)
		require.NoError(t, err)
	}

	res, err := room.RemoveMember("m0", env)
	require.NoError(t, err)
	assert.Equal(t, MemberID("m1"), res.NewAdmin)
	assert.Equal(t, MemberID("m1"), res.Replacement)
	assert.True(t, room.Members["m1"].Admin)
	assert.Equal(t, RoleCzar, room.Members["m1"].Role)
	assert.Equal(t, PhaseNew, room.Phase)
}

func TestCloneIsIndependent(t *testing.T) {
	env := newTestEnv(newTestCards(5, 1, 100), 13)
	room := newStartedRoom(t, 3, true, env)
	clone := room.Clone()

	submitFirst(t, clone, "m1", env)
	clone.Members["m2"].Score = 4

	assert.Empty(t, room.Round.Groups)
	assert.Equal(t, RoleChoosing, room.Members["m1"].Role)
	assert.Zero(t, room.Members["m2"].Score)
	assert.Len(t, room.Allocation.Hand("m1"), 7)
}

func TestViewHidesOtherHands(t *testing.T) {
	env := newTestEnv(newTestCards(5, 1, 100), 14)
	room := newStartedRoom(t, 3, true, env)
	submitFirst(t, room, "m1", env)
	submitFirst(t, room, "m2", env)

	view := room.ViewFor("m1", env.Cards)
	assert.Len(t, view.Hand, 7)
	require.Len(t, view.Groups, 1)
	assert.True(t, view.Groups[0].Mine)
	assert.Equal(t, 2, view.Submitted)

	require.NoError(t, room.StartReading("m0", env))
	view = room.ViewFor("m0", env.Cards)
	require.Len(t, view.Groups, 2)
	for _, g := range view.Groups {
		assert.Empty(t, g.Cards)
	}
}
