package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"czarhouse/internal/domain"
)

func newRoom() *domain.Room {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	room := domain.NewRoom("ABC123", "token", "admin", domain.DefaultRoomSettings(), now)
	room.Members["m1"] = domain.NewMember("m1", room.ID, "Ann", "cat", 0, now)
	return room
}

func TestSaveRoomChecksVersion(t *testing.T) {
	ctx := context.Background()
	store := New(domain.NewCardSets())
	room := newRoom()

	require.NoError(t, store.SaveRoom(ctx, room, 0))
	require.NoError(t, store.SaveRoom(ctx, room, 0))

	room.Version = 1
	require.NoError(t, store.SaveRoom(ctx, room, 0))
	assert.ErrorIs(t, store.SaveRoom(ctx, room, 0), domain.ErrStaleVersion)

	room.Version = 2
	require.NoError(t, store.SaveRoom(ctx, room, 1))

	other := newRoom()
	other.ID = "ZZZ999"
	assert.ErrorIs(t, store.SaveRoom(ctx, other, 3), domain.ErrStaleVersion)
}

func TestRoomRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := New(domain.NewCardSets())
	room := newRoom()
	room.Allocation.RecordHand("m1", []domain.CardID{1, 2})
	require.NoError(t, store.SaveRoom(ctx, room, 0))

	// Stored copies are detached from the caller's room
	room.Members["m1"].Score = 9
	room.Allocation.SetState(1, domain.CardPlayed)

	loaded, err := store.LoadRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.Members)
	assert.Equal(t, domain.CardInHand, loaded.Allocation.Responses[1].State)

	members, err := store.LoadMembers(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	want := *domain.NewMember("m1", room.ID, "Ann", "cat", 0, room.CreatedAt)
	if diff := cmp.Diff(want, *members[0]); diff != "" {
		t.Errorf("member mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveMemberAndDelete(t *testing.T) {
	ctx := context.Background()
	store := New(domain.NewCardSets())
	room := newRoom()

	m := *room.Members["m1"]
	assert.ErrorIs(t, store.SaveMember(ctx, &m), domain.ErrRoomNotFound)

	require.NoError(t, store.SaveRoom(ctx, room, 0))
	m.Connected = false
	require.NoError(t, store.SaveMember(ctx, &m))
	members, err := store.LoadMembers(ctx, room.ID)
	require.NoError(t, err)
	assert.False(t, members[0].Connected)

	require.NoError(t, store.RecordMessage(ctx, room.ID, "Ann joined the room"))
	assert.Len(t, store.Messages(room.ID), 1)

	require.NoError(t, store.DeleteRoom(ctx, room.ID))
	_, err = store.LoadRoom(ctx, room.ID)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	assert.Empty(t, store.Messages(room.ID))
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := New(domain.NewCardSets())

	assert.ErrorIs(t, store.SaveRoom(ctx, newRoom(), 0), domain.ErrStorage)
	_, err := store.LoadCardSets(ctx)
	assert.ErrorIs(t, err, domain.ErrStorage)
}
