package postgres

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"czarhouse/internal/cards"
	"czarhouse/internal/domain"
)

// newTestStore migrates a throwaway schema and connects to it. Tests are
// skipped unless POSTGRES_TEST_URL is set.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("POSTGRES_TEST_URL")
	if url == "" {
		t.Skip("POSTGRES_TEST_URL not set")
	}
	ctx := context.Background()

	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	admin, err := pgx.Connect(ctx, url)
	require.NoError(t, err)
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
		_ = admin.Close(context.Background())
	})

	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	schemaURL := url + sep + "search_path=" + schema

	require.NoError(t, Migrate(ctx, schemaURL, zerolog.Nop()))
	store, err := New(ctx, schemaURL, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newRoom(t *testing.T) *domain.Room {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	room := domain.NewRoom(domain.RoomID(uuid.NewString()[:6]), "token123", uuid.NewString(), domain.DefaultRoomSettings(), now)
	for i := 0; i < 2; i++ {
		id := domain.MemberID(fmt.Sprintf("m%d", i))
		m := domain.NewMember(id, room.ID, fmt.Sprintf("player %d", i), domain.Icons[i], i, now)
		room.Members[id] = m
	}
	room.Members["m0"].Admin = true
	room.Allocation.RecordHand("m0", []domain.CardID{1001, 1002})
	return room
}

func TestSaveAndLoadRoom(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	room := newRoom(t)

	require.NoError(t, store.SaveRoom(ctx, room, 0))

	loaded, err := store.LoadRoom(ctx, room.ID)
	require.NoError(t, err)
	members, err := store.LoadMembers(ctx, room.ID)
	require.NoError(t, err)
	for _, m := range members {
		loaded.Members[m.ID] = m
	}

	if diff := cmp.Diff(room, loaded); diff != "" {
		t.Errorf("room mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveRoomVersionCheck(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	room := newRoom(t)

	require.NoError(t, store.SaveRoom(ctx, room, 0))
	assert.ErrorIs(t, store.SaveRoom(ctx, room, 0), domain.ErrStaleVersion)

	// The stored room is still at version 0
	room.Version = 1
	require.NoError(t, store.SaveRoom(ctx, room, 0))
	room.Version = 2
	assert.ErrorIs(t, store.SaveRoom(ctx, room, 0), domain.ErrStaleVersion)
	require.NoError(t, store.SaveRoom(ctx, room, 1))

	loaded, err := store.LoadRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), loaded.Version)
}

func TestLoadRoomNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.LoadRoom(context.Background(), "NOPE42")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestSaveMember(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	room := newRoom(t)
	require.NoError(t, store.SaveRoom(ctx, room, 0))

	m := *room.Members["m1"]
	m.Connected = true
	m.LastSeen = m.LastSeen.Add(time.Minute)
	require.NoError(t, store.SaveMember(ctx, &m))

	members, err := store.LoadMembers(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, domain.MemberID("m1"), members[1].ID)
	assert.True(t, members[1].Connected)
	assert.True(t, members[1].LastSeen.Equal(m.LastSeen))

	m.RoomID = "GONE00"
	assert.ErrorIs(t, store.SaveMember(ctx, &m), domain.ErrRoomNotFound)
}

func TestDeleteRoomCascades(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	room := newRoom(t)
	require.NoError(t, store.SaveRoom(ctx, room, 0))
	require.NoError(t, store.RecordMessage(ctx, room.ID, "player 0 joined the room"))

	messages, err := store.Messages(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "player 0 joined the room", messages[0].Text)

	require.NoError(t, store.DeleteRoom(ctx, room.ID))
	_, err = store.LoadRoom(ctx, room.ID)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	members, err := store.LoadMembers(ctx, room.ID)
	require.NoError(t, err)
	assert.Empty(t, members)
	messages, err = store.Messages(ctx, room.ID)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestSeedAndLoadCards(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	want, err := cards.Default()
	require.NoError(t, err)

	require.NoError(t, store.SeedCards(ctx, want))
	// Seeding twice keeps the first catalog
	require.NoError(t, store.SeedCards(ctx, domain.NewCardSets()))

	got, err := store.LoadCardSets(ctx)
	require.NoError(t, err)
	assert.Equal(t, want.Editions, got.Editions)
	assert.Equal(t, want.Packs, got.Packs)
	assert.Equal(t, want.Prompts, got.Prompts)
	assert.Equal(t, want.Responses, got.Responses)

	for id := range want.Prompts {
		assert.ElementsMatch(t, want.EditionsOf(domain.ColorPrompt, id), got.EditionsOf(domain.ColorPrompt, id))
		assert.Equal(t, want.PackOf(domain.ColorPrompt, id), got.PackOf(domain.ColorPrompt, id))
	}
	for id := range want.Responses {
		assert.ElementsMatch(t, want.EditionsOf(domain.ColorResponse, id), got.EditionsOf(domain.ColorResponse, id))
	}
}
