package app

import (
	"context"

	"czarhouse/internal/domain"
)

// Store is the durable copy of record for rooms and members.
//
// SaveRoom is the commit point of every action: it writes the room and all
// of its members only if the stored version still equals expected, and
// returns domain.ErrStaleVersion otherwise. Other failures wrap
// domain.ErrStorage.
type Store interface {
	LoadRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	SaveRoom(ctx context.Context, room *domain.Room, expected uint64) error
	DeleteRoom(ctx context.Context, id domain.RoomID) error
	LoadMembers(ctx context.Context, id domain.RoomID) ([]*domain.Member, error)
	SaveMember(ctx context.Context, member *domain.Member) error
	LoadCardSets(ctx context.Context) (*domain.CardSets, error)
	RecordMessage(ctx context.Context, roomID domain.RoomID, text string) error
	Close() error
}
