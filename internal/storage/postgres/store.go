// Package postgres stores rooms, members, system messages and the card
// catalog in PostgreSQL.
//
// A room is a JSONB document guarded by a version column. Members live in
// their own table so presence updates do not rewrite the room.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"czarhouse/internal/domain"
)

// PostgreSQL error codes
const (
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
)

// Store is a pgx pool backed store
type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// New connects to the database
func New(ctx context.Context, url string, logger zerolog.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{pool: pool, logger: logger}, nil
}

// LoadRoom returns the stored room without its members
func (s *Store) LoadRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	var state []byte
	err := s.pool.QueryRow(ctx, `SELECT state FROM rooms WHERE id = $1`, string(id)).Scan(&state)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, wrap("load room", err)
	}

	room := &domain.Room{}
	if err := json.Unmarshal(state, room); err != nil {
		return nil, fmt.Errorf("%w: decode room %s: %v", domain.ErrStorage, id, err)
	}
	room.Members = make(map[domain.MemberID]*domain.Member)
	return room, nil
}

// SaveRoom writes the room and its members in one transaction if the stored
// version equals expected. Version zero means the room must not exist yet.
func (s *Store) SaveRoom(ctx context.Context, room *domain.Room, expected uint64) error {
	state, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("%w: encode room %s: %v", domain.ErrStorage, room.ID, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return wrap("begin", err)
	}
	defer tx.Rollback(ctx)

	var tag pgconn.CommandTag
	if expected == 0 {
		tag, err = tx.Exec(ctx, `
			INSERT INTO rooms (id, version, state, phase, open, updated_at)
			VALUES ($1, $2, $3, $4, $5, now())
			ON CONFLICT (id) DO NOTHING`,
			string(room.ID), int64(room.Version), state, string(room.Phase), room.Open)
	} else {
		tag, err = tx.Exec(ctx, `
			UPDATE rooms
			SET version = $2, state = $3, phase = $4, open = $5, updated_at = now()
			WHERE id = $1 AND version = $6`,
			string(room.ID), int64(room.Version), state, string(room.Phase), room.Open, int64(expected))
	}
	if err != nil {
		return wrap("save room", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStaleVersion
	}

	if len(room.Members) > 0 {
		batch := &pgx.Batch{}
		for _, m := range room.Members {
			queueMember(batch, m)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return wrap("save members", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return wrap("commit", err)
	}
	return nil
}

// DeleteRoom removes a room; members and messages go with it
func (s *Store) DeleteRoom(ctx context.Context, id domain.RoomID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, string(id)); err != nil {
		return wrap("delete room", err)
	}
	return nil
}

// LoadMembers returns a room's members in seat order
func (s *Store) LoadMembers(ctx context.Context, id domain.RoomID) ([]*domain.Member, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, icon, role, score, admin, seat, connected, last_seen, joined_at
		FROM members
		WHERE room_id = $1
		ORDER BY seat`, string(id))
	if err != nil {
		return nil, wrap("load members", err)
	}

	members, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Member, error) {
		var (
			m        domain.Member
			memberID string
			role     string
		)
		if err := row.Scan(&memberID, &m.Name, &m.Icon, &role, &m.Score, &m.Admin, &m.Seat, &m.Connected, &m.LastSeen, &m.JoinedAt); err != nil {
			return nil, err
		}
		m.ID = domain.MemberID(memberID)
		m.RoomID = id
		m.Role = domain.MemberRole(role)
		return &m, nil
	})
	if err != nil {
		return nil, wrap("load members", err)
	}
	return members, nil
}

// SaveMember writes a single member
func (s *Store) SaveMember(ctx context.Context, member *domain.Member) error {
	batch := &pgx.Batch{}
	queueMember(batch, member)
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation {
			return domain.ErrRoomNotFound
		}
		return wrap("save member", err)
	}
	return nil
}

// RecordMessage appends a system message to the room's log
func (s *Store) RecordMessage(ctx context.Context, roomID domain.RoomID, text string) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO messages (room_id, text) VALUES ($1, $2)`, string(roomID), text)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation {
			return domain.ErrRoomNotFound
		}
		return wrap("record message", err)
	}
	return nil
}

// Message is a recorded system message
type Message struct {
	Text      string
	CreatedAt time.Time
}

// Messages returns a room's system messages, oldest first
func (s *Store) Messages(ctx context.Context, roomID domain.RoomID) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `SELECT text, created_at FROM messages WHERE room_id = $1 ORDER BY id`, string(roomID))
	if err != nil {
		return nil, wrap("load messages", err)
	}
	messages, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Message])
	if err != nil {
		return nil, wrap("load messages", err)
	}
	return messages, nil
}

// Close releases the pool
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func queueMember(batch *pgx.Batch, m *domain.Member) {
	batch.Queue(`
		INSERT INTO members (room_id, id, name, icon, role, score, admin, seat, connected, last_seen, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (room_id, id) DO UPDATE SET
			name = EXCLUDED.name,
			icon = EXCLUDED.icon,
			role = EXCLUDED.role,
			score = EXCLUDED.score,
			admin = EXCLUDED.admin,
			seat = EXCLUDED.seat,
			connected = EXCLUDED.connected,
			last_seen = EXCLUDED.last_seen,
			joined_at = EXCLUDED.joined_at`,
		string(m.RoomID), string(m.ID), m.Name, m.Icon, string(m.Role), m.Score, m.Admin, m.Seat, m.Connected, m.LastSeen, m.JoinedAt)
}

// wrap marks a database failure as a storage error
func wrap(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%w: %s: %s (%s)", domain.ErrStorage, op, pgErr.Message, pgErr.Code)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrStorage, op, err)
}
