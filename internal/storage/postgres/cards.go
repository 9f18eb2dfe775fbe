package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"czarhouse/internal/domain"
)

// SeedCards copies the catalog into an empty card table. A table that
// already holds cards is left alone.
func (s *Store) SeedCards(ctx context.Context, sets *domain.CardSets) error {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM cards`).Scan(&count); err != nil {
		return wrap("count cards", err)
	}
	if count > 0 {
		s.logger.Debug().Int("cards", count).Msg("card catalog already seeded")
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return wrap("begin", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for id, name := range sets.Editions {
		batch.Queue(`INSERT INTO editions (id, name) VALUES ($1, $2)`, id, name)
	}
	for id, name := range sets.Packs {
		batch.Queue(`INSERT INTO packs (id, name) VALUES ($1, $2)`, id, name)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return seedError(err)
	}

	var cards, editions [][]any
	for id, p := range sets.Prompts {
		cards = append(cards, []any{string(domain.ColorPrompt), int64(id), p.Text, p.Draw, p.Pick, packOf(sets, domain.ColorPrompt, id)})
		for _, e := range sets.EditionsOf(domain.ColorPrompt, id) {
			editions = append(editions, []any{string(domain.ColorPrompt), int64(id), e})
		}
	}
	for id, r := range sets.Responses {
		cards = append(cards, []any{string(domain.ColorResponse), int64(id), r.Text, 0, 0, packOf(sets, domain.ColorResponse, id)})
		for _, e := range sets.EditionsOf(domain.ColorResponse, id) {
			editions = append(editions, []any{string(domain.ColorResponse), int64(id), e})
		}
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"cards"},
		[]string{"color", "id", "text", "draw", "pick", "pack"}, pgx.CopyFromRows(cards)); err != nil {
		return seedError(err)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"card_editions"},
		[]string{"color", "card_id", "edition"}, pgx.CopyFromRows(editions)); err != nil {
		return seedError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return seedError(err)
	}
	s.logger.Info().Int("cards", len(cards)).Msg("card catalog seeded")
	return nil
}

// LoadCardSets reads the whole catalog
func (s *Store) LoadCardSets(ctx context.Context) (*domain.CardSets, error) {
	sets := domain.NewCardSets()

	if err := s.loadNames(ctx, `SELECT id, name FROM editions`, sets.Editions); err != nil {
		return nil, wrap("load editions", err)
	}
	if err := s.loadNames(ctx, `SELECT id, name FROM packs`, sets.Packs); err != nil {
		return nil, wrap("load packs", err)
	}

	type cardKey struct {
		color domain.Color
		id    domain.CardID
	}
	editions := make(map[cardKey][]string)
	rows, err := s.pool.Query(ctx, `SELECT color, card_id, edition FROM card_editions ORDER BY color, card_id, edition`)
	if err != nil {
		return nil, wrap("load card editions", err)
	}
	var (
		color, edition string
		id             int64
	)
	_, err = pgx.ForEachRow(rows, []any{&color, &id, &edition}, func() error {
		key := cardKey{domain.Color(color), domain.CardID(id)}
		editions[key] = append(editions[key], edition)
		return nil
	})
	if err != nil {
		return nil, wrap("load card editions", err)
	}

	rows, err = s.pool.Query(ctx, `SELECT color, id, text, draw, pick, coalesce(pack, '') FROM cards`)
	if err != nil {
		return nil, wrap("load cards", err)
	}
	var (
		text, pack string
		draw, pick int
	)
	_, err = pgx.ForEachRow(rows, []any{&color, &id, &text, &draw, &pick, &pack}, func() error {
		key := cardKey{domain.Color(color), domain.CardID(id)}
		card := domain.Card{ID: key.id, Text: text}
		switch key.color {
		case domain.ColorPrompt:
			sets.AddPrompt(domain.PromptCard{Card: card, Draw: draw, Pick: pick}, editions[key], pack)
		case domain.ColorResponse:
			sets.AddResponse(card, editions[key], pack)
		default:
			return fmt.Errorf("card %d has unknown color %q", id, color)
		}
		return nil
	})
	if err != nil {
		return nil, wrap("load cards", err)
	}

	return sets, nil
}

func (s *Store) loadNames(ctx context.Context, query string, into map[string]string) error {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return err
	}
	var id, name string
	_, err = pgx.ForEachRow(rows, []any{&id, &name}, func() error {
		into[id] = name
		return nil
	})
	return err
}

// packOf returns the card's pack or nil for base cards
func packOf(sets *domain.CardSets, color domain.Color, id domain.CardID) any {
	if pack := sets.PackOf(color, id); pack != "" {
		return pack
	}
	return nil
}

// seedError treats a concurrent seed by another process as success
func seedError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return nil
	}
	return wrap("seed cards", err)
}
