// Package cards loads the card catalog from CSV.
//
// The base deck has a header row naming one edition per column after
// Type,Text,Special, a second row with the printing of each column, then one
// row per card. A non-empty cell links the card to that column's edition.
// Only v2.0 and KICKSTARTER columns are kept. Pack files have just the
// first three columns; every card in them belongs to the pack.
package cards

import (
	"embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strconv"
	"strings"

	"czarhouse/internal/domain"
)

//go:embed data/base.csv data/packs/*.csv
var defaultFS embed.FS

const (
	typePrompt   = "Prompt"
	typeResponse = "Response"
)

// EditionNames maps edition ids to display names
var EditionNames = map[string]string{
	"US":   "United States",
	"UK":   "United Kingdom",
	"CA":   "Canada",
	"AU":   "Australia",
	"INTL": "International",
	"KS":   "Kickstarter",
}

// Default returns the embedded deck
func Default() (*domain.CardSets, error) {
	return load(defaultFS, "data/base.csv", "data/packs")
}

// LoadFile reads a base deck from disk and adds the embedded packs
func LoadFile(name string) (*domain.CardSets, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open card file: %w", err)
	}
	defer f.Close()

	sets := domain.NewCardSets()
	if err := Parse(sets, f); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if err := loadPacks(sets, defaultFS, "data/packs"); err != nil {
		return nil, err
	}
	return sets, nil
}

func load(fsys fs.FS, base, packs string) (*domain.CardSets, error) {
	f, err := fsys.Open(base)
	if err != nil {
		return nil, fmt.Errorf("open card file: %w", err)
	}
	defer f.Close()

	sets := domain.NewCardSets()
	if err := Parse(sets, f); err != nil {
		return nil, fmt.Errorf("%s: %w", base, err)
	}
	if err := loadPacks(sets, fsys, packs); err != nil {
		return nil, err
	}
	return sets, nil
}

func loadPacks(sets *domain.CardSets, fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("read packs: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".csv" {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".csv")
		f, err := fsys.Open(path.Join(dir, e.Name()))
		if err != nil {
			return fmt.Errorf("open pack %s: %w", id, err)
		}
		err = ParsePack(sets, f, id, packName(id))
		f.Close()
		if err != nil {
			return fmt.Errorf("pack %s: %w", id, err)
		}
	}
	return nil
}

// Parse reads a base deck into sets
func Parse(sets *domain.CardSets, r io.Reader) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	versions, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read versions: %w", err)
	}

	editions := make(map[int]string)
	for i := 3; i < len(header) && i < len(versions); i++ {
		id := strings.TrimSpace(header[i])
		switch strings.TrimSpace(versions[i]) {
		case "KICKSTARTER":
			id = "KS"
		case "v2.0":
		default:
			continue
		}
		editions[i] = id
		sets.Editions[id] = editionName(id)
	}

	for line := 3; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}

		var linked []string
		for i := 3; i < len(row); i++ {
			if id, ok := editions[i]; ok && strings.TrimSpace(row[i]) != "" {
				linked = append(linked, id)
			}
		}
		if err := addCard(sets, row, linked, ""); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
}

// ParsePack reads a pack file into sets
func ParsePack(sets *domain.CardSets, r io.Reader, id, name string) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	sets.Packs[id] = name

	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := addCard(sets, row, nil, id); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
}

func addCard(sets *domain.CardSets, row, editions []string, pack string) error {
	if len(row) < 2 {
		return fmt.Errorf("expected at least 2 columns, got %d", len(row))
	}
	text := strings.TrimSpace(row[1])
	if text == "" {
		return fmt.Errorf("empty card text")
	}

	switch strings.TrimSpace(row[0]) {
	case typePrompt:
		special := ""
		if len(row) > 2 {
			special = row[2]
		}
		draw, pick := ParseSpecial(special)
		card := domain.PromptCard{
			Card: domain.Card{ID: domain.CardID(len(sets.Prompts) + 1), Text: text},
			Draw: draw,
			Pick: pick,
		}
		sets.AddPrompt(card, editions, pack)
	case typeResponse:
		card := domain.Card{ID: domain.CardID(len(sets.Responses) + 1), Text: text}
		sets.AddResponse(card, editions, pack)
	default:
		return fmt.Errorf("unknown card type %q", row[0])
	}
	return nil
}

// ParseSpecial reads the draw and pick counts from a prompt's special
// column, such as "DRAW 2, PICK 3". Pick defaults to one.
func ParseSpecial(special string) (draw, pick int) {
	pick = 1
	fields := strings.FieldsFunc(strings.ToUpper(special), func(r rune) bool {
		return r == ' ' || r == ','
	})
	for i := 0; i+1 < len(fields); i++ {
		n, err := strconv.Atoi(fields[i+1])
		if err != nil {
			continue
		}
		switch fields[i] {
		case "DRAW":
			draw = n
		case "PICK":
			pick = n
		}
	}
	return draw, pick
}

func editionName(id string) string {
	if name, ok := EditionNames[id]; ok {
		return name
	}
	return id
}

// packName turns a file name like "office-party" into "Office Party"
func packName(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
