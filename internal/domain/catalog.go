package domain

import "slices"

// CardSets is the full card catalog: every card, which editions include it
// and which pack it belongs to.
type CardSets struct {
	Editions  map[string]string // id -> display name
	Packs     map[string]string // id -> display name
	Prompts   map[CardID]PromptCard
	Responses map[CardID]Card

	promptEditions   map[CardID][]string
	responseEditions map[CardID][]string
	promptPack       map[CardID]string
	responsePack     map[CardID]string
}

// NewCardSets creates an empty catalog
func NewCardSets() *CardSets {
	return &CardSets{
		Editions:         make(map[string]string),
		Packs:            make(map[string]string),
		Prompts:          make(map[CardID]PromptCard),
		Responses:        make(map[CardID]Card),
		promptEditions:   make(map[CardID][]string),
		responseEditions: make(map[CardID][]string),
		promptPack:       make(map[CardID]string),
		responsePack:     make(map[CardID]string),
	}
}

// AddPrompt registers a prompt card with its editions and optional pack
func (c *CardSets) AddPrompt(card PromptCard, editions []string, pack string) {
	c.Prompts[card.ID] = card
	c.promptEditions[card.ID] = editions
	if pack != "" {
		c.promptPack[card.ID] = pack
	}
}

// AddResponse registers a response card with its editions and optional pack
func (c *CardSets) AddResponse(card Card, editions []string, pack string) {
	c.Responses[card.ID] = card
	c.responseEditions[card.ID] = editions
	if pack != "" {
		c.responsePack[card.ID] = pack
	}
}

// HasEdition reports whether the edition exists
func (c *CardSets) HasEdition(edition string) bool {
	_, ok := c.Editions[edition]
	return ok
}

// ValidPacks filters the requested packs down to the known ones, keeping order
// and dropping duplicates.
func (c *CardSets) ValidPacks(packs []string) []string {
	valid := make([]string, 0, len(packs))
	for _, p := range packs {
		if _, ok := c.Packs[p]; ok && !slices.Contains(valid, p) {
			valid = append(valid, p)
		}
	}
	return valid
}

// EditionsOf returns the editions a card is linked to
func (c *CardSets) EditionsOf(color Color, id CardID) []string {
	if color == ColorPrompt {
		return c.promptEditions[id]
	}
	return c.responseEditions[id]
}

// PackOf returns the pack a card belongs to, if any
func (c *CardSets) PackOf(color Color, id CardID) string {
	if color == ColorPrompt {
		return c.promptPack[id]
	}
	return c.responsePack[id]
}

// Eligible returns the ids of cards of the given color that belong to the
// edition or to any of the packs. The result is sorted so callers can pick
// from it with an injected random source.
func (c *CardSets) Eligible(color Color, edition string, packs []string) []CardID {
	var ids []CardID
	match := func(id CardID, editions []string, pack string) {
		if slices.Contains(editions, edition) || (pack != "" && slices.Contains(packs, pack)) {
			ids = append(ids, id)
		}
	}

	if color == ColorPrompt {
		for id, card := range c.Prompts {
			if !card.Drawable() {
				continue
			}
			match(id, c.promptEditions[id], c.promptPack[id])
		}
	} else {
		for id := range c.Responses {
			match(id, c.responseEditions[id], c.responsePack[id])
		}
	}

	slices.Sort(ids)
	return ids
}
