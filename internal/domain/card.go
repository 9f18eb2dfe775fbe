package domain

// CardID identifies a card in the catalog
type CardID int64

// Color distinguishes prompt (black) cards from response (white) cards
type Color string

const (
	ColorPrompt   Color = "black"
	ColorResponse Color = "white"
)

// CardState tracks a response card drawn into a room
type CardState string

const (
	CardInHand   CardState = "HAND"     // Dealt to a member
	CardSelected CardState = "SELECTED" // Submitted for the current prompt
	CardRevealed CardState = "REVEALED" // Flipped over by the czar
	CardPlayed   CardState = "PLAYED"   // Out of play
	CardWon      CardState = "WON"      // Part of the winning submission
)

// Card is a response card
type Card struct {
	ID   CardID `json:"id"`
	Text string `json:"text"`
}

// PromptCard is the card posed to responders each round
type PromptCard struct {
	Card
	Draw int `json:"draw"` // Extra cards dealt to responders
	Pick int `json:"pick"` // Cards each responder must submit
}

// Drawable reports whether the prompt can be dealt by the allocator.
// Draw prompts and pick counts above three are left out of play.
func (p PromptCard) Drawable() bool {
	return p.Draw == 0 && p.Pick >= 1 && p.Pick <= 3
}
