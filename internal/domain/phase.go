package domain

// RoomPhase represents the current phase of a room
type RoomPhase string

const (
	PhaseNew           RoomPhase = "NEW"            // Created, not configured yet
	PhaseChoosingCards RoomPhase = "CHOOSING_CARDS" // Prompt shown, responders picking
	PhaseReadingCards  RoomPhase = "READING_CARDS"  // Czar revealing submissions
	PhaseViewingWinner RoomPhase = "VIEWING_WINNER" // Winner shown, waiting for next round
)

// String returns the string representation of the phase
func (p RoomPhase) String() string {
	return string(p)
}

// CanTransitionTo checks if a transition from current phase to target phase is valid.
// The czar recovery restart is not a transition; see Room.restartRound.
func (p RoomPhase) CanTransitionTo(target RoomPhase) bool {
	validTransitions := map[RoomPhase][]RoomPhase{
		PhaseNew:           {PhaseChoosingCards},
		PhaseChoosingCards: {PhaseReadingCards},
		PhaseReadingCards:  {PhaseViewingWinner},
		PhaseViewingWinner: {PhaseChoosingCards},
	}

	allowed, ok := validTransitions[p]
	if !ok {
		return false
	}

	for _, phase := range allowed {
		if phase == target {
			return true
		}
	}
	return false
}

// Started reports whether the room has been configured.
func (p RoomPhase) Started() bool {
	return p != PhaseNew && p != ""
}
