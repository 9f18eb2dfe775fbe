package domain

// MemberRole represents a member's role within the current round
type MemberRole string

const (
	RoleIdle              MemberRole = "IDLE"
	RoleChoosing          MemberRole = "CHOOSING"
	RoleCzar              MemberRole = "CZAR"
	RoleNextCzar          MemberRole = "NEXT_CZAR"
	RoleWinnerAndNextCzar MemberRole = "WINNER_AND_NEXT_CZAR"
	RoleInactive          MemberRole = "INACTIVE"
)

// String returns the string representation of the role
func (r MemberRole) String() string {
	return string(r)
}

// IsCzarLike reports whether the role holds or is about to hold the czar seat.
func (r MemberRole) IsCzarLike() bool {
	return r == RoleCzar || r == RoleNextCzar || r == RoleWinnerAndNextCzar
}

// IsNextCzar reports whether the role may start the next round.
func (r MemberRole) IsNextCzar() bool {
	return r == RoleNextCzar || r == RoleWinnerAndNextCzar
}

// CanTransitionTo checks a role change. Any role may go inactive and an
// inactive member comes back as idle.
func (r MemberRole) CanTransitionTo(target MemberRole) bool {
	if r == target {
		return true
	}
	if target == RoleInactive {
		return true
	}

	validTransitions := map[MemberRole][]MemberRole{
		RoleIdle:              {RoleChoosing, RoleCzar, RoleNextCzar, RoleWinnerAndNextCzar},
		RoleChoosing:          {RoleIdle, RoleCzar},
		RoleCzar:              {RoleIdle, RoleNextCzar, RoleWinnerAndNextCzar},
		RoleNextCzar:          {RoleCzar, RoleIdle},
		RoleWinnerAndNextCzar: {RoleCzar, RoleIdle},
		RoleInactive:          {RoleIdle},
	}

	for _, role := range validTransitions[r] {
		if role == target {
			return true
		}
	}
	return false
}
