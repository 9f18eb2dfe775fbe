package domain

import "fmt"

// SelectNextCzar picks who judges the next round. With rotation on it scans
// the seats after from, wrapping around, for the first eligible member. With
// rotation off the round winner keeps the seat when still eligible.
func (r *Room) SelectNextCzar(from MemberID) (MemberID, error) {
	if !r.RotateCzar {
		if w, ok := r.Members[r.Round.Winner]; ok && w.IsEligible() {
			return w.ID, nil
		}
	}

	seat := -1
	if m, ok := r.Members[from]; ok {
		seat = m.Seat
	}
	next := r.nextActive(seat, true)
	if next == nil || next.ID == from {
		return "", fmt.Errorf("%w: no eligible member after %q", ErrUnreachable, from)
	}
	return next.ID, nil
}

// ReplaceCzar fills the czar seat after departing left it and restarts the
// round with the replacement judging. When nobody can take over the room is
// marked vacant and waits for a member to join.
func (r *Room) ReplaceCzar(departing MemberID, env Env) (MemberID, error) {
	if !r.Phase.Started() {
		return "", ErrInvalidState
	}

	next, err := r.SelectNextCzar(departing)
	if err != nil {
		r.vacate()
		return "", err
	}
	if err := r.startRound(next, env); err != nil {
		r.vacate()
		return "", err
	}
	return next, nil
}

// vacate leaves the room without anyone holding the czar seat
func (r *Room) vacate() {
	r.CzarVacant = true
	for _, m := range r.Members {
		if m.IsActive() && m.Role.IsCzarLike() {
			m.setRole(RoleIdle)
		}
	}
}
