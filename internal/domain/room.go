package domain

import (
	"maps"
	"math/rand/v2"
	"slices"
	"strings"
	"time"
)

// RoomID identifies a room
type RoomID string

// RoomSettings holds configurable room parameters
type RoomSettings struct {
	HandSize   int `json:"handSize"`
	MaxMembers int `json:"maxMembers"`
}

// DefaultRoomSettings returns the default room settings
func DefaultRoomSettings() RoomSettings {
	return RoomSettings{
		HandSize:   7,
		MaxMembers: 20,
	}
}

// Env carries what room operations need besides the room itself
type Env struct {
	Cards *CardSets
	Rand  *rand.Rand
	Now   time.Time
}

// Room is one ongoing game session. Its JSON form is the stored state;
// clients get a RoomView instead.
type Room struct {
	ID            RoomID               `json:"id"`
	Version       uint64               `json:"version"` // Bumped on every committed action
	Token         string               `json:"token"`
	AdminToken    string               `json:"adminToken"`
	Phase         RoomPhase            `json:"phase"`
	Edition       string               `json:"edition,omitempty"`
	Packs         []string             `json:"packs"`
	RotateCzar    bool                 `json:"rotateCzar"`
	Open          bool                 `json:"open"`
	Prompt        *PromptCard          `json:"prompt,omitempty"`
	SelectedGroup *int                 `json:"selectedGroup,omitempty"`
	CzarVacant    bool                 `json:"czarVacant"`
	Members       map[MemberID]*Member `json:"-"` // Stored separately
	Allocation    *Allocation          `json:"allocation"`
	Round         *Round               `json:"round"`
	Settings      RoomSettings         `json:"settings"`
	NextSeat      int                  `json:"nextSeat"`
	CreatedAt     time.Time            `json:"createdAt"`
	LastActive    time.Time            `json:"lastActive"`
}

// NewRoom creates a new, unconfigured room
func NewRoom(id RoomID, token, adminToken string, settings RoomSettings, now time.Time) *Room {
	return &Room{
		ID:         id,
		Token:      token,
		AdminToken: adminToken,
		Phase:      PhaseNew,
		Packs:      []string{},
		Members:    make(map[MemberID]*Member),
		Allocation: NewAllocation(),
		Round:      NewRound(0),
		Settings:   settings,
		CreatedAt:  now,
		LastActive: now,
	}
}

// Clone returns a deep copy. Operations run on clones so that a failed
// action never leaves a partial change behind.
func (r *Room) Clone() *Room {
	out := *r
	out.Packs = slices.Clone(r.Packs)
	if r.Prompt != nil {
		p := *r.Prompt
		out.Prompt = &p
	}
	if r.SelectedGroup != nil {
		g := *r.SelectedGroup
		out.SelectedGroup = &g
	}
	out.Members = make(map[MemberID]*Member, len(r.Members))
	for id, m := range r.Members {
		c := *m
		out.Members[id] = &c
	}
	out.Allocation = r.Allocation.Clone()
	out.Round = r.Round.Clone()
	return &out
}

// GetMember returns a member by ID
func (r *Room) GetMember(id MemberID) (*Member, error) {
	m, ok := r.Members[id]
	if !ok {
		return nil, ErrMemberNotFound
	}
	return m, nil
}

// Seated returns the members in stable membership order
func (r *Room) Seated() []*Member {
	members := slices.Collect(maps.Values(r.Members))
	slices.SortFunc(members, func(a, b *Member) int { return a.Seat - b.Seat })
	return members
}

// ActiveCount returns the number of members who have not left
func (r *Room) ActiveCount() int {
	n := 0
	for _, m := range r.Members {
		if m.IsActive() {
			n++
		}
	}
	return n
}

// Czar returns the member currently judging, if any
func (r *Room) Czar() *Member {
	for _, m := range r.Members {
		if m.Role == RoleCzar {
			return m
		}
	}
	return nil
}

// NextCzar returns the member designated to start the next round, if any
func (r *Room) NextCzar() *Member {
	for _, m := range r.Members {
		if m.Role.IsNextCzar() {
			return m
		}
	}
	return nil
}

// Hand returns a member's cards
func (r *Room) Hand(id MemberID, cards *CardSets) []Card {
	ids := r.Allocation.Hand(id)
	hand := make([]Card, 0, len(ids))
	for _, cid := range ids {
		if c, ok := cards.Responses[cid]; ok {
			hand = append(hand, c)
		}
	}
	return hand
}

// IconInUse reports whether another active member already picked the icon
func (r *Room) IconInUse(icon string, except MemberID) bool {
	for _, m := range r.Members {
		if m.ID != except && m.IsActive() && m.Icon == icon {
			return true
		}
	}
	return false
}

// AvailableIcons lists icons no active member has picked
func (r *Room) AvailableIcons() []string {
	icons := make([]string, 0, len(Icons))
	for _, icon := range Icons {
		if !r.IconInUse(icon, "") {
			icons = append(icons, icon)
		}
	}
	return icons
}

// JoinResult describes the effects of a member joining or completing a profile
type JoinResult struct {
	Member      *Member
	Rejoined    bool
	Dealt       []CardID
	Replacement MemberID // Czar chosen because the seat was vacant
}

// AddMember adds a member, or brings back one who left. The first member
// becomes admin and czar.
func (r *Room) AddMember(id MemberID, name, icon string, env Env) (JoinResult, error) {
	name = strings.TrimSpace(name)
	if icon != "" && !IsIcon(icon) {
		return JoinResult{}, ErrInvalidIcon
	}
	if icon != "" && r.IconInUse(icon, id) {
		return JoinResult{}, ErrIconTaken
	}

	result := JoinResult{}
	member, exists := r.Members[id]
	switch {
	case exists && member.IsActive():
		return JoinResult{}, ErrAlreadyMember
	case exists:
		member.setRole(RoleIdle)
		member.Connected = true
		member.LastSeen = env.Now
		if name != "" {
			member.Name = name
		}
		if icon != "" {
			member.Icon = icon
		}
		result.Rejoined = true
	default:
		if r.ActiveCount() >= r.Settings.MaxMembers {
			return JoinResult{}, ErrRoomFull
		}
		member = NewMember(id, r.ID, name, icon, r.NextSeat, env.Now)
		r.NextSeat++
		if r.ActiveCount() == 0 {
			member.Admin = true
			if r.Phase == PhaseNew {
				member.setRole(RoleCzar)
			}
		}
		r.Members[id] = member
	}

	result.Member = member
	r.LastActive = env.Now
	r.seatEligible(member, env, &result)
	return result, nil
}

// SetProfile updates a member's name and icon. Completing a profile in a
// running room deals the member in.
func (r *Room) SetProfile(id MemberID, name, icon string, env Env) (JoinResult, error) {
	member, err := r.GetMember(id)
	if err != nil {
		return JoinResult{}, err
	}
	if !member.IsActive() {
		return JoinResult{}, ErrInvalidState
	}

	name = strings.TrimSpace(name)
	if name == "" && member.Name == "" {
		return JoinResult{}, ErrEmptyName
	}
	if icon != "" {
		if !IsIcon(icon) {
			return JoinResult{}, ErrInvalidIcon
		}
		if r.IconInUse(icon, id) {
			return JoinResult{}, ErrIconTaken
		}
		member.Icon = icon
	}
	if name != "" {
		member.Name = name
	}

	result := JoinResult{Member: member}
	r.LastActive = env.Now
	r.seatEligible(member, env, &result)
	return result, nil
}

// seatEligible deals a newly eligible member into a running room and fills a
// vacant czar seat with them if needed.
func (r *Room) seatEligible(member *Member, env Env, result *JoinResult) {
	if !r.Phase.Started() || !member.IsEligible() {
		return
	}

	missing := r.Settings.HandSize - len(r.Allocation.Hand(member.ID))
	if missing > 0 {
		result.Dealt = r.drawUpTo(member.ID, missing, env)
	}

	if r.CzarVacant {
		if czar, err := r.ReplaceCzar("", env); err == nil {
			result.Replacement = czar
			return
		}
	}

	if r.Phase == PhaseChoosingCards && member.Role == RoleIdle && r.Round.GroupOf(member.ID) == nil {
		member.setRole(RoleChoosing)
	}
}

// LeaveResult describes the effects of a member leaving
type LeaveResult struct {
	Member       *Member
	WasCzar      bool
	Empty        bool     // No active member remains
	Replacement  MemberID // New czar after recovery
	ReplaceErr   error    // Why recovery failed, if it did
	NewAdmin     MemberID
	AnswersReady bool
}

// RemoveMember marks a member inactive. The member keeps their seat and hand
// so they can come back. If they held the czar seat the round is recovered.
func (r *Room) RemoveMember(id MemberID, env Env) (LeaveResult, error) {
	member, err := r.GetMember(id)
	if err != nil {
		return LeaveResult{}, err
	}
	if !member.IsActive() {
		return LeaveResult{Member: member, Empty: r.ActiveCount() == 0}, nil
	}

	result := LeaveResult{Member: member, WasCzar: member.Role.IsCzarLike()}
	member.setRole(RoleInactive)
	member.Connected = false
	member.LastSeen = env.Now
	r.LastActive = env.Now

	if r.ActiveCount() == 0 {
		result.Empty = true
		return result, nil
	}

	if member.Admin {
		member.Admin = false
		if next := r.nextActive(member.Seat, false); next != nil {
			next.Admin = true
			result.NewAdmin = next.ID
		}
	}

	// Unread answers from a member who left are dropped
	if r.Phase == PhaseChoosingCards {
		for _, cid := range r.Round.remove(id) {
			r.Allocation.SetState(cid, CardPlayed)
		}
	}

	switch {
	case result.WasCzar && r.Phase == PhaseNew:
		if next := r.nextActive(member.Seat, false); next != nil {
			next.setRole(RoleCzar)
			result.Replacement = next.ID
		}
	case result.WasCzar:
		czar, err := r.ReplaceCzar(id, env)
		if err != nil {
			result.ReplaceErr = err
		} else {
			result.Replacement = czar
		}
	default:
		result.AnswersReady = r.checkAnswersReady()
	}

	return result, nil
}

// Configure sets up a new room and starts the first round
func (r *Room) Configure(actorID MemberID, edition string, packs []string, rotateCzar, open bool, env Env) error {
	actor, err := r.GetMember(actorID)
	if err != nil {
		return err
	}
	if !r.Phase.CanTransitionTo(PhaseChoosingCards) || r.Phase != PhaseNew {
		return ErrInvalidTransition
	}
	if actor.Role != RoleCzar && !actor.Admin {
		return ErrNotCzar
	}
	if !env.Cards.HasEdition(edition) {
		return ErrInvalidEdition
	}

	r.Edition = edition
	r.Packs = env.Cards.ValidPacks(packs)
	r.RotateCzar = rotateCzar
	r.Open = open

	czar := r.Czar()
	if czar == nil || !czar.IsEligible() {
		czar = r.firstEligible(actor.ID)
	}
	if czar == nil {
		return ErrUnreachable
	}
	return r.startRound(czar.ID, env)
}

// StartReading closes submissions and lets the czar read them
func (r *Room) StartReading(actorID MemberID, env Env) error {
	if err := r.authorizeCzar(actorID); err != nil {
		return err
	}
	if r.Phase != PhaseChoosingCards {
		return ErrInvalidTransition
	}

	// Answers from members who left in the meantime never reach the czar
	for _, g := range slices.Clone(r.Round.Groups) {
		if m, ok := r.Members[g.Member]; !ok || !m.IsActive() {
			for _, cid := range r.Round.remove(g.Member) {
				r.Allocation.SetState(cid, CardPlayed)
			}
		}
	}
	if len(r.Round.Groups) == 0 {
		return ErrNotEnoughGroups
	}

	for _, m := range r.Members {
		if m.Role == RoleChoosing {
			m.setRole(RoleIdle)
		}
	}
	r.Round.finalize(env.Rand)
	r.SelectedGroup = nil
	r.Phase = PhaseReadingCards
	r.LastActive = env.Now
	return nil
}

// RevealGroup flips a submission over
func (r *Room) RevealGroup(actorID MemberID, index int, env Env) (*SubmissionGroup, error) {
	if err := r.authorizeCzar(actorID); err != nil {
		return nil, err
	}
	if r.Phase != PhaseReadingCards {
		return nil, ErrInvalidState
	}
	g, err := r.Round.Group(index)
	if err != nil {
		return nil, err
	}

	g.Revealed = true
	for _, cid := range g.Cards {
		r.Allocation.SetState(cid, CardRevealed)
	}
	r.LastActive = env.Now
	return g, nil
}

// SelectGroup highlights a revealed submission for everyone; nil clears it
func (r *Room) SelectGroup(actorID MemberID, index *int, env Env) error {
	if err := r.authorizeCzar(actorID); err != nil {
		return err
	}
	if r.Phase != PhaseReadingCards {
		return ErrInvalidState
	}
	if index != nil {
		g, err := r.Round.Group(*index)
		if err != nil {
			return err
		}
		if !g.Revealed {
			return ErrGroupNotRevealed
		}
		i := *index
		index = &i
	}
	r.SelectedGroup = index
	r.LastActive = env.Now
	return nil
}

// WinResult describes the end of a round
type WinResult struct {
	Winner   MemberID
	Group    *SubmissionGroup
	NextCzar MemberID // Empty when no member can take over
}

// SelectWinner ends the round with the given submission as winner
func (r *Room) SelectWinner(actorID MemberID, index int, env Env) (WinResult, error) {
	if err := r.authorizeCzar(actorID); err != nil {
		return WinResult{}, err
	}
	if !r.Phase.CanTransitionTo(PhaseViewingWinner) {
		return WinResult{}, ErrInvalidTransition
	}
	g, err := r.Round.Group(index)
	if err != nil {
		return WinResult{}, err
	}
	if !g.Revealed {
		return WinResult{}, ErrGroupNotRevealed
	}
	winner, ok := r.Members[g.Member]
	if !ok || !winner.IsActive() {
		return WinResult{}, ErrWinnerInactive
	}

	for _, other := range r.Round.Groups {
		state := CardPlayed
		if other == g {
			state = CardWon
		}
		for _, cid := range other.Cards {
			r.Allocation.SetState(cid, state)
		}
	}
	winner.Score++
	r.Round.Winner = winner.ID
	r.Round.WinningIndex = index

	outgoing := actorID
	if czar := r.Czar(); czar != nil {
		outgoing = czar.ID
	}
	r.Round.PreviousCzarID = outgoing
	for _, m := range r.Members {
		if m.IsActive() && m.Role != RoleIdle {
			m.setRole(RoleIdle)
		}
	}

	result := WinResult{Winner: winner.ID, Group: g}
	next, err := r.SelectNextCzar(outgoing)
	if err != nil {
		r.CzarVacant = true
	} else {
		nextCzar := r.Members[next]
		if next == winner.ID {
			nextCzar.setRole(RoleWinnerAndNextCzar)
		} else {
			nextCzar.setRole(RoleNextCzar)
		}
		result.NextCzar = next
	}

	r.SelectedGroup = nil
	r.Phase = PhaseViewingWinner
	r.LastActive = env.Now
	return result, nil
}

// NextRound starts the next round with the designated next czar
func (r *Room) NextRound(actorID MemberID, env Env) (MemberID, error) {
	actor, err := r.GetMember(actorID)
	if err != nil {
		return "", err
	}
	if r.Phase != PhaseViewingWinner {
		return "", ErrInvalidTransition
	}
	if !actor.Role.IsNextCzar() && !actor.Admin {
		return "", ErrNotNextCzar
	}

	czar := r.NextCzar()
	if czar == nil {
		return r.ReplaceCzar("", env)
	}
	if err := r.startRound(czar.ID, env); err != nil {
		return "", err
	}
	return czar.ID, nil
}

// startRound draws a prompt and opens submissions with czarID judging. The
// prompt is drawn first so that running out of prompts changes nothing.
func (r *Room) startRound(czarID MemberID, env Env) error {
	ids, err := r.Allocation.Draw(env.Cards, ColorPrompt, r.Edition, r.Packs, 1, env.Rand)
	if err != nil {
		return err
	}
	prompt := env.Cards.Prompts[ids[0]]

	// Every eligible member is dealt a full hand before anything else changes
	deals := make(map[MemberID][]CardID)
	draft := r.Allocation.Clone()
	for _, m := range r.Seated() {
		if !m.IsEligible() && m.ID != czarID {
			continue
		}
		missing := r.Settings.HandSize - len(draft.Hand(m.ID))
		if missing <= 0 {
			continue
		}
		cards, err := draft.Draw(env.Cards, ColorResponse, r.Edition, r.Packs, missing, env.Rand)
		if err != nil {
			if r.Phase == PhaseNew {
				return err
			}
			// Later rounds keep going with short hands
			continue
		}
		draft.RecordHand(m.ID, cards)
		deals[m.ID] = cards
	}

	r.Allocation = draft
	r.Allocation.RecordPrompt(prompt.ID)
	r.Prompt = &prompt

	// Leftover submissions are out of play
	for _, g := range r.Round.Groups {
		for _, cid := range g.Cards {
			if ca, ok := r.Allocation.Responses[cid]; ok && (ca.State == CardSelected || ca.State == CardRevealed) {
				ca.State = CardPlayed
			}
		}
	}
	r.Round = NewRound(r.Round.Number + 1)

	for _, m := range r.Seated() {
		switch {
		case !m.IsActive():
		case m.ID == czarID:
			if m.Role != RoleCzar {
				if m.Role != RoleIdle && !m.Role.IsNextCzar() {
					m.setRole(RoleIdle)
				}
				m.setRole(RoleCzar)
			}
		case m.IsEligible():
			if m.Role != RoleIdle && m.Role != RoleChoosing {
				m.setRole(RoleIdle)
			}
			m.setRole(RoleChoosing)
		default:
			if m.Role != RoleIdle {
				m.setRole(RoleIdle)
			}
		}
	}

	r.SelectedGroup = nil
	r.CzarVacant = false
	r.Phase = PhaseChoosingCards
	r.LastActive = env.Now
	return nil
}

// drawUpTo deals as many as count cards, fewer if the pool runs low
func (r *Room) drawUpTo(id MemberID, count int, env Env) []CardID {
	free := len(r.Allocation.Available(env.Cards, ColorResponse, r.Edition, r.Packs))
	count = min(count, free)
	cards, err := r.Allocation.Draw(env.Cards, ColorResponse, r.Edition, r.Packs, count, env.Rand)
	if err != nil {
		return nil
	}
	r.Allocation.RecordHand(id, cards)
	return cards
}

// authorizeCzar checks the actor may act as the judge
func (r *Room) authorizeCzar(actorID MemberID) error {
	actor, err := r.GetMember(actorID)
	if err != nil {
		return err
	}
	if !actor.IsActive() || (actor.Role != RoleCzar && !actor.Admin) {
		return ErrNotCzar
	}
	return nil
}

// firstEligible prefers the given member, then the lowest seat
func (r *Room) firstEligible(preferred MemberID) *Member {
	if m, ok := r.Members[preferred]; ok && m.IsEligible() {
		return m
	}
	for _, m := range r.Seated() {
		if m.IsEligible() {
			return m
		}
	}
	return nil
}

// nextActive returns the first active member seated after seat, wrapping
func (r *Room) nextActive(seat int, eligibleOnly bool) *Member {
	seated := r.Seated()
	start := 0
	for i, m := range seated {
		if m.Seat > seat {
			start = i
			break
		}
		start = i + 1
	}
	for i := range seated {
		m := seated[(start+i)%len(seated)]
		if m.Seat == seat || !m.IsActive() || (eligibleOnly && !m.HasProfile()) {
			continue
		}
		return m
	}
	return nil
}
