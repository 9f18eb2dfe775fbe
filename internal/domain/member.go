package domain

import (
	"fmt"
	"time"
)

// MemberID identifies a participant
type MemberID string

// Participant is a connected user that has not joined a room
type Participant struct {
	ID   MemberID `json:"id"`
	Name string   `json:"name"`
	Icon string   `json:"icon"`
}

// Member is a participant associated with a room
type Member struct {
	ID        MemberID   `json:"id"`
	RoomID    RoomID     `json:"roomId"`
	Name      string     `json:"name"`
	Icon      string     `json:"icon"`
	Role      MemberRole `json:"role"`
	Score     int        `json:"score"`
	Admin     bool       `json:"admin"`
	Seat      int        `json:"seat"`
	Connected bool       `json:"connected"`
	LastSeen  time.Time  `json:"lastSeen"`
	JoinedAt  time.Time  `json:"joinedAt"`
}

// NewMember creates a new idle member
func NewMember(id MemberID, roomID RoomID, name, icon string, seat int, now time.Time) *Member {
	return &Member{
		ID:        id,
		RoomID:    roomID,
		Name:      name,
		Icon:      icon,
		Role:      RoleIdle,
		Seat:      seat,
		Connected: true,
		LastSeen:  now,
		JoinedAt:  now,
	}
}

// IsActive returns true unless the member has left
func (m *Member) IsActive() bool {
	return m.Role != RoleInactive
}

// HasProfile returns true once the member picked a name and an icon
func (m *Member) HasProfile() bool {
	return m.Name != "" && m.Icon != ""
}

// IsEligible returns true if the member can play a round
func (m *Member) IsEligible() bool {
	return m.IsActive() && m.HasProfile()
}

// Participant strips the room association
func (m *Member) Participant() Participant {
	return Participant{ID: m.ID, Name: m.Name, Icon: m.Icon}
}

// setRole applies a role change. Roles only change inside Room operations,
// so an illegal change is a bug in this package.
func (m *Member) setRole(role MemberRole) {
	if !m.Role.CanTransitionTo(role) {
		panic(fmt.Sprintf("member %s: illegal role change %s -> %s", m.ID, m.Role, role))
	}
	m.Role = role
}

// MemberInfo is the public view of a member
type MemberInfo struct {
	ID        MemberID   `json:"id"`
	Name      string     `json:"name"`
	Icon      string     `json:"icon"`
	Role      MemberRole `json:"role"`
	Score     int        `json:"score"`
	Admin     bool       `json:"admin"`
	Connected bool       `json:"connected"`
}

// ToInfo converts a Member to MemberInfo
func (m *Member) ToInfo() MemberInfo {
	return MemberInfo{
		ID:        m.ID,
		Name:      m.Name,
		Icon:      m.Icon,
		Role:      m.Role,
		Score:     m.Score,
		Admin:     m.Admin,
		Connected: m.Connected,
	}
}
