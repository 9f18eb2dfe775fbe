package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"czarhouse/internal/domain"
)

// Response is a standard API response
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CreateRoomResponse is the response for room creation. The admin token
// goes to the creator only.
type CreateRoomResponse struct {
	RoomID     domain.RoomID `json:"roomId"`
	Token      string        `json:"token"`
	AdminToken string        `json:"adminToken"`
	InviteLink string        `json:"inviteLink"`
}

// GetRoomResponse is the response for getting room info
type GetRoomResponse struct {
	domain.RoomSummary
	Open  bool     `json:"open"`
	Icons []string `json:"icons"`
}

// Option is an edition or pack choice
type Option struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CardSetsResponse lists what a room can be configured with
type CardSetsResponse struct {
	Editions []Option `json:"editions"`
	Packs    []Option `json:"packs"`
}

// HealthResponse is the response for health check
type HealthResponse struct {
	Status string `json:"status"`
}

// StatsResponse is the response for stats endpoint
type StatsResponse struct {
	ActiveRooms   int `json:"activeRooms"`
	TotalMembers  int `json:"totalMembers"`
	OpenRooms     int `json:"openRooms"`
	OpenSockets   int `json:"openSockets"`
	ResponseCards int `json:"responseCards"`
}

// handleCreateRoom handles POST /api/rooms
func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	session, err := s.hub.CreateRoom(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to create room")
		s.sendError(w, http.StatusInternalServerError, "CREATION_FAILED", "Failed to create room")
		return
	}
	room := session.Room()

	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	inviteLink := scheme + "://" + r.Host + "/join/" + string(room.ID) + "?token=" + room.Token

	s.sendJSON(w, http.StatusCreated, &CreateRoomResponse{
		RoomID:     room.ID,
		Token:      room.Token,
		AdminToken: room.AdminToken,
		InviteLink: inviteLink,
	})
}

// handleListRooms handles GET /api/rooms
func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, s.hub.OpenRooms())
}

// handleGetRoom handles GET /api/rooms/{roomID}
func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := strings.ToUpper(chi.URLParam(r, "roomID"))
	if roomID == "" {
		s.sendError(w, http.StatusBadRequest, "MISSING_ROOM_ID", "Room id is required")
		return
	}

	session, err := s.hub.GetSession(r.Context(), domain.RoomID(roomID))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.sendError(w, http.StatusNotFound, domain.CodeNotFound, "Room not found")
		} else {
			s.logger.Error().Err(err).Str("room", roomID).Msg("failed to load room")
			s.sendError(w, http.StatusInternalServerError, domain.CodeInternal, "Internal server error")
		}
		return
	}

	room := session.Room()
	s.sendSuccess(w, &GetRoomResponse{
		RoomSummary: room.Summary(),
		Open:        room.Open,
		Icons:       room.AvailableIcons(),
	})
}

// handleCardSets handles GET /api/cardsets
func (s *Server) handleCardSets(w http.ResponseWriter, r *http.Request) {
	cards := s.hub.Cards()
	s.sendSuccess(w, &CardSetsResponse{
		Editions: options(cards.Editions),
		Packs:    options(cards.Packs),
	})
}

// handleHealth handles GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, &HealthResponse{
		Status: "ok",
	})
}

// handleStats handles GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, &StatsResponse{
		ActiveRooms:   s.hub.GetSessionCount(),
		TotalMembers:  s.hub.GetTotalMemberCount(),
		OpenRooms:     len(s.hub.OpenRooms()),
		OpenSockets:   s.registry.Count(),
		ResponseCards: len(s.hub.Cards().Responses),
	})
}

// options turns an id to name map into a list sorted by id
func options(m map[string]string) []Option {
	out := make([]Option, 0, len(m))
	for id, name := range m {
		out = append(out, Option{ID: id, Name: name})
	}
	slices.SortFunc(out, func(a, b Option) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// sendSuccess sends a successful JSON response
func (s *Server) sendSuccess(w http.ResponseWriter, data any) {
	s.sendJSON(w, http.StatusOK, data)
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&Response{
		Success: true,
		Data:    data,
	})
}

// sendError sends an error JSON response
func (s *Server) sendError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	})
}
