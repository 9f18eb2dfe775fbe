package ws

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"czarhouse/internal/app"
	"czarhouse/internal/domain"
)

// Limits bounds how fast one connection may send actions
type Limits struct {
	PerSecond float64
	Burst     int
}

// Handler handles WebSocket connections
type Handler struct {
	hub      *app.Hub
	registry *Registry
	limits   Limits
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *app.Hub, registry *Registry, limits Limits, logger zerolog.Logger) *Handler {
	return &Handler{
		hub:      hub,
		registry: registry,
		limits:   limits,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

// ServeHTTP upgrades the request. The member joins with a join message;
// passing memberId resumes an earlier membership.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	roomID := strings.ToUpper(r.URL.Query().Get("roomId"))
	if roomID == "" {
		http.Error(w, "roomId is required", http.StatusBadRequest)
		return
	}

	memberID := domain.MemberID(r.URL.Query().Get("memberId"))
	isReconnect := memberID != ""
	if !isReconnect {
		memberID = domain.MemberID(uuid.NewString())
	}

	session, err := h.hub.GetSession(r.Context(), domain.RoomID(roomID))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Room not found", http.StatusNotFound)
		} else {
			h.logger.Error().Err(err).Str("room", roomID).Msg("failed to load room")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	limit := rate.Inf
	if h.limits.PerSecond > 0 {
		limit = rate.Limit(h.limits.PerSecond)
	}
	limiter := rate.NewLimiter(limit, h.limits.Burst)
	client := NewClient(conn, session, h.registry, memberID, limiter, h.logger)
	h.registry.Register(client)

	h.logger.Info().
		Str("room", roomID).
		Str("member", string(memberID)).
		Bool("reconnect", isReconnect).
		Msg("websocket connected")

	client.Run()
}
