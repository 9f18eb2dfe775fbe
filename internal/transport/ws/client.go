package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"czarhouse/internal/app"
	"czarhouse/internal/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Size of the send channel buffer
	sendBufferSize = 256
)

// Client is one member's WebSocket connection to a room
type Client struct {
	conn     *websocket.Conn
	session  *app.Session
	registry *Registry
	memberID domain.MemberID
	limiter  *rate.Limiter
	send     chan []byte
	done     chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	logger   zerolog.Logger

	mu     sync.Mutex
	closed bool
	joined bool
}

// NewClient creates a new WebSocket client
func NewClient(conn *websocket.Conn, session *app.Session, registry *Registry, memberID domain.MemberID, limiter *rate.Limiter, logger zerolog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		conn:     conn,
		session:  session,
		registry: registry,
		memberID: memberID,
		limiter:  limiter,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.With().Str("room", string(session.ID())).Str("member", string(memberID)).Logger(),
	}
}

// MemberID returns the member this connection belongs to
func (c *Client) MemberID() domain.MemberID {
	return c.memberID
}

// Send encodes and queues a message
func (c *Client) Send(message any) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	c.sendRaw(data)
	return nil
}

func (c *Client) sendRaw(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.send <- data:
	default:
		c.logger.Warn().Msg("send buffer full, message dropped")
	}
}

// Close closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	c.cancel()
	close(c.done)
	return c.conn.Close()
}

// Run starts the client's read and write pumps
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// readPump pumps messages from the WebSocket connection. A dropped
// connection counts as leaving the room.
func (c *Client) readPump() {
	defer func() {
		current := c.registry.Unregister(c)
		if current && c.isJoined() {
			if err := c.session.Leave(context.WithoutCancel(c.ctx), c.memberID); err != nil && !errors.Is(err, domain.ErrNotFound) {
				c.logger.Warn().Err(err).Msg("failed to leave on disconnect")
			}
		}
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug().Err(err).Msg("websocket read error")
			}
			break
		}

		if !c.limiter.Allow() {
			c.sendError(ErrCodeRateLimited, "Too many messages")
			continue
		}
		if stop := c.handleMessage(message); stop {
			break
		}
	}
}

// writePump pumps messages from the send channel to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes one message and reports whether the connection
// should end
func (c *Client) handleMessage(data []byte) bool {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError(ErrCodeInvalidMessage, "Invalid message format")
		return false
	}

	switch msg.Type {
	case MsgPing:
		c.handlePing()
		return false
	case MsgJoin:
		c.handleJoin(msg.Payload)
		return false
	}

	if !c.isJoined() {
		c.sendError(ErrCodeNotJoined, "Join the room first")
		return false
	}

	var err error
	switch msg.Type {
	case MsgProfile:
		var p ProfilePayload
		if !c.decode(msg.Payload, &p) {
			return false
		}
		_, err = c.session.SetProfile(c.ctx, c.memberID, p.Name, p.Icon)
	case MsgConfigure:
		var p ConfigurePayload
		if !c.decode(msg.Payload, &p) {
			return false
		}
		err = c.session.Configure(c.ctx, c.memberID, app.ConfigureRequest{
			Edition:    p.Edition,
			Packs:      p.Packs,
			RotateCzar: p.RotateCzar,
			Open:       p.Open,
		})
	case MsgSubmit:
		var p SubmitPayload
		if !c.decode(msg.Payload, &p) {
			return false
		}
		_, err = c.session.Submit(c.ctx, c.memberID, p.Cards)
	case MsgStartReading:
		err = c.session.StartReading(c.ctx, c.memberID)
	case MsgReveal:
		index, ok := c.decodeIndex(msg.Payload)
		if !ok {
			return false
		}
		err = c.session.Reveal(c.ctx, c.memberID, index)
	case MsgSelectResponse:
		var p IndexPayload
		if !c.decode(msg.Payload, &p) {
			return false
		}
		err = c.session.SelectResponse(c.ctx, c.memberID, p.Index)
	case MsgSelectWinner:
		index, ok := c.decodeIndex(msg.Payload)
		if !ok {
			return false
		}
		_, err = c.session.SelectWinner(c.ctx, c.memberID, index)
	case MsgNextRound:
		err = c.session.NextRound(c.ctx, c.memberID)
	case MsgLeave:
		c.handleLeave()
		return true
	default:
		c.sendError(ErrCodeInvalidMessage, "Unknown message type")
		return false
	}

	if err != nil {
		c.sendDomainError(err)
	}
	return false
}

// handleJoin joins or rejoins the room and answers with the member's view
func (c *Client) handleJoin(payload json.RawMessage) {
	var p JoinPayload
	if !c.decode(payload, &p) {
		return
	}

	view, err := c.session.Join(c.ctx, c.memberID, p.Token, p.Name, p.Icon)
	if err != nil {
		c.sendDomainError(err)
		return
	}

	c.mu.Lock()
	c.joined = true
	c.mu.Unlock()

	c.Send(NewServerMessage(MsgConnected, &ConnectedPayload{
		MemberID: c.memberID,
		RoomID:   c.session.ID(),
		Room:     view,
	}))
}

func (c *Client) handleLeave() {
	if err := c.session.Leave(c.ctx, c.memberID); err != nil {
		c.sendDomainError(err)
	}
	c.mu.Lock()
	c.joined = false
	c.mu.Unlock()
}

// handlePing answers a keepalive and records the member as present
func (c *Client) handlePing() {
	if c.isJoined() {
		if err := c.session.Touch(c.ctx, c.memberID); err != nil {
			c.logger.Debug().Err(err).Msg("failed to record presence")
		}
	}
	c.Send(NewServerMessage(MsgPong, nil))
}

func (c *Client) isJoined() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joined
}

func (c *Client) decode(payload json.RawMessage, v any) bool {
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		c.sendError(ErrCodeInvalidMessage, "Invalid payload")
		return false
	}
	return true
}

func (c *Client) decodeIndex(payload json.RawMessage) (int, bool) {
	var p IndexPayload
	if !c.decode(payload, &p) {
		return 0, false
	}
	if p.Index == nil {
		c.sendError(ErrCodeInvalidMessage, "Index is required")
		return 0, false
	}
	return *p.Index, true
}

// sendDomainError reports an engine error to this client only
func (c *Client) sendDomainError(err error) {
	code := domain.KindOf(err)
	if code == domain.CodeInternal || code == domain.CodeStorage {
		c.logger.Error().Err(err).Msg("action failed")
	}
	c.sendError(code, err.Error())
}

// sendError sends an error message to the client
func (c *Client) sendError(code, message string) {
	c.Send(NewServerMessage(MsgError, &domain.ErrorPayload{
		Code:    code,
		Message: message,
	}))
}
