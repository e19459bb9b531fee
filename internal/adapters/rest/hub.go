package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ewilliams-labs/soundstage/internal/core/domain"
	"github.com/ewilliams-labs/soundstage/internal/core/ports"
)

// Message types on the engine socket.
const (
	MsgState       = "state"
	MsgLoadScene   = "load_scene"
	MsgUnloadScene = "unload_scene"
	MsgVisuals     = "visuals"
	MsgMoveAvatar  = "move_avatar"
	MsgAck         = "ack"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 32
)

// ErrNoEngine is returned by scene requests made while no engine is
// connected, and to pending ones when the last engine client disconnects.
var ErrNoEngine = errors.New("rest: engine disconnected")

// Message is the JSON envelope exchanged with engine clients.
type Message struct {
	ID          string          `json:"id,omitempty"`
	Type        string          `json:"type"`
	Scene       string          `json:"scene,omitempty"`
	Skybox      string          `json:"skybox,omitempty"`
	PostProcess string          `json:"post_process,omitempty"`
	Anchor      *domain.Anchor  `json:"anchor,omitempty"`
	Anchors     []domain.Anchor `json:"anchors,omitempty"`
	Error       string          `json:"error,omitempty"`
	State       *StateView      `json:"state,omitempty"`
}

// noEngineAck marks acks synthesised for requests orphaned by a disconnect.
const noEngineAck = "no engine connected"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub bridges the environment machine to engine clients over websockets.
// Scene commands wait for an ack and fail with ErrNoEngine when no client is
// connected; visuals, avatar moves and state are broadcast without one.
type Hub struct {
	logger     *zap.Logger
	ackTimeout time.Duration
	onAttach   func()

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	pending map[string]chan Message
}

var (
	_ ports.SceneLoader = (*Hub)(nil)
	_ ports.Visuals     = (*Hub)(nil)
	_ ports.Avatar      = (*Hub)(nil)
)

// NewHub builds a hub. ackTimeout of zero waits for acks indefinitely.
func NewHub(logger *zap.Logger, ackTimeout time.Duration) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:     logger,
		ackTimeout: ackTimeout,
		clients:    make(map[*wsClient]struct{}),
		pending:    make(map[string]chan Message),
	}
}

// OnEngineAttached registers fn to run when a client connects to a hub with
// no other clients. Call it before serving.
func (h *Hub) OnEngineAttached(fn func()) {
	h.onAttach = fn
}

// Clients reports the number of connected engine clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWS upgrades the request and serves one engine client until it leaves.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, sendBufferSize)}
	first := h.register(c)
	h.logger.Info("engine client connected", zap.String("remote", r.RemoteAddr))

	go h.writePump(c)
	if first && h.onAttach != nil {
		go h.onAttach()
	}
	h.readPump(c)
}

// register reports whether c is the only client.
func (h *Hub) register(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	return len(h.clients) == 1
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)

	var orphaned map[string]chan Message
	if len(h.clients) == 0 && len(h.pending) > 0 {
		orphaned = h.pending
		h.pending = make(map[string]chan Message)
	}
	h.mu.Unlock()

	for id, ch := range orphaned {
		ch <- Message{ID: id, Type: MsgAck, Error: noEngineAck}
	}
	h.logger.Info("engine client disconnected")
}

func (h *Hub) readPump(c *wsClient) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("engine client read failed", zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Warn("malformed engine message", zap.Error(err))
			continue
		}
		if msg.Type != MsgAck || msg.ID == "" {
			h.logger.Debug("ignoring engine message", zap.String("type", msg.Type))
			continue
		}
		h.resolve(msg)
	}
}

func (h *Hub) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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

func (h *Hub) resolve(msg Message) {
	h.mu.Lock()
	ch, ok := h.pending[msg.ID]
	delete(h.pending, msg.ID)
	h.mu.Unlock()

	if ok {
		ch <- msg
	}
}

// broadcast queues msg for every client. A client whose buffer is full
// misses the message.
func (h *Hub) broadcast(msg Message) int {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to encode engine message", zap.Error(err))
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	sent := 0
	for c := range h.clients {
		select {
		case c.send <- data:
			sent++
		default:
			h.logger.Warn("engine client send buffer full, dropping message", zap.String("type", msg.Type))
		}
	}
	return sent
}

// request broadcasts msg and waits for the first ack carrying its id.
func (h *Hub) request(ctx context.Context, msg Message) (Message, error) {
	msg.ID = uuid.NewString()
	ch := make(chan Message, 1)

	h.mu.Lock()
	if len(h.clients) == 0 {
		h.mu.Unlock()
		return Message{}, fmt.Errorf("rest: %s %s: %w", msg.Type, msg.Scene, ErrNoEngine)
	}
	h.pending[msg.ID] = ch
	h.mu.Unlock()

	if h.broadcast(msg) == 0 {
		h.forget(msg.ID)
		return Message{}, fmt.Errorf("rest: %s %s: no client accepted the command", msg.Type, msg.Scene)
	}

	var timeout <-chan time.Time
	if h.ackTimeout > 0 {
		timer := time.NewTimer(h.ackTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case ack := <-ch:
		if ack.Error == noEngineAck {
			return ack, fmt.Errorf("rest: %s %s: %w", msg.Type, msg.Scene, ErrNoEngine)
		}
		if ack.Error != "" {
			return ack, fmt.Errorf("rest: %s %s: engine error: %s", msg.Type, msg.Scene, ack.Error)
		}
		return ack, nil
	case <-timeout:
		h.forget(msg.ID)
		return Message{}, fmt.Errorf("rest: %s %s: no ack after %s", msg.Type, msg.Scene, h.ackTimeout)
	case <-ctx.Done():
		h.forget(msg.ID)
		return Message{}, fmt.Errorf("rest: %s %s: %w", msg.Type, msg.Scene, ctx.Err())
	}
}

func (h *Hub) forget(id string) {
	h.mu.Lock()
	delete(h.pending, id)
	h.mu.Unlock()
}

func (h *Hub) UnloadScene(ctx context.Context, scene string) error {
	_, err := h.request(ctx, Message{Type: MsgUnloadScene, Scene: scene})
	return err
}

// LoadSceneAdditive returns the anchors named in the engine's ack.
func (h *Hub) LoadSceneAdditive(ctx context.Context, scene string) ([]domain.Anchor, error) {
	ack, err := h.request(ctx, Message{Type: MsgLoadScene, Scene: scene})
	if err != nil {
		return nil, err
	}
	return ack.Anchors, nil
}

func (h *Hub) ApplyVisuals(_ context.Context, skybox, postProcess string) error {
	h.broadcast(Message{Type: MsgVisuals, Skybox: skybox, PostProcess: postProcess})
	return nil
}

func (h *Hub) MoveTo(_ context.Context, anchor domain.Anchor) error {
	h.broadcast(Message{Type: MsgMoveAvatar, Anchor: &anchor})
	return nil
}

// BroadcastState pushes a state view to every client.
func (h *Hub) BroadcastState(view StateView) {
	h.broadcast(Message{Type: MsgState, State: &view})
}
