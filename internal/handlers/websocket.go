package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chess-arena/internal/auth"
	"chess-arena/internal/game"
	"chess-arena/internal/match"
)

// Routes multiplexed over one socket.
const (
	RouteGame    = "game"
	RouteGeneral = "general"
	RouteInvites = "invites"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Envelope is the wire frame: every message names the route it belongs to and
// an action within it.
type Envelope struct {
	Route  string          `json:"route"`
	Action string          `json:"action"`
	Value  json.RawMessage `json:"value,omitempty"`
}

type outbound struct {
	Route  string `json:"route"`
	Action string `json:"action"`
	Value  any    `json:"value,omitempty"`
}

// Client is one websocket session. The identity is resolved once at upgrade
// and holds for the socket's lifetime; re-authenticating means reconnecting.
type Client struct {
	id       string
	identity game.PlayerIdentity
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	log      *zap.Logger

	// Close classification, written by readPump before it unregisters.
	byChoice bool

	mu     sync.Mutex
	gameID int64
	color  game.Color
	inGame bool
}

func (c *Client) ID() string                    { return c.id }
func (c *Client) Identity() game.PlayerIdentity { return c.identity }

func (c *Client) SendGame(action string, value any)    { c.sendRoute(RouteGame, action, value) }
func (c *Client) SendGeneral(action string, value any) { c.sendRoute(RouteGeneral, action, value) }
func (c *Client) SendInvites(action string, value any) { c.sendRoute(RouteInvites, action, value) }

// sendRoute queues a frame without blocking. A full buffer means the consumer
// stalled; the frame is dropped and the stall surfaces as a closure later.
func (c *Client) sendRoute(route, action string, value any) {
	data, err := json.Marshal(outbound{Route: route, Action: action, Value: value})
	if err != nil {
		c.log.Error("marshal outbound frame", zap.String("action", action), zap.Error(err))
		return
	}
	select {
	case c.send <- data:
	default:
		c.log.Warn("send buffer full, dropping frame", zap.String("action", action))
	}
}

// SubscribeGame attaches the {gameId, color} back-reference.
func (c *Client) SubscribeGame(gameID int64, color game.Color) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gameID, c.color, c.inGame = gameID, color, true
}

// UnsubscribeGame clears the back-reference.
func (c *Client) UnsubscribeGame() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gameID, c.color, c.inGame = 0, "", false
}

// GameSub reads the back-reference.
func (c *Client) GameSub() (int64, game.Color, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gameID, c.color, c.inGame
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			// Normal closure and "going away" mean the player left the page
			// on purpose; everything else is a dropped link.
			c.byChoice = websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
			return
		}
		c.dispatch(data)
	}
}

func (c *Client) dispatch(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.SendGeneral(match.MsgPrintError, match.PrintErrorPayload{Text: "malformed message"})
		return
	}

	switch env.Route {
	case RouteGame:
		c.hub.router.Handle(context.Background(), c, env.Action, env.Value)
	case RouteInvites:
		c.hub.invites.Handle(context.Background(), c, env.Action, env.Value)
	default:
		c.SendGeneral(match.MsgPrintError, match.PrintErrorPayload{Text: "unknown route: " + env.Route})
	}
}

func (c *Client) writePump() {
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
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

// Hub tracks the live sockets. Register, unregister and the closure fan-out
// all run on the Run goroutine, so a socket is never torn down twice.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	clients    map[*Client]bool

	coord   *match.Coordinator
	router  *match.Router
	invites *InviteManager
	log     *zap.Logger
}

func NewHub(coord *match.Coordinator, router *match.Router, invites *InviteManager, logger *zap.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		coord:      coord,
		router:     router,
		invites:    invites,
		log:        logger.Named("ws"),
	}
}

// Run processes socket lifecycle events until the process exits.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.log.Info("socket open",
				zap.String("connID", client.id),
				zap.String("player", client.identity.Key()),
				zap.Int("sockets", len(h.clients)))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; !ok {
				continue
			}
			delete(h.clients, client)
			close(client.send)
			h.invites.ClientClosed(client)
			h.coord.HandleSocketClosure(client, client.byChoice)
			h.log.Info("socket closed",
				zap.String("connID", client.id),
				zap.Bool("byChoice", client.byChoice),
				zap.Int("sockets", len(h.clients)))
		}
	}
}

// WebSocketHandler upgrades HTTP requests into game sockets.
type WebSocketHandler struct {
	hub      *Hub
	auth     *auth.Service
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewWebSocketHandler(hub *Hub, authSvc *auth.Service, allowedOrigins []string, logger *zap.Logger) *WebSocketHandler {
	allowAll := false
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		origins[o] = true
	}

	return &WebSocketHandler{
		hub:  hub,
		auth: authSvc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowAll {
					return true
				}
				origin := r.Header.Get("Origin")
				return origin == "" || origins[origin]
			},
		},
		log: logger.Named("ws"),
	}
}

func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	identity := h.auth.IdentityFromRequest(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		return
	}

	id := uuid.NewString()
	client := &Client{
		id:       id,
		identity: identity,
		hub:      h.hub,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		log:      h.log.With(zap.String("connID", id)),
	}

	h.hub.register <- client
	go client.writePump()
	go client.readPump()
}
