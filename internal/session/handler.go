// Package session routes inbound websocket commands to the match engine and the
// matchmaking queue, and cleans up after dropped connections.
package session

import (
	"context"
	"encoding/json"
	"time"

	"cardarena/internal/apperr"
	"cardarena/internal/game/match"
	"cardarena/internal/network"
	"cardarena/internal/ports"
	"cardarena/internal/services/queue"

	"github.com/hashicorp/go-hclog"
)

const (
	EventError    = "error"
	EventQueued   = "queued"
	EventDequeued = "dequeued"

	commandTimeout = 10 * time.Second
)

// Engine is the part of the match engine driven by player commands.
type Engine interface {
	JoinMatch(ctx context.Context, connID string, matchID int64, username string) (*match.Match, error)
	PlayCard(ctx context.Context, connID string, matchID, cardID int64) (*match.Match, error)
	PassRound(ctx context.Context, connID string, matchID int64) (*match.Match, error)
	HandleDisconnect(ctx context.Context, connID string) bool
}

// Matchmaker is the part of the matchmaking queue commands use.
type Matchmaker interface {
	Enqueue(e queue.Entry) queue.EnqueueResult
	Dequeue(connID string) bool
	Cancel(connID string) bool
}

// Peer is the sender of a command: a connection id plus the identity it authenticated as.
type Peer interface {
	ID() string
	User() ports.User
}

// CommandHandlerFunc handles one inbound command type.
type CommandHandlerFunc func(ctx context.Context, h *GameHandler, p Peer, payload json.RawMessage) error

// GameHandler routes client commands to the engine and the queue.
type GameHandler struct {
	engine Engine
	queue  Matchmaker
	out    ports.Broadcaster
	router map[string]CommandHandlerFunc
	logger hclog.Logger
}

// NewGameHandler replies to clients through out.
func NewGameHandler(engine Engine, mm Matchmaker, out ports.Broadcaster, logger hclog.Logger) *GameHandler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	h := &GameHandler{
		engine: engine,
		queue:  mm,
		out:    out,
		router: make(map[string]CommandHandlerFunc),
		logger: logger,
	}
	h.registerMatchHandlers()
	h.registerQueueHandlers()
	return h
}

// --- network.EventHandler ---

func (h *GameHandler) OnConnect(c *network.Client) {
	h.logger.Info("session opened", "conn_id", c.ID(), "user", c.User().Username)
}

func (h *GameHandler) OnDisconnect(c *network.Client) {
	h.Disconnect(c.ID())
}

func (h *GameHandler) OnMessage(c *network.Client, msg network.Message) {
	h.Handle(c, msg)
}

// Handle dispatches msg. A rejected command produces an error event for the sender only.
func (h *GameHandler) Handle(p Peer, msg network.Message) {
	handler, ok := h.router[msg.Type]
	if !ok {
		h.reject(p, msg.Type, apperr.New(apperr.InvalidPayload, "unknown command %q", msg.Type))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := handler(ctx, h, p, msg.Payload); err != nil {
		h.reject(p, msg.Type, err)
	}
}

// Disconnect forfeits any live match of connID and clears it from matchmaking.
func (h *GameHandler) Disconnect(connID string) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	dequeued := h.queue.Dequeue(connID)
	cancelled := h.queue.Cancel(connID)
	forfeited := h.engine.HandleDisconnect(ctx, connID)
	h.logger.Info("session closed", "conn_id", connID,
		"dequeued", dequeued, "pairing_cancelled", cancelled, "forfeited", forfeited)
}

// ErrorPayload is the body of an error event.
type ErrorPayload struct {
	Command string      `json:"command,omitempty"`
	Code    apperr.Kind `json:"code"`
	Message string      `json:"message"`
}

func (h *GameHandler) reject(p Peer, command string, err error) {
	code := apperr.KindOf(err)
	if code == "" {
		code = apperr.Internal
		h.logger.Error("command failed", "conn_id", p.ID(), "command", command, "error", err)
	} else {
		h.logger.Debug("command rejected", "conn_id", p.ID(), "command", command, "code", code)
	}
	h.out.Push(p.ID(), EventError, ErrorPayload{Command: command, Code: code, Message: apperr.Message(err)})
}

func decode(payload json.RawMessage, v any) error {
	msg := network.Message{Payload: payload}
	if err := msg.Decode(v); err != nil {
		return apperr.Wrap(err, apperr.InvalidPayload, "malformed payload")
	}
	return nil
}
