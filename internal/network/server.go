package network

import (
	"context"
	"errors"
	"net/http"

	"cardarena/internal/auth"
	"cardarena/internal/ports"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
)

// ProvisionFunc creates a user on first sight; used in dev mode only.
type ProvisionFunc func(ctx context.Context, username string) (ports.User, error)

// Server upgrades authenticated HTTP requests into hub clients.
type Server struct {
	hub       *Hub
	verifier  *auth.Verifier
	identity  ports.Identity
	provision ProvisionFunc
	upgrader  websocket.Upgrader
	logger    hclog.Logger
}

// NewServer returns the websocket endpoint. provision may be nil.
func NewServer(hub *Hub, verifier *auth.Verifier, identity ports.Identity, provision ProvisionFunc, logger hclog.Logger) *Server {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Server{
		hub:       hub,
		verifier:  verifier,
		identity:  identity,
		provision: provision,
		logger:    logger,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// ServeHTTP authenticates the request, upgrades it and registers the client.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	username, err := s.verifier.FromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := s.resolve(r.Context(), username)
	switch {
	case errors.Is(err, ports.ErrUserNotFound):
		http.Error(w, "unknown user", http.StatusUnauthorized)
		return
	case err != nil:
		s.logger.Error("identity lookup failed", "user", username, "error", err)
		http.Error(w, "identity unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "error", err)
		return
	}

	c := newClient(uuid.NewString(), user, conn, s.hub)
	if !s.hub.add(c) {
		conn.Close()
		return
	}
	s.logger.Info("client connected", "conn_id", c.id, "user", user.Username, "remote", r.RemoteAddr)

	go c.writeLoop()
	s.hub.handler.OnConnect(c)
	go c.readLoop()
}

func (s *Server) resolve(ctx context.Context, username string) (ports.User, error) {
	u, err := s.identity.ResolveUser(ctx, username)
	if errors.Is(err, ports.ErrUserNotFound) && s.provision != nil {
		return s.provision(ctx, username)
	}
	return u, err
}
