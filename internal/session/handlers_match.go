package session

import (
	"context"
	"encoding/json"

	"cardarena/internal/apperr"
)

type joinMatchPayload struct {
	MatchID  int64  `json:"matchId"`
	Username string `json:"username"`
}

type playCardPayload struct {
	MatchID int64 `json:"matchId"`
	CardID  int64 `json:"cardId"`
}

type passRoundPayload struct {
	MatchID int64 `json:"matchId"`
}

func (h *GameHandler) registerMatchHandlers() {
	h.router["joinMatch"] = handleJoinMatch
	h.router["playCard"] = handlePlayCard
	h.router["passRound"] = handlePassRound
}

// The engine broadcasts the resulting state itself; successful commands need no reply.

func handleJoinMatch(ctx context.Context, h *GameHandler, p Peer, payload json.RawMessage) error {
	var req joinMatchPayload
	if err := decode(payload, &req); err != nil {
		return err
	}
	username := p.User().Username
	if req.Username != "" && req.Username != username {
		return apperr.New(apperr.Unauthorized, "cannot join as another user")
	}
	_, err := h.engine.JoinMatch(ctx, p.ID(), req.MatchID, username)
	return err
}

func handlePlayCard(ctx context.Context, h *GameHandler, p Peer, payload json.RawMessage) error {
	var req playCardPayload
	if err := decode(payload, &req); err != nil {
		return err
	}
	_, err := h.engine.PlayCard(ctx, p.ID(), req.MatchID, req.CardID)
	return err
}

func handlePassRound(ctx context.Context, h *GameHandler, p Peer, payload json.RawMessage) error {
	var req passRoundPayload
	if err := decode(payload, &req); err != nil {
		return err
	}
	_, err := h.engine.PassRound(ctx, p.ID(), req.MatchID)
	return err
}
