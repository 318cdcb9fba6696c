package session

import (
	"context"
	"encoding/json"

	"cardarena/internal/apperr"
	"cardarena/internal/services/queue"
)

type queueStatus struct {
	Status string `json:"status"`
}

func (h *GameHandler) registerQueueHandlers() {
	h.router["enqueue"] = handleEnqueue
	h.router["dequeue"] = handleDequeue
	h.router["cancelMatch"] = handleCancelMatch
}

func handleEnqueue(_ context.Context, h *GameHandler, p Peer, _ json.RawMessage) error {
	u := p.User()
	res := h.queue.Enqueue(queue.Entry{ConnectionID: p.ID(), UserID: u.ID, Username: u.Username})
	if res == queue.AlreadyPaired {
		return apperr.New(apperr.AlreadyPaired, "already paired with an opponent")
	}
	h.out.Push(p.ID(), EventQueued, queueStatus{Status: res.String()})
	return nil
}

func handleDequeue(_ context.Context, h *GameHandler, p Peer, _ json.RawMessage) error {
	status := "not_queued"
	if h.queue.Dequeue(p.ID()) {
		status = "left"
	}
	h.out.Push(p.ID(), EventDequeued, queueStatus{Status: status})
	return nil
}

// cancelMatch has no direct reply; both sides receive matchCancelled from the queue.
func handleCancelMatch(_ context.Context, h *GameHandler, p Peer, _ json.RawMessage) error {
	if !h.queue.Cancel(p.ID()) {
		return apperr.New(apperr.PairingNotFound, "no pending pairing to cancel")
	}
	return nil
}
