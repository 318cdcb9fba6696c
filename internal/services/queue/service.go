package queue

import (
	"context"
	"time"

	"cardarena/internal/apperr"
	"cardarena/internal/game/match"
	"cardarena/internal/ports"

	"github.com/armon/go-metrics"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

const (
	EventMatchFound     = "matchFound"
	EventMatchCancelled = "matchCancelled"
	EventGameStart      = "gameStart"
	EventGameError      = "gameError"

	startMatchTimeout = 15 * time.Second
)

// ============================================================================
// Data
// ============================================================================

// Entry is one waiting connection.
type Entry struct {
	ConnectionID string `json:"connectionId"`
	UserID       int64  `json:"userId"`
	Username     string `json:"username"`
}

// Pairing is a countdown-gated match offer between two entries.
type Pairing struct {
	ID        string
	Entries   [2]Entry
	FireAt    time.Time
	cancelled bool
	confirmed bool
	timer     *time.Timer
}

func (p *Pairing) has(connID string) bool {
	return p.Entries[0].ConnectionID == connID || p.Entries[1].ConnectionID == connID
}

// MatchStarter creates the match once a countdown completes.
type MatchStarter interface {
	StartMatch(ctx context.Context, player1ID, player2ID int64) (*match.Match, error)
}

// EnqueueResult is the outcome of Enqueue.
type EnqueueResult int

const (
	Queued EnqueueResult = iota
	AlreadyQueued
	AlreadyPaired
)

func (r EnqueueResult) String() string {
	switch r {
	case Queued:
		return "queued"
	case AlreadyQueued:
		return "already_queued"
	case AlreadyPaired:
		return "already_paired"
	}
	return "unknown"
}

// Payloads pushed to clients.
type MatchFound struct {
	PairingID        string `json:"pairingId"`
	StartTime        int64  `json:"startTime"` // unix millis
	CountdownSeconds int    `json:"countdownSeconds"`
}

// MatchCancelled is sent to both entries of a cancelled pairing.
type MatchCancelled struct {
	PairingID string `json:"pairingId"`
}

// GameStart tells a player which match to join.
type GameStart struct {
	PairingID  string `json:"pairingId"`
	MatchID    int64  `json:"matchId"`
	OpponentID int64  `json:"opponentId"`
}

// GameError reports a pairing whose match could not be started.
type GameError struct {
	PairingID string `json:"pairingId"`
	Message   string `json:"message"`
}

// Stats is a snapshot of the queue.
type Stats struct {
	Waiting  int `json:"waiting"`
	Pairings int `json:"pairings"`
}

// ============================================================================
// Actor messages
// ============================================================================

type actorMessage interface {
	isActorMessage()
}

type enqueueRequest struct {
	entry Entry
	reply chan EnqueueResult
}

func (enqueueRequest) isActorMessage() {}

type dequeueRequest struct {
	connID string
	reply  chan bool
}

func (dequeueRequest) isActorMessage() {}

type cancelRequest struct {
	connID string
	reply  chan bool
}

func (cancelRequest) isActorMessage() {}

type pairingDeadline struct{ pairingID string }

func (pairingDeadline) isActorMessage() {}

type pairingSettled struct{ pairingID string }

func (pairingSettled) isActorMessage() {}

type statsRequest struct{ reply chan Stats }

func (statsRequest) isActorMessage() {}

// ============================================================================
// The MatchmakingQueue actor
// ============================================================================

// MatchmakingQueue owns the FIFO queue and the live pairings. All state is touched
// only by the Run goroutine.
type MatchmakingQueue struct {
	queue    []Entry
	pairings map[string]*Pairing

	requestCh chan actorMessage
	done      chan struct{}
	baseCtx   context.Context

	starter     MatchStarter
	broadcaster ports.Broadcaster
	countdown   time.Duration
	logger      hclog.Logger
	now         func() time.Time
}

// NewMatchmakingQueue returns a queue that confirms pairings after countdown. Call Run to start it.
func NewMatchmakingQueue(starter MatchStarter, b ports.Broadcaster, countdown time.Duration, logger hclog.Logger) *MatchmakingQueue {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &MatchmakingQueue{
		queue:       make([]Entry, 0),
		pairings:    make(map[string]*Pairing),
		requestCh:   make(chan actorMessage),
		done:        make(chan struct{}),
		baseCtx:     context.Background(),
		starter:     starter,
		broadcaster: b,
		countdown:   countdown,
		logger:      logger,
		now:         time.Now,
	}
}

// Run is the actor loop. It returns when ctx is cancelled; pending countdowns are dropped.
func (m *MatchmakingQueue) Run(ctx context.Context) {
	m.baseCtx = ctx
	m.logger.Info("actor started, waiting for players")
	defer func() {
		for _, p := range m.pairings {
			if p.timer != nil {
				p.timer.Stop()
			}
		}
		close(m.done)
		m.logger.Info("actor stopped")
	}()

	for {
		select {
		case msg := <-m.requestCh:
			switch req := msg.(type) {
			case enqueueRequest:
				req.reply <- m.enqueue(req.entry)
			case dequeueRequest:
				req.reply <- m.dequeue(req.connID)
			case cancelRequest:
				req.reply <- m.cancel(req.connID)
			case pairingDeadline:
				m.fire(req.pairingID)
			case pairingSettled:
				delete(m.pairings, req.pairingID)
			case statsRequest:
				req.reply <- Stats{Waiting: len(m.queue), Pairings: len(m.pairings)}
			}
		case <-ctx.Done():
			return
		}
	}
}

// --- Public API ---

// Enqueue adds a connection to the queue. It is a no-op for a connection (or user)
// that is already waiting or paired.
func (m *MatchmakingQueue) Enqueue(e Entry) EnqueueResult {
	reply := make(chan EnqueueResult, 1)
	if !m.send(enqueueRequest{entry: e, reply: reply}) {
		return AlreadyQueued
	}
	return m.await(reply, AlreadyQueued)
}

// Dequeue removes a waiting connection. It reports whether anything was removed.
func (m *MatchmakingQueue) Dequeue(connID string) bool {
	reply := make(chan bool, 1)
	if !m.send(dequeueRequest{connID: connID, reply: reply}) {
		return false
	}
	return awaitBool(m, reply)
}

// Cancel cancels the unconfirmed pairing connID belongs to, if any.
func (m *MatchmakingQueue) Cancel(connID string) bool {
	reply := make(chan bool, 1)
	if !m.send(cancelRequest{connID: connID, reply: reply}) {
		return false
	}
	return awaitBool(m, reply)
}

// Stats returns the waiting and pairing counts.
func (m *MatchmakingQueue) Stats() Stats {
	reply := make(chan Stats, 1)
	if !m.send(statsRequest{reply: reply}) {
		return Stats{}
	}
	select {
	case s := <-reply:
		return s
	case <-m.done:
		return Stats{}
	}
}

func (m *MatchmakingQueue) send(msg actorMessage) bool {
	select {
	case m.requestCh <- msg:
		return true
	case <-m.done:
		return false
	}
}

func (m *MatchmakingQueue) await(reply chan EnqueueResult, fallback EnqueueResult) EnqueueResult {
	select {
	case r := <-reply:
		return r
	case <-m.done:
		return fallback
	}
}

func awaitBool(m *MatchmakingQueue, reply chan bool) bool {
	select {
	case r := <-reply:
		return r
	case <-m.done:
		return false
	}
}

// ============================================================================
// Actor internals
// ============================================================================

func (m *MatchmakingQueue) enqueue(e Entry) EnqueueResult {
	for _, q := range m.queue {
		if q.ConnectionID == e.ConnectionID || q.UserID == e.UserID {
			return AlreadyQueued
		}
	}
	for _, p := range m.pairings {
		if p.has(e.ConnectionID) || p.Entries[0].UserID == e.UserID || p.Entries[1].UserID == e.UserID {
			return AlreadyPaired
		}
	}
	m.queue = append(m.queue, e)
	m.logger.Info("player added to queue", "conn_id", e.ConnectionID, "user_id", e.UserID, "queue_size", len(m.queue))
	m.tryPairing()
	return Queued
}

func (m *MatchmakingQueue) dequeue(connID string) bool {
	for i, q := range m.queue {
		if q.ConnectionID == connID {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			m.logger.Info("player removed from queue", "conn_id", connID, "queue_size", len(m.queue))
			return true
		}
	}
	return false
}

func (m *MatchmakingQueue) cancel(connID string) bool {
	for id, p := range m.pairings {
		if !p.has(connID) || p.confirmed {
			continue
		}
		p.cancelled = true
		if p.timer != nil {
			p.timer.Stop()
		}
		delete(m.pairings, id)
		metrics.IncrCounter([]string{"queue", "cancelled"}, 1)
		m.logger.Info("pairing cancelled", "pairing_id", id, "by", connID)
		for _, e := range p.Entries {
			m.push(e.ConnectionID, EventMatchCancelled, MatchCancelled{PairingID: id})
		}
		return true
	}
	return false
}

// tryPairing pops the two longest-waiting entries while at least two are queued.
func (m *MatchmakingQueue) tryPairing() {
	for len(m.queue) >= 2 {
		a, b := m.queue[0], m.queue[1]
		m.queue = m.queue[2:]

		p := &Pairing{
			ID:      uuid.NewString(),
			Entries: [2]Entry{a, b},
			FireAt:  m.now().Add(m.countdown),
		}
		m.pairings[p.ID] = p
		metrics.IncrCounter([]string{"queue", "paired"}, 1)
		m.logger.Info("match found", "pairing_id", p.ID, "player1", a.Username, "player2", b.Username)

		found := MatchFound{
			PairingID:        p.ID,
			StartTime:        p.FireAt.UnixMilli(),
			CountdownSeconds: int(m.countdown.Round(time.Second) / time.Second),
		}
		m.push(a.ConnectionID, EventMatchFound, found)
		m.push(b.ConnectionID, EventMatchFound, found)

		id := p.ID
		p.timer = time.AfterFunc(m.countdown, func() {
			select {
			case m.requestCh <- pairingDeadline{pairingID: id}:
			case <-m.done:
			}
		})
	}
}

// fire confirms a pairing whose countdown ran out. The match is created off the actor
// goroutine so a slow store never stalls the queue.
func (m *MatchmakingQueue) fire(pairingID string) {
	p, ok := m.pairings[pairingID]
	if !ok || p.cancelled {
		return
	}
	p.confirmed = true
	go m.confirm(p.ID, p.Entries)
}

func (m *MatchmakingQueue) confirm(pairingID string, entries [2]Entry) {
	defer func() {
		select {
		case m.requestCh <- pairingSettled{pairingID: pairingID}:
		case <-m.done:
		}
	}()

	ctx, cancel := context.WithTimeout(m.baseCtx, startMatchTimeout)
	defer cancel()

	created, err := m.starter.StartMatch(ctx, entries[0].UserID, entries[1].UserID)
	if err != nil {
		m.logger.Error("could not start match", "pairing_id", pairingID, "error", err)
		for _, e := range entries {
			m.push(e.ConnectionID, EventGameError, GameError{PairingID: pairingID, Message: apperr.Message(err)})
		}
		return
	}

	m.logger.Info("pairing confirmed", "pairing_id", pairingID, "match_id", created.ID)
	for i, e := range entries {
		m.push(e.ConnectionID, EventGameStart, GameStart{
			PairingID:  pairingID,
			MatchID:    created.ID,
			OpponentID: entries[1-i].UserID,
		})
	}
}

func (m *MatchmakingQueue) push(connID, event string, payload any) {
	if m.broadcaster != nil {
		m.broadcaster.Push(connID, event, payload)
	}
}
