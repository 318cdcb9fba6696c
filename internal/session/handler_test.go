package session_test

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"cardarena/internal/apperr"
	"cardarena/internal/game/card"
	"cardarena/internal/game/match"
	"cardarena/internal/network"
	"cardarena/internal/ports"
	"cardarena/internal/services/gameroom"
	"cardarena/internal/services/queue"
	"cardarena/internal/session"
	"cardarena/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type peer struct {
	id   string
	user ports.User
}

func (p peer) ID() string        { return p.id }
func (p peer) User() ports.User { return p.user }

type push struct {
	conn, event string
	payload     any
}

type recorder struct {
	mu     sync.Mutex
	pushes []push
}

func (r *recorder) Push(conn, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushes = append(r.pushes, push{conn, event, payload})
}

func (r *recorder) last(conn, event string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.pushes) - 1; i >= 0; i-- {
		if p := r.pushes[i]; p.conn == conn && p.event == event {
			return p.payload, true
		}
	}
	return nil, false
}

func (r *recorder) count(conn string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.pushes {
		if p.conn == conn {
			n++
		}
	}
	return n
}

type world struct {
	handler *session.GameHandler
	engine  *gameroom.Engine
	queue   *queue.MatchmakingQueue
	out     *recorder
	alice   peer
	bob     peer
}

func newWorld(t *testing.T) *world {
	t.Helper()
	return newWorldWithCountdown(t, 10*time.Millisecond)
}

func newWorldWithCountdown(t *testing.T, countdown time.Duration) *world {
	t.Helper()
	store := memory.New()
	cat, err := card.LoadDefaultCatalog()
	require.NoError(t, err)

	out := &recorder{}
	sched := gameroom.NewTurnScheduler()
	t.Cleanup(sched.Stop)

	cfg := match.DefaultConfig()
	cfg.TurnTimeLimit = time.Hour
	engine := gameroom.NewEngine(cfg, gameroom.Deps{
		Registry:    gameroom.NewRegistry(),
		Scheduler:   sched,
		Catalog:     cat,
		Identity:    store,
		Persistence: store,
		Broadcaster: out,
		Rand:        rand.New(rand.NewPCG(1, 2)),
	})

	q := queue.NewMatchmakingQueue(engine, out, countdown, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go q.Run(ctx)
	t.Cleanup(cancel)

	return &world{
		handler: session.NewGameHandler(engine, q, out, nil),
		engine:  engine,
		queue:   q,
		out:     out,
		alice:   peer{id: "c-alice", user: store.EnsureUser("alice")},
		bob:     peer{id: "c-bob", user: store.EnsureUser("bob")},
	}
}

func cmd(t *testing.T, typ string, payload any) network.Message {
	t.Helper()
	m, err := network.NewMessage(typ, payload)
	require.NoError(t, err)
	return m
}

func (w *world) errorCode(conn string) apperr.Kind {
	p, ok := w.out.last(conn, session.EventError)
	if !ok {
		return ""
	}
	return p.(session.ErrorPayload).Code
}

func TestQueueToMatch(t *testing.T) {
	w := newWorld(t)

	w.handler.Handle(w.alice, cmd(t, "enqueue", nil))
	p, ok := w.out.last(w.alice.id, session.EventQueued)
	require.True(t, ok)
	assert.JSONEq(t, `{"status":"queued"}`, mustJSON(t, p))

	w.handler.Handle(w.alice, cmd(t, "enqueue", nil))
	p, _ = w.out.last(w.alice.id, session.EventQueued)
	assert.JSONEq(t, `{"status":"already_queued"}`, mustJSON(t, p))

	w.handler.Handle(w.bob, cmd(t, "enqueue", nil))

	var start queue.GameStart
	require.Eventually(t, func() bool {
		p, ok := w.out.last(w.bob.id, queue.EventGameStart)
		if ok {
			start = p.(queue.GameStart)
		}
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, w.alice.user.ID, start.OpponentID)

	w.handler.Handle(w.alice, cmd(t, "joinMatch", map[string]any{"matchId": start.MatchID, "username": "alice"}))
	w.handler.Handle(w.bob, cmd(t, "joinMatch", map[string]any{"matchId": start.MatchID}))
	assert.Empty(t, w.errorCode(w.alice.id))
	assert.Empty(t, w.errorCode(w.bob.id))

	st, ok := w.out.last(w.bob.id, gameroom.EventGameStateUpdate)
	require.True(t, ok)
	state := st.(match.PublicState)
	assert.Equal(t, "bob", state.Players[0].Username)
	assert.Len(t, state.Players[0].Cards, 4)
	assert.Nil(t, state.Players[1].Cards)

	m, ok := w.engine.Registry().Get(start.MatchID)
	require.True(t, ok)
	current := w.alice
	if m.Players[m.CurrentPlayerIndex].UserID == w.bob.user.ID {
		current = w.bob
	}
	other := w.bob
	if current == w.bob {
		other = w.alice
	}

	before := w.out.count(current.id)
	w.handler.Handle(other, cmd(t, "playCard", map[string]any{"matchId": start.MatchID, "cardId": 1}))
	assert.Equal(t, apperr.NotYourTurn, w.errorCode(other.id))
	assert.Equal(t, before, w.out.count(current.id), "rejections reach the issuer only")

	w.handler.Handle(current, cmd(t, "passRound", map[string]any{"matchId": start.MatchID}))
	assert.Empty(t, w.errorCode(current.id))
	w.handler.Handle(current, cmd(t, "passRound", map[string]any{"matchId": start.MatchID}))
	assert.Equal(t, apperr.AlreadyPassed, w.errorCode(current.id))

	w.handler.Disconnect(other.id)
	_, live := w.engine.Registry().Get(start.MatchID)
	assert.False(t, live, "disconnect forfeits the match")

	st, _ = w.out.last(current.id, gameroom.EventGameStateUpdate)
	final := st.(match.PublicState)
	assert.True(t, final.IsFinished)
	require.NotNil(t, final.WinnerID)
	assert.Equal(t, current.user.ID, *final.WinnerID)
}

func TestJoinAsSomeoneElse(t *testing.T) {
	w := newWorld(t)
	m, err := w.engine.StartMatch(context.Background(), w.alice.user.ID, w.bob.user.ID)
	require.NoError(t, err)

	w.handler.Handle(w.alice, cmd(t, "joinMatch", map[string]any{"matchId": m.ID, "username": "bob"}))
	assert.Equal(t, apperr.Unauthorized, w.errorCode(w.alice.id))
}

func TestRejections(t *testing.T) {
	w := newWorld(t)

	w.handler.Handle(w.alice, network.Message{Type: "dance"})
	assert.Equal(t, apperr.InvalidPayload, w.errorCode(w.alice.id))

	w.handler.Handle(w.alice, network.Message{Type: "playCard", Payload: json.RawMessage(`{"matchId":"x"}`)})
	assert.Equal(t, apperr.InvalidPayload, w.errorCode(w.alice.id))

	w.handler.Handle(w.alice, cmd(t, "passRound", map[string]any{"matchId": 999}))
	assert.Equal(t, apperr.MatchNotFound, w.errorCode(w.alice.id))

	w.handler.Handle(w.alice, cmd(t, "cancelMatch", nil))
	assert.Equal(t, apperr.PairingNotFound, w.errorCode(w.alice.id))

	w.handler.Handle(w.alice, cmd(t, "dequeue", nil))
	p, _ := w.out.last(w.alice.id, session.EventDequeued)
	assert.JSONEq(t, `{"status":"not_queued"}`, mustJSON(t, p))
}

func TestQueueStateRejections(t *testing.T) {
	w := newWorldWithCountdown(t, time.Hour)
	w.handler.Handle(w.alice, cmd(t, "enqueue", nil))
	w.handler.Handle(w.bob, cmd(t, "enqueue", nil))
	require.Equal(t, 1, w.queue.Stats().Pairings)

	w.handler.Handle(w.alice, cmd(t, "enqueue", nil))
	assert.Equal(t, apperr.AlreadyPaired, w.errorCode(w.alice.id))

	w.handler.Handle(w.bob, cmd(t, "cancelMatch", nil))
	assert.Empty(t, w.errorCode(w.bob.id))
	w.handler.Handle(w.bob, cmd(t, "cancelMatch", nil))
	assert.Equal(t, apperr.PairingNotFound, w.errorCode(w.bob.id))
}

func TestDisconnectLeavesQueue(t *testing.T) {
	w := newWorld(t)
	w.handler.Handle(w.alice, cmd(t, "enqueue", nil))
	require.Equal(t, 1, w.queue.Stats().Waiting)

	w.handler.Disconnect(w.alice.id)
	assert.Equal(t, queue.Stats{}, w.queue.Stats())
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
