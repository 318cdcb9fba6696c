package gameroom_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"cardarena/internal/game/card"
	"cardarena/internal/game/match"
	"cardarena/internal/ports"
	"cardarena/internal/services/gameroom"
	"cardarena/internal/store/memory"

	"github.com/stretchr/testify/require"
)

var errCatalogDown = errors.New("catalog down")

// scriptedCatalog hands out cards in a fixed order so tests know every hand.
type scriptedCatalog struct {
	mu    sync.Mutex
	cards []card.Card
	fail  bool
	calls int
}

func (c *scriptedCatalog) DrawRandomCards(_ context.Context, n int, exclude []int64) ([]card.Card, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.fail {
		return nil, errCatalogDown
	}
	skip := map[int64]bool{}
	for _, id := range exclude {
		skip[id] = true
	}
	var out []card.Card
	for _, cd := range c.cards {
		if len(out) == n {
			break
		}
		if !skip[cd.ID] {
			out = append(out, cd)
		}
	}
	return out, nil
}

func (c *scriptedCatalog) AllCards(context.Context) ([]card.Card, error) {
	return c.cards, nil
}

func (c *scriptedCatalog) setFail(v bool) {
	c.mu.Lock()
	c.fail = v
	c.mu.Unlock()
}

type push struct {
	conn    string
	event   string
	payload any
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

func (r *recorder) to(conn string) []push {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []push
	for _, p := range r.pushes {
		if p.conn == conn {
			out = append(out, p)
		}
	}
	return out
}

func (r *recorder) lastState(conn string) (match.PublicState, bool) {
	ps := r.to(conn)
	for i := len(ps) - 1; i >= 0; i-- {
		if st, ok := ps[i].payload.(match.PublicState); ok {
			return st, true
		}
	}
	return match.PublicState{}, false
}

type failingPersistence struct {
	*memory.Store
	createErr   error
	finalizeErr error
}

func (f *failingPersistence) CreateMatchRecord(ctx context.Context, a, b int64) (int64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	return f.Store.CreateMatchRecord(ctx, a, b)
}

func (f *failingPersistence) FinalizeMatchRecord(ctx context.Context, id, w, l int64) error {
	if f.finalizeErr != nil {
		return f.finalizeErr
	}
	return f.Store.FinalizeMatchRecord(ctx, id, w, l)
}

var (
	striker = card.Card{ID: 1, Name: "Striker", Cost: 5, Damage: 10, Defence: 0}
	filler  = func(id int64) card.Card {
		return card.Card{ID: id, Name: "Filler", Cost: 99, Damage: 1, Defence: 1}
	}
)

type fixture struct {
	engine    *gameroom.Engine
	scheduler *gameroom.TurnScheduler
	store     *memory.Store
	persist   *failingPersistence
	catalog   *scriptedCatalog
	bc        *recorder
	alice     ports.User
	bob       ports.User
}

func scenarioConfig() match.Config {
	return match.Config{
		InitialHP:          20,
		InitialCoins:       20,
		InitialCardsInHand: 4,
		CoinsPerRound:      8,
		TurnTimeLimit:      time.Hour,
	}
}

func newFixture(t *testing.T, cfg match.Config) *fixture {
	t.Helper()

	cards := []card.Card{striker}
	for id := int64(2); id <= 12; id++ {
		cards = append(cards, filler(id))
	}

	f := &fixture{
		scheduler: gameroom.NewTurnScheduler(),
		store:     memory.New(),
		catalog:   &scriptedCatalog{cards: cards},
		bc:        &recorder{},
	}
	f.persist = &failingPersistence{Store: f.store}
	f.alice = f.store.EnsureUser("alice")
	f.bob = f.store.EnsureUser("bob")
	f.engine = gameroom.NewEngine(cfg, gameroom.Deps{
		Registry:    gameroom.NewRegistry(),
		Scheduler:   f.scheduler,
		Catalog:     f.catalog,
		Identity:    f.store,
		Persistence: f.persist,
		Broadcaster: f.bc,
		Rand:        rand.New(rand.NewPCG(3, 4)),
		PortTimeout: time.Second,
	})
	t.Cleanup(f.scheduler.Stop)
	return f
}

func connOf(username string) string { return "conn-" + username }

// startJoined starts a match and joins both players.
func (f *fixture) startJoined(t *testing.T) *match.Match {
	t.Helper()
	ctx := context.Background()

	m, err := f.engine.StartMatch(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)
	_, err = f.engine.JoinMatch(ctx, connOf("alice"), m.ID, "alice")
	require.NoError(t, err)
	m, err = f.engine.JoinMatch(ctx, connOf("bob"), m.ID, "bob")
	require.NoError(t, err)
	return m
}

func currentConn(m *match.Match) string { return m.Players[m.CurrentPlayerIndex].ConnectionID }
func otherConn(m *match.Match) string   { return m.Players[1-m.CurrentPlayerIndex].ConnectionID }
