package gameroom

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"cardarena/internal/apperr"
	"cardarena/internal/game/card"
	"cardarena/internal/game/match"
	"cardarena/internal/ports"

	"github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"
)

const (
	EventGameStateUpdate = "gameStateUpdate"

	SubjectMatchStarted  = "match.started"
	SubjectMatchFinished = "match.finished"

	defaultPortTimeout = 5 * time.Second
	finalizeAttempts   = 3
)

// End reasons carried by the match.finished event.
const (
	ReasonKnockout  = "knockout"
	ReasonForfeit   = "forfeit"
	ReasonAbandoned = "abandoned"
)

// Deps groups what the engine talks to. Events and Logger are optional.
type Deps struct {
	Registry    *Registry
	Scheduler   *TurnScheduler
	Catalog     ports.Catalog
	Identity    ports.Identity
	Persistence ports.Persistence
	Broadcaster ports.Broadcaster
	Events      ports.EventPublisher
	Logger      hclog.Logger
	Rand        *rand.Rand
	PortTimeout time.Duration
}

// Engine applies player commands to live matches.
type Engine struct {
	registry    *Registry
	scheduler   *TurnScheduler
	catalog     ports.Catalog
	identity    ports.Identity
	store       ports.Persistence
	broadcaster ports.Broadcaster
	events      ports.EventPublisher
	cfg         match.Config
	logger      hclog.Logger
	portTimeout time.Duration

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewEngine wires an engine over d. Nil optional deps get defaults.
func NewEngine(cfg match.Config, d Deps) *Engine {
	e := &Engine{
		registry:    d.Registry,
		scheduler:   d.Scheduler,
		catalog:     d.Catalog,
		identity:    d.Identity,
		store:       d.Persistence,
		broadcaster: d.Broadcaster,
		events:      d.Events,
		cfg:         cfg,
		logger:      d.Logger,
		portTimeout: d.PortTimeout,
		rng:         d.Rand,
	}
	if e.registry == nil {
		e.registry = NewRegistry()
	}
	if e.scheduler == nil {
		e.scheduler = NewTurnScheduler()
	}
	if e.logger == nil {
		e.logger = hclog.NewNullLogger()
	}
	if e.portTimeout <= 0 {
		e.portTimeout = defaultPortTimeout
	}
	if e.rng == nil {
		seed := uint64(time.Now().UnixNano())
		e.rng = rand.New(rand.NewPCG(seed, 1))
	}
	return e
}

// Registry returns the live match store.
func (e *Engine) Registry() *Registry   { return e.registry }
func (e *Engine) Config() match.Config { return e.cfg }

// ============================================================================
// Commands
// ============================================================================

// StartMatch creates and registers a match between two users. Nothing is registered
// unless every dependency call succeeds.
func (e *Engine) StartMatch(ctx context.Context, player1ID, player2ID int64) (*match.Match, error) {
	var players [2]match.PlayerState
	for i, uid := range [2]int64{player1ID, player2ID} {
		u, err := e.lookupUser(ctx, uid)
		if err != nil {
			return nil, err
		}
		hand, err := e.draw(ctx, e.cfg.InitialCardsInHand, nil)
		if err != nil {
			return nil, err
		}
		players[i] = match.PlayerState{UserID: u.ID, Username: u.Username, Hand: hand}
	}

	pctx, cancel := context.WithTimeout(ctx, e.portTimeout)
	id, err := e.store.CreateMatchRecord(pctx, player1ID, player2ID)
	cancel()
	if err != nil {
		return nil, apperr.Wrap(err, apperr.PersistenceUnavailable, "could not create match record")
	}

	e.rngMu.Lock()
	first := e.rng.IntN(2)
	e.rngMu.Unlock()

	m := match.New(id, e.cfg, players[0], players[1], first)
	m.Phase = match.PhaseInProgress
	e.registry.Put(id, m)
	metrics.SetGauge([]string{"match", "live"}, float32(e.registry.Len()))

	// Nobody else can see the match yet, but arm under its lock like every other path.
	if held, release, ok := e.registry.Acquire(id); ok {
		e.armTurn(held)
		release()
	}

	metrics.IncrCounter([]string{"match", "started"}, 1)
	e.logger.Info("match started", "match_id", id, "player1", players[0].Username,
		"player2", players[1].Username, "first", first)
	e.publish(SubjectMatchStarted, map[string]any{
		"matchId":     id,
		"players":     []int64{player1ID, player2ID},
		"firstPlayer": players[first].UserID,
	})
	return m.Clone(), nil
}

// JoinMatch binds connID to the slot whose username matches.
func (e *Engine) JoinMatch(ctx context.Context, connID string, matchID int64, username string) (*match.Match, error) {
	m, release, ok := e.registry.Acquire(matchID)
	if !ok {
		return nil, apperr.New(apperr.MatchNotFound, "match %d not found", matchID)
	}
	defer release()

	slot, ok := m.SlotByUsername(username)
	if !ok {
		return nil, apperr.New(apperr.PlayerNotFound, "player %q is not part of match %d", username, matchID)
	}

	next := m.Clone()
	next.Bind(slot, connID)
	e.registry.commit(matchID, next)

	e.logger.Debug("player joined", "match_id", matchID, "slot", slot, "conn_id", connID)
	e.broadcast(next)
	return next.Clone(), nil
}

// PlayCard commits a card from the caller's hand.
func (e *Engine) PlayCard(ctx context.Context, connID string, matchID int64, cardID int64) (*match.Match, error) {
	m, release, ok := e.registry.Acquire(matchID)
	if !ok {
		return nil, apperr.New(apperr.MatchNotFound, "match %d not found", matchID)
	}
	defer release()

	slot, ok := m.SlotByConnection(connID)
	if !ok {
		return nil, apperr.New(apperr.PlayerNotFound, "you are not a player of match %d", matchID)
	}

	next := m.Clone()
	if err := next.PlayCard(slot, cardID); err != nil {
		return nil, err
	}
	played := next.Players[slot].PlayedCards
	if err := e.settle(ctx, next); err != nil {
		return nil, err
	}
	e.logger.Debug("card played", "match_id", matchID, "slot", slot, "card", played[len(played)-1].String())
	return next.Clone(), nil
}

// PassRound passes for the caller.
func (e *Engine) PassRound(ctx context.Context, connID string, matchID int64) (*match.Match, error) {
	m, release, ok := e.registry.Acquire(matchID)
	if !ok {
		return nil, apperr.New(apperr.MatchNotFound, "match %d not found", matchID)
	}
	defer release()

	slot, ok := m.SlotByConnection(connID)
	if !ok {
		return nil, apperr.New(apperr.PlayerNotFound, "you are not a player of match %d", matchID)
	}

	next := m.Clone()
	if err := next.Pass(slot); err != nil {
		return nil, err
	}
	if err := e.settle(ctx, next); err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

// HandleTimeout forces a pass for whoever is to act in matchID. It is a no-op for a
// match that is gone or finished.
func (e *Engine) HandleTimeout(ctx context.Context, matchID int64) error {
	m, release, ok := e.registry.Acquire(matchID)
	if !ok {
		return nil
	}
	defer release()
	return e.forcePass(ctx, m)
}

// onTurnDeadline is the scheduler callback for a deadline armed at seq.
func (e *Engine) onTurnDeadline(matchID int64, seq uint64) {
	m, release, ok := e.registry.Acquire(matchID)
	if !ok {
		return
	}
	defer release()

	if m.Seq != seq || m.IsFinished {
		e.logger.Debug("stale turn deadline ignored", "match_id", matchID, "armed_seq", seq, "seq", m.Seq)
		return
	}
	e.logger.Info("turn time limit reached", "match_id", matchID,
		"user_id", m.Current().UserID, "round", m.Round)

	ctx, cancel := context.WithTimeout(context.Background(), e.portTimeout*finalizeAttempts)
	defer cancel()
	if err := e.forcePass(ctx, m); err != nil {
		e.logger.Error("forced pass failed", "match_id", matchID, "error", err)
		// keep the clock running so the match cannot stall on a flaky dependency
		e.armTurn(m)
	}
}

// HandleDisconnect ends the match connID plays in, if any, as a forfeit.
// It reports whether a match was ended.
func (e *Engine) HandleDisconnect(ctx context.Context, connID string) bool {
	matchID, ok := e.registry.FindByConnection(connID)
	if !ok {
		return false
	}
	m, release, ok := e.registry.Acquire(matchID)
	if !ok {
		return false
	}
	defer release()

	slot, ok := m.SlotByConnection(connID)
	if !ok {
		// rebound to a newer connection while we waited
		return false
	}
	e.logger.Info("player disconnected, forfeiting", "match_id", matchID, "user_id", m.Players[slot].UserID)

	next := m.Clone()
	next.Players[slot].ConnectionID = ""
	e.finish(ctx, next, 1-slot, ReasonForfeit)
	return true
}

// ============================================================================
// Internals (all called with the match lock held)
// ============================================================================

func (e *Engine) forcePass(ctx context.Context, m *match.Match) error {
	slot := m.CurrentPlayerIndex
	next := m.Clone()

	if !next.Players[slot].Joined() {
		e.logger.Info("player never joined, match abandoned", "match_id", m.ID, "user_id", next.Players[slot].UserID)
		e.finish(ctx, next, 1-slot, ReasonAbandoned)
		return nil
	}
	if err := next.Pass(slot); err != nil {
		if !apperr.Is(err, apperr.AlreadyPassed) {
			return err
		}
		next.CurrentPlayerIndex = 1 - slot
	}
	return e.settle(ctx, next)
}

// settle finishes an action on next: resolves the round if it is over, commits,
// re-arms the turn clock and broadcasts. On error nothing is committed.
func (e *Engine) settle(ctx context.Context, next *match.Match) error {
	next.Touch()

	if next.RoundOver() {
		e.rngMu.Lock()
		res := next.ResolveRound(e.rng)
		e.rngMu.Unlock()

		e.logger.Debug("round resolved", "match_id", next.ID, "round", next.Round,
			"net_damage", res.NetDamage, "hp", [2]int{next.Players[0].HP, next.Players[1].HP})

		if res.Finished {
			e.finish(ctx, next, res.Winner, ReasonKnockout)
			return nil
		}

		var draws [2][]card.Card
		for i := range next.Players {
			cards, err := e.draw(ctx, next.Shortfall(i), next.Players[i].Hand.IDs())
			if err != nil {
				return err
			}
			draws[i] = cards
		}
		next.AdvanceRound(draws)
	}

	e.registry.commit(next.ID, next)
	e.armTurn(next)
	e.broadcast(next)
	return nil
}

// finish ends the match: clock first, then the record, then eviction and one broadcast.
func (e *Engine) finish(ctx context.Context, next *match.Match, winner int, reason string) {
	e.scheduler.Cancel(next.ID)

	winnerID, loserID := next.Players[winner].UserID, next.Players[1-winner].UserID
	if err := e.finalizeRecord(ctx, next.ID, winnerID, loserID); err != nil {
		e.logger.Error("could not persist match result", "match_id", next.ID,
			"winner_id", winnerID, "loser_id", loserID, "error", err)
	}

	next.Finish(winner)
	e.registry.commit(next.ID, next)
	e.registry.evict(next.ID)
	metrics.SetGauge([]string{"match", "live"}, float32(e.registry.Len()))

	metrics.IncrCounterWithLabels([]string{"match", "finished"}, 1, []metrics.Label{{Name: "reason", Value: reason}})
	metrics.AddSample([]string{"match", "rounds"}, float32(next.Round))
	e.logger.Info("match finished", "match_id", next.ID, "winner_id", winnerID,
		"loser_id", loserID, "rounds", next.Round, "reason", reason)
	e.broadcast(next)
	e.publish(SubjectMatchFinished, map[string]any{
		"matchId":  next.ID,
		"winnerId": winnerID,
		"loserId":  loserID,
		"rounds":   next.Round,
		"reason":   reason,
	})
}

func (e *Engine) finalizeRecord(ctx context.Context, matchID, winnerID, loserID int64) error {
	var err error
	backoff := 100 * time.Millisecond
	for attempt := 1; attempt <= finalizeAttempts; attempt++ {
		pctx, cancel := context.WithTimeout(ctx, e.portTimeout)
		err = e.store.FinalizeMatchRecord(pctx, matchID, winnerID, loserID)
		cancel()
		if err == nil {
			return nil
		}
		e.logger.Warn("finalize match record failed", "match_id", matchID, "attempt", attempt, "error", err)
		if attempt < finalizeAttempts {
			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return apperr.Wrap(ctx.Err(), apperr.PersistenceUnavailable, "could not finalize match %d", matchID)
			}
		}
	}
	return apperr.Wrap(err, apperr.PersistenceUnavailable, "could not finalize match %d", matchID)
}

func (e *Engine) armTurn(m *match.Match) {
	id, seq := m.ID, m.Seq
	e.scheduler.Arm(id, m.Config.TurnTimeLimit, func() { e.onTurnDeadline(id, seq) })
}

func (e *Engine) broadcast(m *match.Match) {
	if e.broadcaster == nil {
		return
	}
	for slot := range m.Players {
		if conn := m.Players[slot].ConnectionID; conn != "" {
			e.broadcaster.Push(conn, EventGameStateUpdate, m.View(slot))
		}
	}
}

func (e *Engine) draw(ctx context.Context, n int, exclude []int64) ([]card.Card, error) {
	if n <= 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.portTimeout)
	defer cancel()
	cards, err := e.catalog.DrawRandomCards(ctx, n, exclude)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CatalogUnavailable, "could not draw cards")
	}
	return cards, nil
}

func (e *Engine) lookupUser(ctx context.Context, id int64) (ports.User, error) {
	ctx, cancel := context.WithTimeout(ctx, e.portTimeout)
	defer cancel()
	u, err := e.identity.LookupUser(ctx, id)
	if err != nil {
		return ports.User{}, apperr.Wrap(err, apperr.IdentityUnavailable, "could not resolve user %d", id)
	}
	return u, nil
}

func (e *Engine) publish(subject string, payload any) {
	if e.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.portTimeout)
	defer cancel()
	if err := e.events.Publish(ctx, subject, payload); err != nil {
		e.logger.Warn("could not publish event", "subject", subject, "error", err)
	}
}
