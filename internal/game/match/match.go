// Package match holds the state of a single two-player match and the rules that move it
// forward. It does no I/O: catalog draws, persistence and timers belong to the caller.
package match

import (
	"cardarena/internal/game/card"
)

// Phase is the lifecycle state of a match.
type Phase string

const (
	PhaseWaitingForPlayers Phase = "waiting_for_players"
	PhaseInProgress        Phase = "in_progress"
	PhaseFinished          Phase = "finished"
)

// PlayerState is one side of the table.
type PlayerState struct {
	UserID       int64
	Username     string
	ConnectionID string // empty until the player joins
	HP           int
	Coins        int
	Hand         card.Pile
	PlayedCards  card.Pile
	HasPassed    bool
}

func (p PlayerState) Joined() bool { return p.ConnectionID != "" }

// Match is owned by the registry. Callers mutate it only while holding its lock.
type Match struct {
	ID                 int64
	Players            [2]PlayerState
	CurrentPlayerIndex int
	Round              int
	Phase              Phase
	IsFinished         bool
	WinnerID           *int64
	LoserID            *int64
	Config             Config

	// Seq counts committed actions. A turn deadline armed at one seq is stale at any other.
	Seq uint64
}

// New builds a match in the waiting phase. first is the slot that acts first.
func New(id int64, cfg Config, p1, p2 PlayerState, first int) *Match {
	m := &Match{
		ID:                 id,
		Players:            [2]PlayerState{p1, p2},
		CurrentPlayerIndex: first & 1,
		Round:              1,
		Phase:              PhaseWaitingForPlayers,
		Config:             cfg,
	}
	for i := range m.Players {
		m.Players[i].HP = cfg.InitialHP
		m.Players[i].Coins = cfg.InitialCoins
		m.Players[i].HasPassed = false
		m.Players[i].PlayedCards = card.Pile{}
	}
	return m
}

// Clone returns a deep copy; rules can run on the copy and be committed or dropped.
func (m *Match) Clone() *Match {
	c := *m
	for i := range c.Players {
		c.Players[i].Hand = m.Players[i].Hand.Clone()
		c.Players[i].PlayedCards = m.Players[i].PlayedCards.Clone()
	}
	if m.WinnerID != nil {
		w := *m.WinnerID
		c.WinnerID = &w
	}
	if m.LoserID != nil {
		l := *m.LoserID
		c.LoserID = &l
	}
	return &c
}

// SlotByConnection returns the slot bound to connID.
func (m *Match) SlotByConnection(connID string) (int, bool) {
	if connID == "" {
		return -1, false
	}
	for i := range m.Players {
		if m.Players[i].ConnectionID == connID {
			return i, true
		}
	}
	return -1, false
}

// SlotByUsername returns the slot owned by username.
func (m *Match) SlotByUsername(username string) (int, bool) {
	for i := range m.Players {
		if m.Players[i].Username == username {
			return i, true
		}
	}
	return -1, false
}

// Current is the player to act.
func (m *Match) Current() *PlayerState { return &m.Players[m.CurrentPlayerIndex] }

func (m *Match) flipTurn() { m.CurrentPlayerIndex = 1 - m.CurrentPlayerIndex }

// Bind attaches a connection to a slot.
func (m *Match) Bind(slot int, connID string) {
	m.Players[slot].ConnectionID = connID
}

// Touch marks that an action was committed.
func (m *Match) Touch() { m.Seq++ }
