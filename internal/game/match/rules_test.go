package match_test

import (
	"math/rand/v2"
	"testing"
	"time"

	"cardarena/internal/apperr"
	"cardarena/internal/game/card"
	"cardarena/internal/game/match"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	striker = card.Card{ID: 1, Name: "Striker", Cost: 5, Damage: 10, Defence: 0}
	wall    = card.Card{ID: 2, Name: "Wall", Cost: 3, Damage: 0, Defence: 6}
	cheap   = card.Card{ID: 3, Name: "Cheap", Cost: 1, Damage: 2, Defence: 1}
	pricey  = card.Card{ID: 4, Name: "Pricey", Cost: 50, Damage: 30, Defence: 30}
)

func testConfig() match.Config {
	return match.Config{
		InitialHP:          20,
		InitialCoins:       20,
		InitialCardsInHand: 4,
		CoinsPerRound:      8,
		TurnTimeLimit:      time.Second,
	}
}

func newTestMatch(first int) *match.Match {
	p1 := match.PlayerState{UserID: 10, Username: "alice", Hand: card.Pile{striker, wall, cheap, pricey}}
	p2 := match.PlayerState{UserID: 20, Username: "bob", Hand: card.Pile{striker, wall, cheap, pricey}}
	m := match.New(1, testConfig(), p1, p2, first)
	m.Bind(0, "conn-a")
	m.Bind(1, "conn-b")
	return m
}

func rng() *rand.Rand { return rand.New(rand.NewPCG(1, 2)) }

func TestPlayCardValidation(t *testing.T) {
	tests := []struct {
		name   string
		slot   int
		cardID int64
		want   apperr.Kind
	}{
		{"not your turn", 1, striker.ID, apperr.NotYourTurn},
		{"card not in hand", 0, 99, apperr.CardNotFound},
		{"too expensive", 0, pricey.ID, apperr.InsufficientCoins},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMatch(0)
			before := m.Clone()

			err := m.PlayCard(tt.slot, tt.cardID)
			require.Error(t, err)
			assert.Equal(t, tt.want, apperr.KindOf(err))
			assert.Equal(t, before, m, "a rejected play must not change the match")
		})
	}
}

func TestPlayCardMovesCardAndFlipsTurn(t *testing.T) {
	m := newTestMatch(0)
	m.Players[1].HasPassed = true

	require.NoError(t, m.PlayCard(0, striker.ID))

	p := m.Players[0]
	assert.Equal(t, 15, p.Coins)
	assert.False(t, p.Hand.Contains(striker.ID))
	assert.True(t, p.PlayedCards.Contains(striker.ID))
	assert.Equal(t, 1, m.CurrentPlayerIndex)
	assert.False(t, m.Players[1].HasPassed, "a play re-opens passing")
}

func TestPassTwiceFails(t *testing.T) {
	m := newTestMatch(0)

	require.NoError(t, m.Pass(0))
	assert.Equal(t, 1, m.CurrentPlayerIndex)

	err := m.Pass(0)
	assert.Equal(t, apperr.AlreadyPassed, apperr.KindOf(err))
}

func TestRoundOver(t *testing.T) {
	m := newTestMatch(0)
	assert.False(t, m.RoundOver())

	m.Players[0].HasPassed, m.Players[1].HasPassed = true, true
	assert.True(t, m.RoundOver())

	m = newTestMatch(0)
	m.Players[0].Coins, m.Players[1].Coins = 0, 0
	assert.True(t, m.RoundOver())
}

func TestStrikeThenDoublePassDamagesDefender(t *testing.T) {
	m := newTestMatch(0)

	require.NoError(t, m.PlayCard(0, striker.ID))
	require.NoError(t, m.Pass(1))
	require.NoError(t, m.Pass(0))
	require.True(t, m.RoundOver())

	res := m.ResolveRound(rng())
	assert.False(t, res.Finished)
	assert.Equal(t, [2]int{10, 0}, res.NetDamage)
	assert.Equal(t, 10, m.Players[1].HP)
	assert.Equal(t, 20, m.Players[0].HP)
	assert.False(t, m.Players[0].HasPassed)
	assert.False(t, m.Players[1].HasPassed)
}

func TestDefenceAbsorbsDamage(t *testing.T) {
	m := newTestMatch(0)
	m.Players[0].PlayedCards = card.Pile{striker}
	m.Players[1].PlayedCards = card.Pile{wall}

	res := m.ResolveRound(rng())
	assert.Equal(t, [2]int{4, 0}, res.NetDamage)
	assert.Equal(t, 16, m.Players[1].HP)
	assert.Equal(t, 20, m.Players[0].HP, "defence never turns into healing or negative damage")
}

func TestResolveRoundOutcomes(t *testing.T) {
	tests := []struct {
		name       string
		hp         [2]int
		played     [2]card.Pile
		coins      [2]int
		wantWinner int
		tieBreak   string
	}{
		{
			name:       "single knockout",
			hp:         [2]int{5, 30},
			played:     [2]card.Pile{{cheap}, {striker}},
			coins:      [2]int{1, 1},
			wantWinner: 1,
		},
		{
			name:       "double knockout, higher net damage wins",
			hp:         [2]int{9, 12},
			played:     [2]card.Pile{{striker, cheap}, {{ID: 8, Damage: 10}}},
			coins:      [2]int{0, 5},
			wantWinner: 0,
			tieBreak:   "damage",
		},
		{
			name:       "double knockout, equal damage, more coins wins",
			hp:         [2]int{10, 10},
			played:     [2]card.Pile{{striker}, {striker}},
			coins:      [2]int{2, 7},
			wantWinner: 1,
			tieBreak:   "coins",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMatch(0)
			for i := range m.Players {
				m.Players[i].HP = tt.hp[i]
				m.Players[i].PlayedCards = tt.played[i]
				m.Players[i].Coins = tt.coins[i]
			}

			res := m.ResolveRound(rng())
			require.True(t, res.Finished)
			assert.Equal(t, tt.wantWinner, res.Winner)
			assert.Equal(t, 1-tt.wantWinner, res.Loser)
			assert.Equal(t, tt.tieBreak, res.TieBreak)
			assert.GreaterOrEqual(t, m.Players[0].HP, 0)
			assert.GreaterOrEqual(t, m.Players[1].HP, 0)
		})
	}
}

func TestDoubleKnockoutRandomTieBreak(t *testing.T) {
	winners := map[int]bool{}
	r := rng()
	for i := 0; i < 64; i++ {
		m := newTestMatch(0)
		m.Players[0].HP, m.Players[1].HP = 10, 10
		m.Players[0].PlayedCards = card.Pile{striker}
		m.Players[1].PlayedCards = card.Pile{striker}
		m.Players[0].Coins, m.Players[1].Coins = 3, 3

		res := m.ResolveRound(r)
		require.True(t, res.Finished)
		assert.Equal(t, "random", res.TieBreak)
		winners[res.Winner] = true
	}
	assert.Len(t, winners, 2, "both sides should win some coin flips")
}

func TestAdvanceRound(t *testing.T) {
	m := newTestMatch(0)
	require.NoError(t, m.PlayCard(0, striker.ID))
	require.NoError(t, m.Pass(1))
	require.NoError(t, m.Pass(0))
	m.ResolveRound(rng())

	assert.Equal(t, 1, m.Shortfall(0))
	assert.Equal(t, 0, m.Shortfall(1))

	opener := m.CurrentPlayerIndex
	refill := card.Card{ID: 5, Name: "Refill", Cost: 2, Damage: 2, Defence: 2}
	m.AdvanceRound([2][]card.Card{{refill}, nil})

	assert.Equal(t, 2, m.Round)
	assert.Equal(t, 1-opener, m.CurrentPlayerIndex)
	assert.Equal(t, 15+8, m.Players[0].Coins)
	assert.Equal(t, 20+8, m.Players[1].Coins)
	assert.Empty(t, m.Players[0].PlayedCards)
	assert.Equal(t, 4, m.Players[0].Hand.Size())
	assert.True(t, m.Players[0].Hand.Contains(refill.ID))
}

func TestAdvanceRoundSkipsCardsAlreadyInHand(t *testing.T) {
	m := newTestMatch(0)
	refill := card.Card{ID: 5, Name: "Refill", Cost: 2, Damage: 2, Defence: 2}

	m.AdvanceRound([2][]card.Card{{striker, refill}, {refill}})

	assert.Equal(t, []int64{striker.ID, wall.ID, cheap.ID, pricey.ID, refill.ID}, m.Players[0].Hand.IDs())
	assert.Equal(t, 5, m.Players[1].Hand.Size())
}

func TestFinish(t *testing.T) {
	m := newTestMatch(0)
	m.Finish(1)

	assert.True(t, m.IsFinished)
	assert.Equal(t, match.PhaseFinished, m.Phase)
	require.NotNil(t, m.WinnerID)
	assert.Equal(t, int64(20), *m.WinnerID)
	assert.Equal(t, int64(10), *m.LoserID)
}

func TestCloneIsIndependent(t *testing.T) {
	m := newTestMatch(0)
	c := m.Clone()

	require.NoError(t, c.PlayCard(0, striker.ID))
	assert.True(t, m.Players[0].Hand.Contains(striker.ID))
	assert.Empty(t, m.Players[0].PlayedCards)
	assert.Equal(t, 20, m.Players[0].Coins)
}

func TestPassOutOfTurnFlipsTurn(t *testing.T) {
	m := newTestMatch(0)

	require.NoError(t, m.Pass(1))
	assert.Equal(t, 1, m.CurrentPlayerIndex)
	assert.True(t, m.Players[1].HasPassed)
	assert.False(t, m.RoundOver())
}
