package match

import (
	"math/rand/v2"

	"cardarena/internal/apperr"
	"cardarena/internal/game/card"
)

// PlayCard validates and applies a card play for slot. Nothing changes on error.
func (m *Match) PlayCard(slot int, cardID int64) error {
	if slot != m.CurrentPlayerIndex {
		return apperr.New(apperr.NotYourTurn, "it is not your turn")
	}
	p := &m.Players[slot]
	i := p.Hand.IndexOf(cardID)
	if i < 0 {
		return apperr.New(apperr.CardNotFound, "card %d is not in your hand", cardID)
	}
	if cost := p.Hand[i].Cost; cost > p.Coins {
		return apperr.New(apperr.InsufficientCoins, "not enough coins: required %d, available %d", cost, p.Coins)
	}

	c, _ := p.Hand.Take(cardID)
	p.Coins -= c.Cost
	p.PlayedCards.Add(c)

	// a play re-opens passing for both sides
	m.Players[0].HasPassed = false
	m.Players[1].HasPassed = false
	m.flipTurn()
	return nil
}

// Pass marks slot as passed and, unless the round is now over, flips the turn.
// There is no turn check: a pass made out of turn flips it as well.
func (m *Match) Pass(slot int) error {
	p := &m.Players[slot]
	if p.HasPassed {
		return apperr.New(apperr.AlreadyPassed, "you already passed this round")
	}
	p.HasPassed = true
	if !m.RoundOver() {
		m.flipTurn()
	}
	return nil
}

// RoundOver reports whether both players passed or both are out of coins.
func (m *Match) RoundOver() bool {
	a, b := m.Players[0], m.Players[1]
	return (a.HasPassed && b.HasPassed) || (a.Coins == 0 && b.Coins == 0)
}

// RoundResult describes how a round resolved.
type RoundResult struct {
	NetDamage [2]int // damage dealt by each slot after the opponent's defence
	Finished  bool
	Winner    int // slot index, valid when Finished
	Loser     int
	TieBreak  string // "", "damage", "coins" or "random"
}

// ResolveRound applies simultaneous damage and decides whether the match ends.
// r is only consulted for the final coin-flip tie-break.
func (m *Match) ResolveRound(r *rand.Rand) RoundResult {
	a, b := &m.Players[0], &m.Players[1]

	var res RoundResult
	res.NetDamage[0] = max(0, a.PlayedCards.TotalDamage()-b.PlayedCards.TotalDefence())
	res.NetDamage[1] = max(0, b.PlayedCards.TotalDamage()-a.PlayedCards.TotalDefence())

	b.HP = max(0, b.HP-res.NetDamage[0])
	a.HP = max(0, a.HP-res.NetDamage[1])
	a.HasPassed = false
	b.HasPassed = false

	switch {
	case a.HP == 0 && b.HP == 0:
		res.Finished = true
		res.Winner = doubleKnockoutWinner(m, res.NetDamage, r, &res.TieBreak)
	case a.HP == 0:
		res.Finished, res.Winner = true, 1
	case b.HP == 0:
		res.Finished, res.Winner = true, 0
	}
	res.Loser = 1 - res.Winner
	return res
}

func doubleKnockoutWinner(m *Match, net [2]int, r *rand.Rand, how *string) int {
	switch {
	case net[0] != net[1]:
		*how = "damage"
		if net[0] > net[1] {
			return 0
		}
		return 1
	case m.Players[0].Coins != m.Players[1].Coins:
		*how = "coins"
		if m.Players[0].Coins > m.Players[1].Coins {
			return 0
		}
		return 1
	default:
		*how = "random"
		return r.IntN(2)
	}
}

// Shortfall is how many cards slot needs to get back to a full hand.
func (m *Match) Shortfall(slot int) int {
	return max(0, m.Config.InitialCardsInHand-m.Players[slot].Hand.Size())
}

// AdvanceRound starts the next round. draws[i] tops up slot i's hand; a drawn
// card whose id is already in that hand is dropped so hand ids stay distinct.
func (m *Match) AdvanceRound(draws [2][]card.Card) {
	m.Round++
	m.flipTurn()
	for i := range m.Players {
		p := &m.Players[i]
		p.Coins += m.Config.CoinsPerRound
		p.PlayedCards = card.Pile{}
		p.HasPassed = false
		for _, c := range draws[i] {
			if !p.Hand.Contains(c.ID) {
				p.Hand.Add(c)
			}
		}
	}
}

// Finish moves the match to its terminal phase.
func (m *Match) Finish(winner int) {
	w, l := m.Players[winner].UserID, m.Players[1-winner].UserID
	m.IsFinished = true
	m.Phase = PhaseFinished
	m.WinnerID = &w
	m.LoserID = &l
}
