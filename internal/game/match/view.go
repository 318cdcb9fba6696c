package match

import "cardarena/internal/game/card"

// PlayerView is what a recipient sees of one player. Cards is nil for the opponent.
type PlayerView struct {
	UserID      int64       `json:"userId"`
	Username    string      `json:"username"`
	HP          int         `json:"hp"`
	Coins       int         `json:"coins"`
	CardsCount  int         `json:"cardsCount"`
	Cards       []card.Card `json:"cards"`
	PlayedCards []card.Card `json:"playedCards"`
	HasPassed   bool        `json:"hasPassed"`
}

// PublicState is the redacted snapshot pushed to one recipient. Players[0] is always
// the recipient and Players[1] the opponent; YourIndex maps back to the real slot.
type PublicState struct {
	ID                 int64         `json:"id"`
	Round              int           `json:"round"`
	Phase              Phase         `json:"phase"`
	IsFinished         bool          `json:"isFinished"`
	WinnerID           *int64        `json:"winnerId,omitempty"`
	LoserID            *int64        `json:"loserId,omitempty"`
	CurrentPlayerIndex int           `json:"currentPlayerIndex"`
	YourIndex          int           `json:"yourIndex"`
	YourTurn           bool          `json:"yourTurn"`
	TurnTimeLimitSecs  int           `json:"turnTimeLimitSeconds"`
	Players            [2]PlayerView `json:"players"`
}

// View builds the state as seen from slot.
func (m *Match) View(slot int) PublicState {
	self, opp := m.Players[slot], m.Players[1-slot]
	st := PublicState{
		ID:                 m.ID,
		Round:              m.Round,
		Phase:              m.Phase,
		IsFinished:         m.IsFinished,
		WinnerID:           m.WinnerID,
		LoserID:            m.LoserID,
		CurrentPlayerIndex: m.CurrentPlayerIndex,
		YourIndex:          slot,
		YourTurn:           !m.IsFinished && m.CurrentPlayerIndex == slot,
		TurnTimeLimitSecs:  int(m.Config.TurnTimeLimit.Seconds()),
	}
	st.Players[0] = playerView(self, true)
	st.Players[1] = playerView(opp, false)
	return st
}

func playerView(p PlayerState, owner bool) PlayerView {
	v := PlayerView{
		UserID:      p.UserID,
		Username:    p.Username,
		HP:          p.HP,
		Coins:       p.Coins,
		CardsCount:  p.Hand.Size(),
		PlayedCards: p.PlayedCards.Clone(),
		HasPassed:   p.HasPassed,
	}
	if owner {
		v.Cards = p.Hand.Clone()
	}
	return v
}
