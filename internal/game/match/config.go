package match

import (
	"fmt"
	"time"
)

// Config is fixed when a match is created and never changes afterwards.
type Config struct {
	InitialHP          int           `json:"initialHp"`
	InitialCoins       int           `json:"initialCoins"`
	InitialCardsInHand int           `json:"initialCardsInHand"`
	CoinsPerRound      int           `json:"coinsGainedPerRound"`
	TurnTimeLimit      time.Duration `json:"turnTimeLimit"`
}

// DefaultConfig returns the standard rules.
func DefaultConfig() Config {
	return Config{
		InitialHP:          30,
		InitialCoins:       3,
		InitialCardsInHand: 4,
		CoinsPerRound:      2,
		TurnTimeLimit:      30 * time.Second,
	}
}

// Validate rejects rules a match cannot be played with.
func (c Config) Validate() error {
	switch {
	case c.InitialHP <= 0:
		return fmt.Errorf("initial hp must be positive, got %d", c.InitialHP)
	case c.InitialCoins < 0:
		return fmt.Errorf("initial coins must not be negative, got %d", c.InitialCoins)
	case c.InitialCardsInHand <= 0:
		return fmt.Errorf("initial cards in hand must be positive, got %d", c.InitialCardsInHand)
	case c.CoinsPerRound < 0:
		return fmt.Errorf("coins per round must not be negative, got %d", c.CoinsPerRound)
	case c.TurnTimeLimit <= 0:
		return fmt.Errorf("turn time limit must be positive, got %s", c.TurnTimeLimit)
	}
	return nil
}
