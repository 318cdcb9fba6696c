package card

import "fmt"

// Card is an immutable catalog entry. Values are copied into hands, never shared by pointer.
type Card struct {
	ID          int64  `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	ImageURL    string `json:"imageUrl" yaml:"imageUrl"`
	Cost        int    `json:"cost" yaml:"cost"`
	Damage      int    `json:"damage" yaml:"damage"`
	Defence     int    `json:"defence" yaml:"defence"`
}

func (c Card) String() string {
	return fmt.Sprintf("#%d %s (cost %d, dmg %d, def %d)", c.ID, c.Name, c.Cost, c.Damage, c.Defence)
}

// ---- Validação ----

type cardValidator func(Card) error

func validateID(c Card) error {
	if c.ID <= 0 {
		return fmt.Errorf("invalid card id: %d", c.ID)
	}
	return nil
}

func validateName(c Card) error {
	if c.Name == "" {
		return fmt.Errorf("card %d has no name", c.ID)
	}
	return nil
}

func validateStats(c Card) error {
	if c.Cost < 0 || c.Damage < 0 || c.Defence < 0 {
		return fmt.Errorf("card %d (%s) has negative stats", c.ID, c.Name)
	}
	return nil
}

// Validate runs every card validator and returns the first failure.
func Validate(c Card) error {
	for _, v := range []cardValidator{validateID, validateName, validateStats} {
		if err := v(c); err != nil {
			return err
		}
	}
	return nil
}
