package card

import (
	"math/rand/v2"
)

// Pile is an ordered set of cards, used for hands and for the cards played in a round.
type Pile []Card

// Size returns the number of cards.
func (p Pile) Size() int { return len(p) }

// IndexOf returns the position of the card with the given id, or -1.
func (p Pile) IndexOf(id int64) int {
	for i, c := range p {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// Contains reports whether a card with id is in the pile.
func (p Pile) Contains(id int64) bool { return p.IndexOf(id) >= 0 }

// Take removes the card with the given id and returns it.
func (p *Pile) Take(id int64) (Card, bool) {
	i := p.IndexOf(id)
	if i < 0 {
		return Card{}, false
	}
	c := (*p)[i]
	*p = append((*p)[:i:i], (*p)[i+1:]...)
	return c, true
}

// Add appends cards.
func (p *Pile) Add(cards ...Card) {
	*p = append(*p, cards...)
}

// IDs lists card ids in pile order.
func (p Pile) IDs() []int64 {
	ids := make([]int64, len(p))
	for i, c := range p {
		ids[i] = c.ID
	}
	return ids
}

// TotalDamage sums the damage of every card.
func (p Pile) TotalDamage() int {
	total := 0
	for _, c := range p {
		total += c.Damage
	}
	return total
}

// TotalDefence sums the defence of every card.
func (p Pile) TotalDefence() int {
	total := 0
	for _, c := range p {
		total += c.Defence
	}
	return total
}

// Clone returns a copy that shares no backing array with p. A nil pile stays nil-safe.
func (p Pile) Clone() Pile {
	out := make(Pile, len(p))
	copy(out, p)
	return out
}

// Shuffle reorders the pile in place.
func (p Pile) Shuffle(r *rand.Rand) {
	for i := len(p) - 1; i > 0; i-- {
		j := r.IntN(i + 1)
		p[i], p[j] = p[j], p[i]
	}
}
