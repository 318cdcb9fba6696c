package card

import (
	"context"
	_ "embed"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed cards.yaml
var embeddedCards []byte

type catalogFile struct {
	Cards []Card `yaml:"cards"`
}

// ParseCatalog decodes and validates a YAML card list. Ids must be unique.
func ParseCatalog(data []byte) ([]Card, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	seen := make(map[int64]struct{}, len(f.Cards))
	for _, c := range f.Cards {
		if err := Validate(c); err != nil {
			return nil, err
		}
		if _, dup := seen[c.ID]; dup {
			return nil, fmt.Errorf("duplicate card id %d", c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	sort.Slice(f.Cards, func(i, j int) bool { return f.Cards[i].ID < f.Cards[j].ID })
	return f.Cards, nil
}

// DefaultCards returns the embedded base set.
func DefaultCards() ([]Card, error) {
	return ParseCatalog(embeddedCards)
}

// Draw picks up to n distinct cards from all, skipping any id in exclude.
// It returns fewer than n cards when the pool is too small.
func Draw(r *rand.Rand, all []Card, n int, exclude []int64) []Card {
	if n <= 0 {
		return nil
	}
	skip := make(map[int64]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	pool := make(Pile, 0, len(all))
	for _, c := range all {
		if _, ok := skip[c.ID]; !ok {
			pool = append(pool, c)
		}
	}
	pool.Shuffle(r)
	if n > len(pool) {
		n = len(pool)
	}
	return pool[:n:n]
}

// Catalog is the in-process card source. It is safe for concurrent use.
type Catalog struct {
	mu    sync.Mutex
	cards []Card
	rng   *rand.Rand
}

// NewCatalog draws from cards with r, or a time-seeded source when r is nil.
func NewCatalog(cards []Card, r *rand.Rand) *Catalog {
	if r == nil {
		seed := uint64(time.Now().UnixNano())
		r = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return &Catalog{cards: cards, rng: r}
}

// LoadDefaultCatalog builds a Catalog over the embedded base set.
func LoadDefaultCatalog() (*Catalog, error) {
	cards, err := DefaultCards()
	if err != nil {
		return nil, err
	}
	return NewCatalog(cards, nil), nil
}

// DrawRandomCards returns up to n distinct cards whose ids are not in exclude.
func (c *Catalog) DrawRandomCards(_ context.Context, n int, exclude []int64) ([]Card, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Draw(c.rng, c.cards, n, exclude), nil
}

func (c *Catalog) AllCards(_ context.Context) ([]Card, error) {
	out := make([]Card, len(c.cards))
	copy(out, c.cards)
	return out, nil
}
