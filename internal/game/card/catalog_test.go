package card_test

import (
	"context"
	"math/rand/v2"
	"testing"

	"cardarena/internal/game/card"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRand() *rand.Rand { return rand.New(rand.NewPCG(7, 11)) }

func TestDefaultCatalogLoads(t *testing.T) {
	cards, err := card.DefaultCards()
	require.NoError(t, err)
	require.Len(t, cards, 20)

	assert.Equal(t, "Ant-Man", cards[0].Name)
	assert.Equal(t, int64(20), cards[19].ID)
	for _, c := range cards {
		assert.NoError(t, card.Validate(c))
	}
}

func TestParseCatalogRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"duplicate id", "cards:\n  - {id: 1, name: A}\n  - {id: 1, name: B}\n"},
		{"missing name", "cards:\n  - {id: 1}\n"},
		{"negative cost", "cards:\n  - {id: 1, name: A, cost: -1}\n"},
		{"zero id", "cards:\n  - {id: 0, name: A}\n"},
		{"not yaml", "cards: [::"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := card.ParseCatalog([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestDrawIsDistinctAndHonoursExclusions(t *testing.T) {
	cards, err := card.DefaultCards()
	require.NoError(t, err)

	exclude := []int64{1, 2, 3, 4, 5}
	drawn := card.Draw(newRand(), cards, 10, exclude)
	require.Len(t, drawn, 10)

	seen := map[int64]bool{}
	for _, c := range drawn {
		assert.False(t, seen[c.ID], "card %d drawn twice", c.ID)
		assert.NotContains(t, exclude, c.ID)
		seen[c.ID] = true
	}
}

func TestDrawClampsToPool(t *testing.T) {
	pool := []card.Card{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}, {ID: 3, Name: "C"}}

	assert.Len(t, card.Draw(newRand(), pool, 10, nil), 3)
	assert.Len(t, card.Draw(newRand(), pool, 10, []int64{2}), 2)
	assert.Empty(t, card.Draw(newRand(), pool, 0, nil))
}

func TestCatalogDrawRandomCards(t *testing.T) {
	cards, err := card.DefaultCards()
	require.NoError(t, err)
	cat := card.NewCatalog(cards, newRand())

	hand, err := cat.DrawRandomCards(context.Background(), 4, nil)
	require.NoError(t, err)
	assert.Len(t, hand, 4)
	for _, c := range hand {
		assert.Contains(t, cards, c)
	}
}
