// Package ports declares what the match core needs from the outside world.
package ports

import (
	"context"
	"time"

	"cardarena/internal/game/card"
)

// Catalog hands out cards. Draws return distinct cards and skip excluded ids.
type Catalog interface {
	DrawRandomCards(ctx context.Context, n int, exclude []int64) ([]card.Card, error)
	AllCards(ctx context.Context) ([]card.Card, error)
}

// User is an account known to Identity.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Identity resolves players. Unknown users are reported with ErrUserNotFound.
type Identity interface {
	ResolveUser(ctx context.Context, username string) (User, error)
	LookupUser(ctx context.Context, id int64) (User, error)
}

// Record is a player's persisted history.
type Record struct {
	UserID  int64 `json:"userId"`
	Wins    int   `json:"wins"`
	Losses  int   `json:"losses"`
	Matches int   `json:"matches"`
}

// MatchRecord is the persisted row of a match.
type MatchRecord struct {
	ID        int64     `json:"id"`
	WinnerID  *int64    `json:"winnerId,omitempty"`
	LoserID   *int64    `json:"loserId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Persistence stores match results.
type Persistence interface {
	CreateMatchRecord(ctx context.Context, player1ID, player2ID int64) (int64, error)
	FinalizeMatchRecord(ctx context.Context, matchID, winnerID, loserID int64) error
	PlayerRecord(ctx context.Context, userID int64) (Record, error)
}

// Broadcaster pushes an event to one connection. Unknown connections are ignored.
type Broadcaster interface {
	Push(connID string, event string, payload any)
}

// EventPublisher emits domain events for other services.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}
