// Package postgres backs Identity, Persistence and Catalog with PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cardarena/internal/game/card"
	"cardarena/internal/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements Identity, Persistence and Catalog on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects a pool to dsn and verifies it with a ping.
func Open(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store { return &Store{pool: pool} }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Close() { s.pool.Close() }

// ============================================================================
// Identity
// ============================================================================

func (s *Store) ResolveUser(ctx context.Context, username string) (ports.User, error) {
	var u ports.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username FROM users WHERE username = $1`, username,
	).Scan(&u.ID, &u.Username)
	if errors.Is(err, pgx.ErrNoRows) {
		return ports.User{}, fmt.Errorf("%w: %s", ports.ErrUserNotFound, username)
	}
	if err != nil {
		return ports.User{}, fmt.Errorf("resolve user %s: %w", username, err)
	}
	return u, nil
}

func (s *Store) LookupUser(ctx context.Context, id int64) (ports.User, error) {
	var u ports.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username)
	if errors.Is(err, pgx.ErrNoRows) {
		return ports.User{}, fmt.Errorf("%w: id %d", ports.ErrUserNotFound, id)
	}
	if err != nil {
		return ports.User{}, fmt.Errorf("lookup user %d: %w", id, err)
	}
	return u, nil
}

// EnsureUser returns the user called username, inserting it when missing.
func (s *Store) EnsureUser(ctx context.Context, username string) (ports.User, error) {
	u := ports.User{Username: username}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (username) VALUES ($1)
		ON CONFLICT (username) DO UPDATE SET username = EXCLUDED.username
		RETURNING id`, username,
	).Scan(&u.ID)
	if err != nil {
		return ports.User{}, fmt.Errorf("ensure user %s: %w", username, err)
	}
	return u, nil
}

// ============================================================================
// Persistence
// ============================================================================

func (s *Store) CreateMatchRecord(ctx context.Context, player1ID, player2ID int64) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO matches (player1_id, player2_id) VALUES ($1, $2) RETURNING id`,
		player1ID, player2ID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create match record: %w", err)
	}
	return id, nil
}

func (s *Store) FinalizeMatchRecord(ctx context.Context, matchID, winnerID, loserID int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE matches SET winner_id = $2, loser_id = $3, finished_at = now()
		WHERE id = $1`, matchID, winnerID, loserID)
	if err != nil {
		return fmt.Errorf("finalize match %d: %w", matchID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", ports.ErrMatchNotFound, matchID)
	}
	return nil
}

func (s *Store) PlayerRecord(ctx context.Context, userID int64) (ports.Record, error) {
	r := ports.Record{UserID: userID}
	err := s.pool.QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE winner_id = $1),
			count(*) FILTER (WHERE loser_id = $1)
		FROM matches
		WHERE winner_id = $1 OR loser_id = $1`, userID,
	).Scan(&r.Wins, &r.Losses)
	if err != nil {
		return ports.Record{}, fmt.Errorf("player record %d: %w", userID, err)
	}
	r.Matches = r.Wins + r.Losses
	return r, nil
}

// ============================================================================
// Catalog
// ============================================================================

const cardColumns = `id, name, description, image_url, cost, damage, defence`

// DrawRandomCards picks n random cards in SQL, skipping exclude.
func (s *Store) DrawRandomCards(ctx context.Context, n int, exclude []int64) ([]card.Card, error) {
	if n <= 0 {
		return nil, nil
	}
	if exclude == nil {
		exclude = []int64{}
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+cardColumns+` FROM cards
		WHERE NOT (id = ANY($2))
		ORDER BY random()
		LIMIT $1`, n, exclude)
	if err != nil {
		return nil, fmt.Errorf("draw cards: %w", err)
	}
	return collectCards(rows)
}

func (s *Store) AllCards(ctx context.Context) ([]card.Card, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+cardColumns+` FROM cards ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	return collectCards(rows)
}

func collectCards(rows pgx.Rows) ([]card.Card, error) {
	cards, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (card.Card, error) {
		var c card.Card
		err := row.Scan(&c.ID, &c.Name, &c.Description, &c.ImageURL, &c.Cost, &c.Damage, &c.Defence)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan cards: %w", err)
	}
	return cards, nil
}
