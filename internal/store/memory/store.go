// Package memory is an in-process Identity and Persistence used in dev mode and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cardarena/internal/ports"
)

// Store keeps users and match records in maps. It is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	users      map[int64]ports.User
	byName     map[string]int64
	matches    map[int64]*ports.MatchRecord
	nextUserID int64
	nextMatch  int64
	now        func() time.Time
}

func New() *Store {
	return &Store{
		users:   make(map[int64]ports.User),
		byName:  make(map[string]int64),
		matches: make(map[int64]*ports.MatchRecord),
		now:     time.Now,
	}
}

// EnsureUser returns the user called username, creating it if needed.
func (s *Store) EnsureUser(username string) ports.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byName[username]; ok {
		return s.users[id]
	}
	s.nextUserID++
	u := ports.User{ID: s.nextUserID, Username: username}
	s.users[u.ID] = u
	s.byName[username] = u.ID
	return u
}

func (s *Store) ResolveUser(_ context.Context, username string) (ports.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[username]
	if !ok {
		return ports.User{}, fmt.Errorf("%w: %s", ports.ErrUserNotFound, username)
	}
	return s.users[id], nil
}

func (s *Store) LookupUser(_ context.Context, id int64) (ports.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return ports.User{}, fmt.Errorf("%w: id %d", ports.ErrUserNotFound, id)
	}
	return u, nil
}

func (s *Store) CreateMatchRecord(_ context.Context, _, _ int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextMatch++
	s.matches[s.nextMatch] = &ports.MatchRecord{ID: s.nextMatch, CreatedAt: s.now()}
	return s.nextMatch, nil
}

func (s *Store) FinalizeMatchRecord(_ context.Context, matchID, winnerID, loserID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.matches[matchID]
	if !ok {
		return fmt.Errorf("%w: %d", ports.ErrMatchNotFound, matchID)
	}
	rec.WinnerID = &winnerID
	rec.LoserID = &loserID
	return nil
}

func (s *Store) PlayerRecord(_ context.Context, userID int64) (ports.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := ports.Record{UserID: userID}
	for _, m := range s.matches {
		switch {
		case m.WinnerID != nil && *m.WinnerID == userID:
			r.Wins++
		case m.LoserID != nil && *m.LoserID == userID:
			r.Losses++
		}
	}
	r.Matches = r.Wins + r.Losses
	return r, nil
}

// Match returns a copy of the stored record for matchID.
func (s *Store) Match(matchID int64) (ports.MatchRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.matches[matchID]
	if !ok {
		return ports.MatchRecord{}, false
	}
	return *rec, true
}

// Matches lists stored records ordered by id.
func (s *Store) Matches() []ports.MatchRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ports.MatchRecord, 0, len(s.matches))
	for _, m := range s.matches {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
