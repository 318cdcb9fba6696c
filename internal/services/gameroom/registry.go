package gameroom

import (
	"sort"
	"sync"

	"cardarena/internal/game/match"
)

// slot pairs a live match with the lock that serializes every command on it.
type slot struct {
	mu      sync.Mutex
	match   *match.Match
	removed bool
}

// Registry is the single source of truth for live matches. Commands on different
// matches run in parallel; commands on the same match are serialized by its slot lock.
type Registry struct {
	mu      sync.RWMutex
	matches map[int64]*slot
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{matches: make(map[int64]*slot)}
}

// Put stores m under id, replacing anything stored there before.
func (r *Registry) Put(id int64, m *match.Match) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matches[id] = &slot{match: m}
}

// Get returns the live match for id. Callers that mutate it must use Acquire instead.
func (r *Registry) Get(id int64) (*match.Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.matches[id]
	if !ok {
		return nil, false
	}
	return s.match, true
}

// Remove evicts id. A command already waiting on the match's lock will find it gone.
func (r *Registry) Remove(id int64) {
	r.mu.Lock()
	s, ok := r.matches[id]
	delete(r.matches, id)
	r.mu.Unlock()
	if ok {
		s.mu.Lock()
		s.removed = true
		s.mu.Unlock()
	}
}

// evict is Remove for a caller that already holds the match lock.
func (r *Registry) evict(id int64) {
	r.mu.Lock()
	s, ok := r.matches[id]
	delete(r.matches, id)
	r.mu.Unlock()
	if ok {
		s.removed = true
	}
}

// ListAll returns the live matches ordered by id.
func (r *Registry) ListAll() []*match.Match {
	r.mu.RLock()
	out := make([]*match.Match, 0, len(r.matches))
	for _, s := range r.matches {
		out = append(out, s.match)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len is the number of live matches.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matches)
}

// Acquire locks the match for id and returns it with its release func.
// It reports false if the match does not exist or was removed while waiting.
func (r *Registry) Acquire(id int64) (*match.Match, func(), bool) {
	r.mu.RLock()
	s, ok := r.matches[id]
	r.mu.RUnlock()
	if !ok {
		return nil, nil, false
	}
	s.mu.Lock()
	if s.removed {
		s.mu.Unlock()
		return nil, nil, false
	}
	return s.match, s.mu.Unlock, true
}

// commit replaces the stored match of a held slot with next. Stored matches are never
// mutated in place, so Get and ListAll readers always see a consistent snapshot.
func (r *Registry) commit(id int64, next *match.Match) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.matches[id]; ok {
		s.match = next
	}
}

// FindByConnection returns the id of the live match that connID is bound to.
func (r *Registry) FindByConnection(connID string) (int64, bool) {
	if connID == "" {
		return 0, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, s := range r.matches {
		if _, bound := s.match.SlotByConnection(connID); bound {
			return id, true
		}
	}
	return 0, false
}
