package gameroom

import (
	"sync"
	"time"
)

// TurnScheduler keeps at most one pending turn deadline per match.
type TurnScheduler struct {
	mu     sync.Mutex
	timers map[int64]*time.Timer
}

// NewTurnScheduler returns a scheduler with no pending deadlines.
func NewTurnScheduler() *TurnScheduler {
	return &TurnScheduler{timers: make(map[int64]*time.Timer)}
}

// Arm replaces any pending deadline for matchID with a new one that calls onFire after d.
func (s *TurnScheduler) Arm(matchID int64, d time.Duration, onFire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[matchID]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		s.mu.Lock()
		current, ok := s.timers[matchID]
		if !ok || current != t {
			// replaced or cancelled after the runtime already started this callback
			s.mu.Unlock()
			return
		}
		delete(s.timers, matchID)
		s.mu.Unlock()
		onFire()
	})
	s.timers[matchID] = t
}

// Cancel drops the pending deadline for matchID without firing it.
func (s *TurnScheduler) Cancel(matchID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[matchID]; ok {
		t.Stop()
		delete(s.timers, matchID)
	}
}

// Pending reports whether matchID has an armed deadline.
func (s *TurnScheduler) Pending(matchID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[matchID]
	return ok
}

// Stop cancels every pending deadline.
func (s *TurnScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
