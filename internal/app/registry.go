package app

import (
	"sync"
	"time"
)

// runtimeState is the volatile coordination state of one live session: the
// authoritative host connection, when the current question was revealed, and
// which players already answered each question index. It is a rebuildable
// cache over the store; losing it affects timing bonuses and duplicate
// short-circuiting, never persisted records.
type runtimeState struct {
	mu                sync.Mutex
	hostConnID        string
	questionStartedAt time.Time
	answered          map[int]map[string]struct{}
}

// reset clears per-game state when a session starts at the given moment.
func (s *runtimeState) reset(at time.Time) {
	s.questionStartedAt = at
	s.answered = make(map[int]map[string]struct{})
}

// beginQuestion stamps the reveal time of the question now live.
func (s *runtimeState) beginQuestion(at time.Time) {
	s.questionStartedAt = at
}

// hasAnswered reports whether the player already answered the question.
func (s *runtimeState) hasAnswered(questionIndex int, playerID string) bool {
	players, ok := s.answered[questionIndex]
	if !ok {
		return false
	}
	_, answered := players[playerID]
	return answered
}

// markAnswered records the player's submission for duplicate detection.
func (s *runtimeState) markAnswered(questionIndex int, playerID string) {
	players, ok := s.answered[questionIndex]
	if !ok {
		players = make(map[string]struct{})
		s.answered[questionIndex] = players
	}
	players[playerID] = struct{}{}
}

// elapsedSince returns seconds since the question reveal, clamped at zero.
// A zero reveal time (registry rebuilt mid-game) counts as just revealed.
func (s *runtimeState) elapsedSince(now time.Time) float64 {
	if s.questionStartedAt.IsZero() {
		return 0
	}
	elapsed := now.Sub(s.questionStartedAt).Seconds()
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// Registry tracks the runtime state of every session this process hosts.
// Entries are created lazily on first touch and dropped on finalization;
// everything durable lives in the store, so a rebuilt registry converges as
// traffic arrives.
type Registry struct {
	mu     sync.RWMutex
	states map[string]*runtimeState
}

func NewRegistry() *Registry {
	return &Registry{states: make(map[string]*runtimeState)}
}

// state returns the runtime entry for the code, creating it on first use.
// Holding the entry's lock serializes all operations on that code.
func (r *Registry) state(code string) *runtimeState {
	r.mu.RLock()
	st, ok := r.states[code]
	r.mu.RUnlock()
	if ok {
		return st
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.states[code]; ok {
		return st
	}
	st = &runtimeState{answered: make(map[int]map[string]struct{})}
	r.states[code] = st
	return st
}

// drop discards the runtime entry for the code.
func (r *Registry) drop(code string) {
	r.mu.Lock()
	delete(r.states, code)
	r.mu.Unlock()
}

// Len reports how many sessions currently hold runtime state.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.states)
}
