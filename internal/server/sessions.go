package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/soul-spirits/internal/captcha"
	"github.com/jonathan/soul-spirits/internal/orchestrator"
)

// session is one visitor's form and generation state.
type session struct {
	id    string
	owner string
	orch  *orchestrator.Orchestrator

	mu         sync.Mutex
	challenge  captcha.Challenge
	lastAccess time.Time
	failedStep string
	listener   func(orchestrator.Transition)
}

// notify is registered as an orchestrator observer. It remembers which step
// failed and forwards the transition to the active stream, if any.
func (s *session) notify(t orchestrator.Transition) {
	s.mu.Lock()
	if t.To.Name() == orchestrator.StateError {
		s.failedStep = t.From.Name()
	}
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		listener(t)
	}
}

// listen routes transitions to fn until the returned func is called.
func (s *session) listen(fn func(orchestrator.Transition)) func() {
	s.mu.Lock()
	s.listener = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.listener = nil
		s.mu.Unlock()
	}
}

func (s *session) currentChallenge() captcha.Challenge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.challenge
}

func (s *session) setChallenge(c captcha.Challenge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenge = c
}

func (s *session) lastFailedStep() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failedStep
}

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccess = now
}

func (s *session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}

// sessionStore holds live sessions in memory.
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*session
	now      func() time.Time
}

func newSessionStore() *sessionStore {
	return &sessionStore{
		sessions: make(map[string]*session),
		now:      time.Now,
	}
}

// create registers a new session. newOrch receives the session so the
// orchestrator can be wired to its observer.
func (st *sessionStore) create(owner string, challenge captcha.Challenge, newOrch func(*session) *orchestrator.Orchestrator) *session {
	s := &session{
		id:         uuid.NewString(),
		challenge:  challenge,
		lastAccess: st.now(),
	}
	s.owner = owner
	if s.owner == "" {
		s.owner = s.id
	}
	s.orch = newOrch(s)

	st.mu.Lock()
	st.sessions[s.id] = s
	st.mu.Unlock()
	return s
}

// get returns the session and marks it as used.
func (st *sessionStore) get(id string) (*session, error) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch(st.now())
	return s, nil
}

// sweep drops sessions idle since before cutoff. Sessions with a generation
// in flight are kept. It returns the number removed.
func (st *sessionStore) sweep(cutoff time.Time) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	removed := 0
	for id, s := range st.sessions {
		if s.idleSince().Before(cutoff) && !orchestrator.InFlight(s.orch.State()) {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

func (st *sessionStore) count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
