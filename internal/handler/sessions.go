package handler

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/lsocheck/internal/model"
	"github.com/pavelanni/lsocheck/internal/questionnaire"
)

// session is one visitor's questionnaire. Its mutex serializes requests
// because the engine itself is not safe for concurrent use.
type session struct {
	mu           sync.Mutex
	engine       *questionnaire.Engine
	contact      *model.Contact
	submissionID string
	lastSeen     time.Time
}

type registry struct {
	mu       sync.Mutex
	sessions map[string]*session
	ttl      time.Duration
	now      func() time.Time
}

func newRegistry(ttl time.Duration) *registry {
	return &registry{
		sessions: make(map[string]*session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (r *registry) create() (string, *session) {
	id := uuid.NewString()
	s := &session{engine: questionnaire.New(), lastSeen: r.now()}
	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	return id, s
}

// get returns a live session and marks it as used.
func (r *registry) get(id string) (*session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	now := r.now()
	if now.Sub(s.lastSeen) > r.ttl {
		delete(r.sessions, id)
		return nil, false
	}
	s.lastSeen = now
	return s, true
}

func (r *registry) remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// sweep drops idle sessions and returns how many were removed.
func (r *registry) sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	n := 0
	for id, s := range r.sessions {
		if now.Sub(s.lastSeen) > r.ttl {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
