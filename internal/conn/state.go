package conn

import (
	"sync"
	"time"
)

// State is the shared in-memory link state. It is process-lifetime only:
// a restart forgets liveness history but not ingested gifts or markers.
//
// One State instance is owned by the app and handed to the manager, the
// ingestor (event recency), and the health monitor. All mutation goes through
// these methods; there is no global.
type State struct {
	mu            sync.Mutex
	linked        bool
	explicitLink  bool
	lastEventAt   time.Time
	lastAttemptAt time.Time
	backoff       time.Duration
}

// Snapshot is a point-in-time copy of State for logging and health checks.
type Snapshot struct {
	Linked        bool
	ExplicitLink  bool
	LastEventAt   time.Time
	LastAttemptAt time.Time
	Backoff       time.Duration
}

func NewState() *State { return &State{} }

// TouchEvent refreshes event recency. Called on every gift callback,
// duplicate or not: a replayed event still proves the link is alive.
func (s *State) TouchEvent(at time.Time) {
	s.mu.Lock()
	if at.After(s.lastEventAt) {
		s.lastEventAt = at
	}
	s.mu.Unlock()
}

func (s *State) setLinked(linked, explicit bool) {
	s.mu.Lock()
	s.linked = linked
	s.explicitLink = explicit
	s.mu.Unlock()
}

func (s *State) noteAttempt(at time.Time) {
	s.mu.Lock()
	s.lastAttemptAt = at
	s.mu.Unlock()
}

func (s *State) setBackoff(d time.Duration) {
	s.mu.Lock()
	s.backoff = d
	s.mu.Unlock()
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Linked:        s.linked,
		ExplicitLink:  s.explicitLink,
		LastEventAt:   s.lastEventAt,
		LastAttemptAt: s.lastAttemptAt,
		Backoff:       s.backoff,
	}
}
