// Package callstate holds the observable call status shared between the
// session engine (the only writer) and the presentation layer.
package callstate

import "sync"

// State is the user-facing connection state.
type State string

const (
	Idle       State = "idle"
	Connecting State = "connecting"
	Connected  State = "connected"
	Ended      State = "ended"
)

// Active reports whether a call occupies the engine.
func (s State) Active() bool {
	return s == Connecting || s == Connected
}

// Status is a point-in-time view of the store.
type Status struct {
	State    State
	Speaking bool
	Error    string
}

// Store is the call status object. The zero value is not usable; use New.
type Store struct {
	mu     sync.RWMutex
	status Status
	subs   map[int]chan Status
	nextID int
}

// New returns a store in its initial idle state.
func New() *Store {
	return &Store{
		status: Status{State: Idle},
		subs:   make(map[int]chan Status),
	}
}

// Snapshot returns the current status.
func (s *Store) Snapshot() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Subscribe returns a channel that always yields the most recent status.
// Intermediate updates are coalesced when the reader is slow. The current
// status is delivered immediately.
func (s *Store) Subscribe() (<-chan Status, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan Status, 1)
	ch <- s.status
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

func (s *Store) SetState(state State) {
	s.update(func(st *Status) { st.State = state })
}

func (s *Store) SetSpeaking(speaking bool) {
	s.update(func(st *Status) { st.Speaking = speaking })
}

func (s *Store) SetError(msg string) {
	s.update(func(st *Status) { st.Error = msg })
}

// Set replaces state and speaking in one notification.
func (s *Store) Set(state State, speaking bool) {
	s.update(func(st *Status) {
		st.State = state
		st.Speaking = speaking
	})
}

func (s *Store) update(fn func(*Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.status
	fn(&s.status)
	if prev == s.status {
		return
	}
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s.status
	}
}
