package session

import (
	"sync"
	"time"
)

// Store keeps sessions in memory, one per user. Get and Put exchange copies,
// so a handler mutates its own snapshot and nothing is shared until Put.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*entry
	locks    map[string]*userLock
	idleTTL  time.Duration
	now      func() time.Time
}

type entry struct {
	session Session
	touched time.Time
}

// userLock is reference-counted so the entry disappears once the last holder
// or waiter lets go, keeping the map proportional to active users.
type userLock struct {
	mu   sync.Mutex
	refs int
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithIdleTTL makes sessions expire after the given idle period. Zero (the
// default) keeps sessions until they are explicitly cleared.
func WithIdleTTL(ttl time.Duration) StoreOption {
	return func(s *Store) { s.idleTTL = ttl }
}

// WithStoreClock overrides the time source used for idle expiry.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore returns an empty in-memory session store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		sessions: make(map[string]*entry),
		locks:    make(map[string]*userLock),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lock serializes message handling for one user. It blocks until no other
// handler holds the user's lock and returns the unlock function. Locks for
// different users are independent.
func (s *Store) Lock(userID string) func() {
	s.mu.Lock()
	lk, ok := s.locks[userID]
	if !ok {
		lk = &userLock{}
		s.locks[userID] = lk
	}
	lk.refs++
	s.mu.Unlock()

	lk.mu.Lock()
	return func() {
		lk.mu.Unlock()
		s.mu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(s.locks, userID)
		}
		s.mu.Unlock()
	}
}

// Get returns a copy of the user's session and whether one exists. An idle
// session past its TTL counts as absent and is dropped.
func (s *Store) Get(userID string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[userID]
	if !ok {
		return Session{}, false
	}
	if s.idleTTL > 0 && s.now().Sub(e.touched) > s.idleTTL {
		delete(s.sessions, userID)
		return Session{}, false
	}
	return e.session, true
}

// Put stores a copy of the session under its user ID.
func (s *Store) Put(sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.UserID] = &entry{session: sess, touched: s.now()}
}

// Clear removes the user's session. Clearing an absent session is a no-op.
func (s *Store) Clear(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}
