// Package session keeps the live form sessions of the HTTP server. Each
// session owns one engine and its navigator. The engine is single-writer, so
// every access goes through Session.Do, which holds the session lock.
package session

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-formengine/pkg/engine"
	"github.com/goliatone/go-formengine/pkg/navigation"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session: not found")

// EventType names what an Event reports.
type EventType string

const (
	EventPage  EventType = "page"
	EventField EventType = "field"
)

// Event is a page or field event of a session, shaped for the wire.
type Event struct {
	Type  EventType         `json:"type"`
	Page  *navigation.Event `json:"page,omitempty"`
	Key   string            `json:"key,omitempty"`
	Value any               `json:"value,omitempty"`
}

// Session holds one form being filled in.
type Session struct {
	ID           string    `json:"id"`
	FormID       string    `json:"formId"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`

	mu        sync.Mutex
	now       func() time.Time
	engine    *engine.Engine
	navigator *navigation.Navigator
	detach    []func()

	subMu  sync.Mutex
	nextID int
	subs   []eventSub
}

type eventSub struct {
	id int
	fn func(Event)
}

// Do runs fn with exclusive access to the session's engine and navigator and
// records the activity.
func (s *Session) Do(fn func(e *engine.Engine, nav *navigation.Navigator) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActiveAt = s.now()
	return fn(s.engine, s.navigator)
}

// Replace swaps in a new engine, for example one rebuilt from a snapshot.
// Event subscribers carry over. The caller must be inside Do.
func (s *Session) Replace(e *engine.Engine, navOpts ...navigation.Option) *navigation.Navigator {
	for _, fn := range s.detach {
		fn()
	}
	s.engine = e
	s.detach = []func(){
		e.OnPageEvent(func(ev navigation.Event) {
			s.publish(Event{Type: EventPage, Page: &ev})
		}),
		e.OnFieldChange(func(key string, value any) {
			s.publish(Event{Type: EventField, Key: key, Value: value})
		}),
	}
	s.navigator = e.Navigator(navOpts...)
	return s.navigator
}

// Subscribe registers fn for every event of the session. fn runs while the
// session is locked, so it must not block or call Do.
func (s *Session) Subscribe(fn func(Event)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, eventSub{id: id, fn: fn})
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		s.subs = slices.DeleteFunc(s.subs, func(sub eventSub) bool { return sub.id == id })
	}
}

func (s *Session) publish(ev Event) {
	s.subMu.Lock()
	subs := slices.Clone(s.subs)
	s.subMu.Unlock()
	for _, sub := range subs {
		sub.fn(ev)
	}
}

func (s *Session) expired(now time.Time, maxAge, idle time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if maxAge > 0 && now.Sub(s.CreatedAt) > maxAge {
		return true
	}
	return idle > 0 && now.Sub(s.LastActiveAt) > idle
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager handles session creation, lookup, and cleanup.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	maxAge      time.Duration
	idleTimeout time.Duration
	now         func() time.Time
}

// NewManager creates a session manager with the given timeouts. A zero
// timeout disables that limit.
func NewManager(maxAge, idleTimeout time.Duration, opts ...Option) *Manager {
	m := &Manager{
		sessions:    make(map[string]*Session),
		maxAge:      maxAge,
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Create registers a session around e.
func (m *Manager) Create(formID string, e *engine.Engine, navOpts ...navigation.Option) *Session {
	now := m.now()
	s := &Session{
		ID:           uuid.New().String(),
		FormID:       formID,
		CreatedAt:    now,
		LastActiveAt: now,
		now:          m.now,
	}
	s.Replace(e, navOpts...)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get retrieves a session by ID. Expired sessions are removed.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if s.expired(m.now(), m.maxAge, m.idleTimeout) {
		m.Remove(id)
		return nil, ErrNotFound
	}
	return s, nil
}

// Remove deletes a session.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Cleanup removes all expired and idle sessions and returns how many went.
func (m *Manager) Cleanup() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if s.expired(now, m.maxAge, m.idleTimeout) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}
