// Package sessions keeps live browse and search sessions addressable by id
// between HTTP requests.
package sessions

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session not found")

// Closer is anything the store must tear down on delete or expiry.
type Closer interface {
	Close()
}

type entry[T Closer] struct {
	value    T
	lastSeen time.Time
}

// Store maps generated ids to sessions. Entries idle for longer than the
// timeout are closed and dropped by a background sweep.
type Store[T Closer] struct {
	name    string
	timeout time.Duration
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*entry[T]

	stop     chan struct{}
	stopOnce sync.Once
}

// NewStore starts the expiry sweep. name prefixes log lines.
func NewStore[T Closer](name string, idleTimeout time.Duration) *Store[T] {
	if idleTimeout <= 0 {
		idleTimeout = 30 * time.Minute
	}
	s := &Store[T]{
		name:    name,
		timeout: idleTimeout,
		now:     time.Now,
		entries: make(map[string]*entry[T]),
		stop:    make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

// Add registers value and returns its id.
func (s *Store[T]) Add(value T) string {
	id := uuid.NewString()
	s.mu.Lock()
	s.entries[id] = &entry[T]{value: value, lastSeen: s.now()}
	s.mu.Unlock()
	return id
}

// Get returns the session and marks it as used.
func (s *Store[T]) Get(id string) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		var zero T
		return zero, ErrSessionNotFound
	}
	e.lastSeen = s.now()
	return e.value, nil
}

// Remove closes and forgets the session.
func (s *Store[T]) Remove(id string) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	e.value.Close()
	return nil
}

func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Shutdown stops the sweep and closes every session.
func (s *Store[T]) Shutdown() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.mu.Lock()
	entries := s.entries
	s.entries = make(map[string]*entry[T])
	s.mu.Unlock()
	for _, e := range entries {
		e.value.Close()
	}
}

func (s *Store[T]) cleanupLoop() {
	interval := s.timeout / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup closes sessions idle past the timeout.
func (s *Store[T]) cleanup() {
	now := s.now()
	var expired []T

	s.mu.Lock()
	for id, e := range s.entries {
		if now.Sub(e.lastSeen) > s.timeout {
			expired = append(expired, e.value)
			delete(s.entries, id)
			log.Printf("[%s] expired idle session %s", s.name, id)
		}
	}
	s.mu.Unlock()

	for _, v := range expired {
		v.Close()
	}
}
