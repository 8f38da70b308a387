package memory

import (
	"sync"
	"time"

	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store"
)

// Store is an in-memory Gateway.  It is intended for use in tests and dev
// environments.
type Store struct {
	mu           sync.RWMutex
	nextID       int64
	vehicles     []store.VehicleRecord // insertion order
	unauthorized []store.UnauthorizedExitEvent
	writes       int
}

var _ store.Gateway = (*Store)(nil)

func New() *Store {
	return &Store{nextID: 1}
}

// Writes reports how many mutations have been applied.  Test-only helper.
func (s *Store) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// Vehicles returns a copy of all records in insertion order.  Test-only helper.
func (s *Store) Vehicles() []store.VehicleRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.VehicleRecord, len(s.vehicles))
	copy(out, s.vehicles)
	return out
}

// UnauthorizedEvents returns a copy of the deny log.  Test-only helper.
func (s *Store) UnauthorizedEvents() []store.UnauthorizedExitEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.UnauthorizedExitEvent, len(s.unauthorized))
	copy(out, s.unauthorized)
	return out
}

func utcOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
