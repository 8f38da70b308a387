package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store"
)

func (s *Store) RecordUnauthorizedExit(_ context.Context, ev store.UnauthorizedExitEvent) error {
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	ev.OccurredAt = utcOrNow(ev.OccurredAt)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.unauthorized = append(s.unauthorized, ev)
	s.writes++
	return nil
}
