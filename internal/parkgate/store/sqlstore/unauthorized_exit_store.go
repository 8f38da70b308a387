package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store"
)

// RecordUnauthorizedExit appends a denied exit.  Rows are never updated or
// deleted.
func (s *Store) RecordUnauthorizedExit(ctx context.Context, ev store.UnauthorizedExitEvent) error {
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	occurredMs := toMillis(ev.OccurredAt)
	location := strings.TrimSpace(ev.GateLocation)

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.q(`
INSERT INTO unauthorized_exits(event_id, plate_number, occurred_at_ms, gate_location)
VALUES (?, ?, ?, ?);
`), ev.EventID, ev.PlateNumber, occurredMs, location); err != nil {
			return fmt.Errorf("RecordUnauthorizedExit insert: %w", err)
		}
		return nil
	})
}
