package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type SeedDevOptions struct {
	// Plates get an open (unpaid, unexited) entry unless one already exists.
	Plates []string

	// EntryAge backdates the seeded entries so a fee is due right away.
	EntryAge time.Duration
}

// SeedDev inserts starter entries for a dev environment.  Returns the number
// of rows created.
func SeedDev(ctx context.Context, w *Worker, opt SeedDevOptions) (int, error) {
	entryMs := time.Now().UTC().Add(-opt.EntryAge).UnixMilli()
	d := w.Dialect()

	created := 0
	err := w.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, p := range opt.Plates {
			p = strings.ToUpper(strings.TrimSpace(p))
			if p == "" {
				continue
			}

			var open int
			if err := tx.QueryRowContext(ctx, d.Rebind(`
SELECT COUNT(*) FROM vehicles
WHERE plate_number = ? AND exit_time_ms IS NULL;`), p).Scan(&open); err != nil {
				return fmt.Errorf("seed check %s: %w", p, err)
			}
			if open > 0 {
				continue
			}

			if _, err := tx.ExecContext(ctx, d.Rebind(`
INSERT INTO vehicles(plate_number, entry_time_ms, payment_status)
VALUES (?, ?, 0);`), p, entryMs); err != nil {
				return fmt.Errorf("seed entry %s: %w", p, err)
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}
