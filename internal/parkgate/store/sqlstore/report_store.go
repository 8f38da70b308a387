package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store"
)

func (s *Store) Occupancy(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM vehicles WHERE exit_time_ms IS NULL;
`).Scan(&n); err != nil {
		return 0, fmt.Errorf("Occupancy: %w", err)
	}
	return n, nil
}

func (s *Store) RevenueBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, s.q(`
SELECT CAST(COALESCE(SUM(payment_amount), 0) AS BIGINT)
FROM vehicles
WHERE payment_status = 1 AND payment_time_ms >= ? AND payment_time_ms < ?;
`), toMillis(from), toMillis(to)).Scan(&total); err != nil {
		return 0, fmt.Errorf("RevenueBetween: %w", err)
	}
	return total, nil
}

func (s *Store) RecentActivity(ctx context.Context, limit int) ([]store.Activity, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx, s.q(`
SELECT plate_number, 'Vehicle Entry' AS action, entry_time_ms AS ts
FROM vehicles
UNION ALL
SELECT plate_number, 'Vehicle Exit', exit_time_ms
FROM vehicles WHERE exit_time_ms IS NOT NULL
UNION ALL
SELECT plate_number, 'Payment Processed', payment_time_ms
FROM vehicles WHERE payment_time_ms IS NOT NULL
ORDER BY ts DESC
LIMIT ?;
`), limit)
	if err != nil {
		return nil, fmt.Errorf("RecentActivity query: %w", err)
	}
	defer rows.Close()

	var out []store.Activity
	for rows.Next() {
		var (
			a      store.Activity
			action string
			ms     int64
		)
		if err := rows.Scan(&a.PlateNumber, &action, &ms); err != nil {
			return nil, fmt.Errorf("RecentActivity scan: %w", err)
		}
		a.Action = store.ActivityAction(action)
		a.Timestamp = fromMillis(ms)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) RecentUnauthorized(ctx context.Context, limit int) ([]store.UnauthorizedExitEvent, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx, s.q(`
SELECT event_id, plate_number, occurred_at_ms, gate_location
FROM unauthorized_exits
ORDER BY occurred_at_ms DESC, id DESC
LIMIT ?;
`), limit)
	if err != nil {
		return nil, fmt.Errorf("RecentUnauthorized query: %w", err)
	}
	defer rows.Close()

	var out []store.UnauthorizedExitEvent
	for rows.Next() {
		var (
			ev store.UnauthorizedExitEvent
			ms int64
		)
		if err := rows.Scan(&ev.EventID, &ev.PlateNumber, &ms, &ev.GateLocation); err != nil {
			return nil, fmt.Errorf("RecentUnauthorized scan: %w", err)
		}
		ev.OccurredAt = fromMillis(ms)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *Store) EntryTimesBetween(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
SELECT entry_time_ms FROM vehicles
WHERE entry_time_ms >= ? AND entry_time_ms < ?
ORDER BY entry_time_ms;
`), toMillis(from), toMillis(to))
	if err != nil {
		return nil, fmt.Errorf("EntryTimesBetween query: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var ms int64
		if err := rows.Scan(&ms); err != nil {
			return nil, fmt.Errorf("EntryTimesBetween scan: %w", err)
		}
		out = append(out, fromMillis(ms))
	}
	return out, rows.Err()
}
