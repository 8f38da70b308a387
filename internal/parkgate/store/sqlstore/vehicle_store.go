package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store"
)

func (s *Store) CreateEntry(ctx context.Context, plate string, at time.Time) (store.VehicleRecord, error) {
	entryMs := toMillis(at)

	var id int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, s.q(`
INSERT INTO vehicles(plate_number, entry_time_ms, payment_status)
VALUES (?, ?, 0)
RETURNING id;
`), plate, entryMs).Scan(&id); err != nil {
			return fmt.Errorf("CreateEntry insert: %w", err)
		}
		return nil
	})
	if err != nil {
		return store.VehicleRecord{}, err
	}

	return store.VehicleRecord{
		ID:            id,
		PlateNumber:   plate,
		EntryTime:     fromMillis(entryMs),
		PaymentStatus: store.Unpaid,
	}, nil
}

func (s *Store) FindLatestUnpaid(ctx context.Context, plate string) (store.VehicleRecord, error) {
	rec, err := scanVehicle(s.db.QueryRowContext(ctx, s.q(`
SELECT `+vehicleColumns+`
FROM vehicles
WHERE plate_number = ? AND payment_status = 0
ORDER BY entry_time_ms DESC, id DESC
LIMIT 1;
`), plate))
	if errors.Is(err, sql.ErrNoRows) {
		return store.VehicleRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.VehicleRecord{}, fmt.Errorf("FindLatestUnpaid: %w", err)
	}
	return rec, nil
}

func (s *Store) CommitPayment(ctx context.Context, p store.Payment) (store.VehicleRecord, error) {
	paidMs := toMillis(p.PaidAt)

	var rec store.VehicleRecord
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.q(`
UPDATE vehicles
SET payment_status  = 1,
    payment_amount  = ?,
    payment_time_ms = ?
WHERE id = ? AND plate_number = ? AND payment_status = 0;
`), p.Amount, paidMs, p.EntryID, p.Plate)
		if err != nil {
			return fmt.Errorf("CommitPayment update: %w", err)
		}

		if n, _ := res.RowsAffected(); n == 0 {
			var status int
			err := tx.QueryRowContext(ctx, s.q(`
SELECT payment_status FROM vehicles WHERE id = ? AND plate_number = ?;
`), p.EntryID, p.Plate).Scan(&status)
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("CommitPayment check: %w", err)
			}
			return store.ErrAlreadySettled
		}

		rec, err = s.selectByID(ctx, tx, p.EntryID)
		return err
	})
	if err != nil {
		return store.VehicleRecord{}, err
	}
	return rec, nil
}

func (s *Store) FindPaidUnexited(ctx context.Context, plate string) (store.VehicleRecord, error) {
	rec, err := scanVehicle(s.db.QueryRowContext(ctx, s.q(`
SELECT `+vehicleColumns+`
FROM vehicles
WHERE plate_number = ? AND payment_status = 1 AND exit_time_ms IS NULL
ORDER BY entry_time_ms DESC, id DESC
LIMIT 1;
`), plate))
	if errors.Is(err, sql.ErrNoRows) {
		return store.VehicleRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.VehicleRecord{}, fmt.Errorf("FindPaidUnexited: %w", err)
	}
	return rec, nil
}

func (s *Store) MarkExited(ctx context.Context, plate string, at time.Time) (store.VehicleRecord, error) {
	exitMs := toMillis(at)

	var rec store.VehicleRecord
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var id int64
		err := tx.QueryRowContext(ctx, s.q(`
SELECT id FROM vehicles
WHERE plate_number = ? AND payment_status = 1 AND exit_time_ms IS NULL
ORDER BY entry_time_ms DESC, id DESC
LIMIT 1;
`), plate).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("MarkExited select: %w", err)
		}

		if _, err := tx.ExecContext(ctx, s.q(`
UPDATE vehicles SET exit_time_ms = ? WHERE id = ? AND exit_time_ms IS NULL;
`), exitMs, id); err != nil {
			return fmt.Errorf("MarkExited update: %w", err)
		}

		rec, err = s.selectByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return store.VehicleRecord{}, err
	}
	return rec, nil
}

func (s *Store) History(ctx context.Context, plate string, limit int) ([]store.VehicleRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, s.q(`
SELECT `+vehicleColumns+`
FROM vehicles
WHERE plate_number = ?
ORDER BY entry_time_ms DESC, id DESC
LIMIT ?;
`), plate, limit)
	if err != nil {
		return nil, fmt.Errorf("History query: %w", err)
	}
	defer rows.Close()

	var out []store.VehicleRecord
	for rows.Next() {
		rec, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("History scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) selectByID(ctx context.Context, tx *sql.Tx, id int64) (store.VehicleRecord, error) {
	rec, err := scanVehicle(tx.QueryRowContext(ctx, s.q(`
SELECT `+vehicleColumns+` FROM vehicles WHERE id = ?;
`), id))
	if err != nil {
		return store.VehicleRecord{}, fmt.Errorf("select vehicle %d: %w", id, err)
	}
	return rec, nil
}
