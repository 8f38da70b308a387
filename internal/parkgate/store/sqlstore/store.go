package sqlstore

import (
	"database/sql"
	"time"

	"gopkg.in/guregu/null.v4"

	dbpkg "github.com/BrandonDHaskell/parkgate/internal/db"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store"
)

// Store is the SQL Gateway.  Reads use the pool directly; every write goes
// through the single-writer Worker.  Times are stored as UTC Unix millis.
type Store struct {
	db      *sql.DB
	writer  *dbpkg.Worker
	dialect dbpkg.Dialect
}

var _ store.Gateway = (*Store)(nil)

func New(db *sql.DB, writer *dbpkg.Worker) *Store {
	return &Store{db: db, writer: writer, dialect: writer.Dialect()}
}

func (s *Store) q(query string) string { return s.dialect.Rebind(query) }

const vehicleColumns = `id, plate_number, entry_time_ms, exit_time_ms,
       payment_status, payment_amount, payment_time_ms`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVehicle(row rowScanner) (store.VehicleRecord, error) {
	var (
		rec     store.VehicleRecord
		entryMs int64
		exitMs  sql.NullInt64
		status  int
		amount  sql.NullInt64
		paidMs  sql.NullInt64
	)
	if err := row.Scan(&rec.ID, &rec.PlateNumber, &entryMs, &exitMs, &status, &amount, &paidMs); err != nil {
		return store.VehicleRecord{}, err
	}
	rec.EntryTime = fromMillis(entryMs)
	rec.ExitTime = nullTime(exitMs)
	rec.PaymentStatus = store.PaymentStatus(status)
	rec.PaymentAmount = null.NewInt(amount.Int64, amount.Valid)
	rec.PaymentTime = nullTime(paidMs)
	return rec, nil
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullTime(ms sql.NullInt64) null.Time {
	if !ms.Valid {
		return null.Time{}
	}
	return null.TimeFrom(fromMillis(ms.Int64))
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().UnixMilli()
}
