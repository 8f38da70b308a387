package store

import (
	"context"
	"time"

	"gopkg.in/guregu/null.v4"
)

type PaymentStatus int

const (
	Unpaid PaymentStatus = 0
	Paid   PaymentStatus = 1
)

func (s PaymentStatus) String() string {
	if s == Paid {
		return "PAID"
	}
	return "UNPAID"
}

// VehicleRecord is one physical entry.  ExitTime is only ever set on a PAID
// record and makes the record terminal.
type VehicleRecord struct {
	ID            int64
	PlateNumber   string
	EntryTime     time.Time
	ExitTime      null.Time
	PaymentStatus PaymentStatus
	PaymentAmount null.Int
	PaymentTime   null.Time
}

// Payment targets the specific entry found during lookup.  The commit only
// applies while that entry is still UNPAID.
type Payment struct {
	EntryID int64
	Plate   string
	Amount  int64
	PaidAt  time.Time
}

type VehicleStore interface {
	CreateEntry(ctx context.Context, plate string, at time.Time) (VehicleRecord, error)

	// FindLatestUnpaid returns the most recent UNPAID entry by entry time,
	// or ErrNotFound.
	FindLatestUnpaid(ctx context.Context, plate string) (VehicleRecord, error)

	// CommitPayment marks p.EntryID PAID.  Returns ErrAlreadySettled if the
	// entry is no longer UNPAID and ErrNotFound if it does not exist.
	CommitPayment(ctx context.Context, p Payment) (VehicleRecord, error)

	// FindPaidUnexited returns the most recent PAID entry without an exit
	// time, or ErrNotFound.
	FindPaidUnexited(ctx context.Context, plate string) (VehicleRecord, error)

	// MarkExited looks up the paid-unexited entry and sets its exit time in
	// one operation.  Returns ErrNotFound if there is no such entry.
	MarkExited(ctx context.Context, plate string, at time.Time) (VehicleRecord, error)

	// History lists a plate's entries newest first.
	History(ctx context.Context, plate string, limit int) ([]VehicleRecord, error)
}
