package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no record matches the lookup.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadySettled is returned by CommitPayment when the targeted entry
	// is no longer UNPAID, e.g. a concurrent settlement for the same plate
	// committed first.
	ErrAlreadySettled = errors.New("entry already settled")
)

// Gateway is every persistence operation the exit lane, the kiosk, and the
// dashboard require.  Implementations own record storage and serialize
// concurrent writes.
type Gateway interface {
	VehicleStore
	UnauthorizedExitStore
	ReportStore
}

// ReportStore backs the read-only dashboard queries.
type ReportStore interface {
	// Occupancy counts entries without an exit time.
	Occupancy(ctx context.Context) (int, error)

	// RevenueBetween sums payment amounts with payment time in [from, to).
	RevenueBetween(ctx context.Context, from, to time.Time) (int64, error)

	// RecentActivity merges entries, exits, and payments, newest first.
	RecentActivity(ctx context.Context, limit int) ([]Activity, error)

	// RecentUnauthorized lists unauthorized exit attempts, newest first.
	RecentUnauthorized(ctx context.Context, limit int) ([]UnauthorizedExitEvent, error)

	// EntryTimesBetween returns entry times in [from, to), oldest first.
	EntryTimesBetween(ctx context.Context, from, to time.Time) ([]time.Time, error)
}

type ActivityAction string

const (
	ActionEntry   ActivityAction = "Vehicle Entry"
	ActionExit    ActivityAction = "Vehicle Exit"
	ActionPayment ActivityAction = "Payment Processed"
)

type Activity struct {
	PlateNumber string
	Action      ActivityAction
	Timestamp   time.Time
}
