// Package service holds the exit-lane and dashboard use cases: recording
// entries, deciding exits, driving the lane worker and summarising the lot.
package service

import (
	"errors"
	"time"

	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/types"
)

var (
	ErrInvalidPlate = errors.New("plate does not match the expected format")
	ErrInvalidTime  = errors.New("entered_at must be RFC 3339")
	ErrAlreadyIn    = errors.New("plate already has an unpaid entry")
)

// Publisher pushes an update to dashboard clients.
type Publisher interface {
	Publish(kind string, data any)
}

// Notifier is told that lot state changed.
type Notifier interface {
	Changed()
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, any) {}

type nopNotifier struct{}

func (nopNotifier) Changed() {}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// VehicleToType converts a record for the wire.
func VehicleToType(r store.VehicleRecord) types.Vehicle {
	return types.Vehicle{
		ID:            r.ID,
		PlateNumber:   r.PlateNumber,
		EntryTime:     stamp(r.EntryTime),
		ExitTime:      r.ExitTime,
		PaymentStatus: r.PaymentStatus.String(),
		PaymentAmount: r.PaymentAmount,
		PaymentTime:   r.PaymentTime,
	}
}
