package store

import (
	"context"
	"time"
)

// UnauthorizedExitEvent is an append-only record of a denied exit.
type UnauthorizedExitEvent struct {
	EventID      string // uuid
	PlateNumber  string
	OccurredAt   time.Time
	GateLocation string
}

// UnauthorizedExitStore persists denied exits as an append-only log.
type UnauthorizedExitStore interface {
	RecordUnauthorizedExit(ctx context.Context, ev UnauthorizedExitEvent) error
}
