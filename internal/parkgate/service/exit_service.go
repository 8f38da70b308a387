package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store"
)

type Decision string

const (
	Allow Decision = "ALLOW"
	Deny  Decision = "DENY"
)

// ExitService decides whether a resolved plate may leave.  ALLOW iff the
// plate has a PAID entry without an exit time; that entry gets its exit
// time.  Anything else is DENY and one unauthorized-exit event is appended.
type ExitService struct {
	vehicles store.VehicleStore
	exits    store.UnauthorizedExitStore
	location string
	logger   *log.Logger
	now      func() time.Time
}

func NewExitService(vs store.VehicleStore, es store.UnauthorizedExitStore, gateLocation string, logger *log.Logger) *ExitService {
	return &ExitService{vehicles: vs, exits: es, location: gateLocation, logger: logger, now: time.Now}
}

func (s *ExitService) GateLocation() string { return s.location }

func (s *ExitService) Decide(ctx context.Context, plate string) (Decision, error) {
	now := s.now().UTC()

	// Lookup and exit write are one gateway operation.
	rec, err := s.vehicles.MarkExited(ctx, plate, now)
	if err == nil {
		s.logger.Printf("exit: plate=%s decision=%s entry=%d paid=%d at=%s",
			plate, Allow, rec.ID, rec.PaymentAmount.ValueOrZero(), stamp(now))
		return Allow, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("Decide %s: %w", plate, err)
	}

	ev := store.UnauthorizedExitEvent{
		EventID:      uuid.NewString(),
		PlateNumber:  plate,
		OccurredAt:   now,
		GateLocation: s.location,
	}
	if err := s.exits.RecordUnauthorizedExit(ctx, ev); err != nil {
		return "", fmt.Errorf("Decide %s: record unauthorized: %w", plate, err)
	}
	s.logger.Printf("exit: plate=%s decision=%s event=%s location=%q at=%s",
		plate, Deny, ev.EventID, s.location, stamp(now))
	return Deny, nil
}
