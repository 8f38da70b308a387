package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/BrandonDHaskell/parkgate/internal/parkgate/plate"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/types"
)

// EntryService records vehicles entering the lot and answers per-plate
// lookups.
type EntryService struct {
	validator plate.Validator
	vehicles  store.VehicleStore
	notify    Notifier
	logger    *log.Logger
	now       func() time.Time
}

func NewEntryService(v plate.Validator, vs store.VehicleStore, notify Notifier, logger *log.Logger) *EntryService {
	if notify == nil {
		notify = nopNotifier{}
	}
	return &EntryService{validator: v, vehicles: vs, notify: notify, logger: logger, now: time.Now}
}

func (s *EntryService) Record(ctx context.Context, req types.EntryRequest) (types.Vehicle, error) {
	p, ok := s.validator.Validate(req.Plate)
	if !ok {
		return types.Vehicle{}, ErrInvalidPlate
	}

	at := s.now().UTC()
	if v := strings.TrimSpace(req.EnteredAt); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return types.Vehicle{}, ErrInvalidTime
		}
		at = t.UTC()
	}

	_, err := s.vehicles.FindLatestUnpaid(ctx, p)
	switch {
	case err == nil:
		return types.Vehicle{}, ErrAlreadyIn
	case !errors.Is(err, store.ErrNotFound):
		return types.Vehicle{}, fmt.Errorf("Record %s: %w", p, err)
	}

	rec, err := s.vehicles.CreateEntry(ctx, p, at)
	if err != nil {
		return types.Vehicle{}, fmt.Errorf("Record %s: %w", p, err)
	}
	s.logger.Printf("entry: plate=%s id=%d at=%s", p, rec.ID, stamp(at))
	s.notify.Changed()

	return VehicleToType(rec), nil
}

// Status reports whether the plate is parked and unpaid, paid and awaiting
// exit, or not parked.
func (s *EntryService) Status(ctx context.Context, raw string) (types.VehicleStatus, error) {
	p, ok := s.validator.Validate(raw)
	if !ok {
		return types.VehicleStatus{}, ErrInvalidPlate
	}

	if rec, err := s.vehicles.FindLatestUnpaid(ctx, p); err == nil {
		v := VehicleToType(rec)
		return types.VehicleStatus{Plate: p, State: types.StateParkedUnpaid, Vehicle: &v}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.VehicleStatus{}, fmt.Errorf("Status %s: %w", p, err)
	}

	if rec, err := s.vehicles.FindPaidUnexited(ctx, p); err == nil {
		v := VehicleToType(rec)
		return types.VehicleStatus{Plate: p, State: types.StatePaid, Vehicle: &v}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.VehicleStatus{}, fmt.Errorf("Status %s: %w", p, err)
	}

	return types.VehicleStatus{Plate: p, State: types.StateNotParked}, nil
}

func (s *EntryService) History(ctx context.Context, raw string, limit int) (types.VehicleHistory, error) {
	p, ok := s.validator.Validate(raw)
	if !ok {
		return types.VehicleHistory{}, ErrInvalidPlate
	}

	recs, err := s.vehicles.History(ctx, p, limit)
	if err != nil {
		return types.VehicleHistory{}, fmt.Errorf("History %s: %w", p, err)
	}

	out := types.VehicleHistory{Plate: p, Entries: make([]types.Vehicle, 0, len(recs))}
	for _, r := range recs {
		out.Entries = append(out.Entries, VehicleToType(r))
	}
	return out, nil
}
