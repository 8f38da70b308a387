package memory

import (
	"context"
	"sort"
	"time"

	"gopkg.in/guregu/null.v4"

	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store"
)

func (s *Store) CreateEntry(_ context.Context, plate string, at time.Time) (store.VehicleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := store.VehicleRecord{
		ID:            s.nextID,
		PlateNumber:   plate,
		EntryTime:     utcOrNow(at),
		PaymentStatus: store.Unpaid,
	}
	s.nextID++
	s.vehicles = append(s.vehicles, rec)
	s.writes++
	return rec, nil
}

func (s *Store) FindLatestUnpaid(_ context.Context, plate string) (store.VehicleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.latest(plate, func(r store.VehicleRecord) bool {
		return r.PaymentStatus == store.Unpaid
	})
	if i < 0 {
		return store.VehicleRecord{}, store.ErrNotFound
	}
	return s.vehicles[i], nil
}

func (s *Store) CommitPayment(_ context.Context, p store.Payment) (store.VehicleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.vehicles {
		r := &s.vehicles[i]
		if r.ID != p.EntryID || r.PlateNumber != p.Plate {
			continue
		}
		if r.PaymentStatus != store.Unpaid {
			return store.VehicleRecord{}, store.ErrAlreadySettled
		}
		r.PaymentStatus = store.Paid
		r.PaymentAmount = null.IntFrom(p.Amount)
		r.PaymentTime = null.TimeFrom(utcOrNow(p.PaidAt))
		s.writes++
		return *r, nil
	}
	return store.VehicleRecord{}, store.ErrNotFound
}

func (s *Store) FindPaidUnexited(_ context.Context, plate string) (store.VehicleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.latest(plate, paidUnexited)
	if i < 0 {
		return store.VehicleRecord{}, store.ErrNotFound
	}
	return s.vehicles[i], nil
}

func (s *Store) MarkExited(_ context.Context, plate string, at time.Time) (store.VehicleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.latest(plate, paidUnexited)
	if i < 0 {
		return store.VehicleRecord{}, store.ErrNotFound
	}
	s.vehicles[i].ExitTime = null.TimeFrom(utcOrNow(at))
	s.writes++
	return s.vehicles[i], nil
}

func (s *Store) History(_ context.Context, plate string, limit int) ([]store.VehicleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.VehicleRecord
	for _, r := range s.vehicles {
		if r.PlateNumber == plate {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EntryTime.After(out[j].EntryTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// latest returns the index of the matching record with the greatest entry
// time, or -1.  Caller holds the lock.
func (s *Store) latest(plate string, match func(store.VehicleRecord) bool) int {
	best := -1
	for i, r := range s.vehicles {
		if r.PlateNumber != plate || !match(r) {
			continue
		}
		if best < 0 || !r.EntryTime.Before(s.vehicles[best].EntryTime) {
			best = i
		}
	}
	return best
}

func paidUnexited(r store.VehicleRecord) bool {
	return r.PaymentStatus == store.Paid && !r.ExitTime.Valid
}
