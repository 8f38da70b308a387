package memory

import (
	"context"
	"sort"
	"time"

	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store"
)

func (s *Store) Occupancy(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, r := range s.vehicles {
		if !r.ExitTime.Valid {
			n++
		}
	}
	return n, nil
}

func (s *Store) RevenueBetween(_ context.Context, from, to time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, r := range s.vehicles {
		if r.PaymentStatus != store.Paid || !r.PaymentTime.Valid {
			continue
		}
		if inRange(r.PaymentTime.Time, from, to) {
			total += r.PaymentAmount.ValueOrZero()
		}
	}
	return total, nil
}

func (s *Store) RecentActivity(_ context.Context, limit int) ([]store.Activity, error) {
	s.mu.RLock()
	var out []store.Activity
	for _, r := range s.vehicles {
		out = append(out, store.Activity{PlateNumber: r.PlateNumber, Action: store.ActionEntry, Timestamp: r.EntryTime})
		if r.ExitTime.Valid {
			out = append(out, store.Activity{PlateNumber: r.PlateNumber, Action: store.ActionExit, Timestamp: r.ExitTime.Time})
		}
		if r.PaymentTime.Valid {
			out = append(out, store.Activity{PlateNumber: r.PlateNumber, Action: store.ActionPayment, Timestamp: r.PaymentTime.Time})
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) RecentUnauthorized(_ context.Context, limit int) ([]store.UnauthorizedExitEvent, error) {
	out := s.UnauthorizedEvents()
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) EntryTimesBetween(_ context.Context, from, to time.Time) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []time.Time
	for _, r := range s.vehicles {
		if inRange(r.EntryTime, from, to) {
			out = append(out, r.EntryTime)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}
