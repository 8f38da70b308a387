package service

import (
	"context"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/types"
)

const dashboardListLimit = 5

// DashboardService answers the read-only dashboard queries.  "Today" and
// the hour labels use loc.
type DashboardService struct {
	reports store.ReportStore
	loc     *time.Location
	now     func() time.Time
}

func NewDashboardService(rs store.ReportStore, loc *time.Location) *DashboardService {
	if loc == nil {
		loc = time.Local
	}
	return &DashboardService{reports: rs, loc: loc, now: time.Now}
}

// SetClock overrides the time source.  Tests only.
func (d *DashboardService) SetClock(now func() time.Time) { d.now = now }

func (d *DashboardService) Stats(ctx context.Context) (types.ParkingStats, error) {
	now := d.now().In(d.loc)

	occ, err := d.reports.Occupancy(ctx)
	if err != nil {
		return types.ParkingStats{}, fmt.Errorf("Stats: %w", err)
	}

	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, d.loc)
	revenue, err := d.reports.RevenueBetween(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		return types.ParkingStats{}, fmt.Errorf("Stats: %w", err)
	}

	acts, err := d.reports.RecentActivity(ctx, dashboardListLimit)
	if err != nil {
		return types.ParkingStats{}, fmt.Errorf("Stats: %w", err)
	}
	denied, err := d.reports.RecentUnauthorized(ctx, dashboardListLimit)
	if err != nil {
		return types.ParkingStats{}, fmt.Errorf("Stats: %w", err)
	}

	out := types.ParkingStats{
		Occupancy:            occ,
		Revenue:              revenue,
		RecentActivities:     make([]types.Activity, 0, len(acts)),
		UnauthorizedAttempts: make([]types.UnauthorizedAttempt, 0, len(denied)),
	}
	for _, a := range acts {
		out.RecentActivities = append(out.RecentActivities, types.Activity{
			PlateNumber: a.PlateNumber,
			Action:      string(a.Action),
			Timestamp:   stamp(a.Timestamp),
		})
	}
	for _, e := range denied {
		out.UnauthorizedAttempts = append(out.UnauthorizedAttempts, types.UnauthorizedAttempt{
			PlateNumber:  e.PlateNumber,
			GateLocation: e.GateLocation,
			Timestamp:    stamp(e.OccurredAt),
		})
	}
	return out, nil
}

// Hourly counts entries per hour from the hour of (now - 24h) through the
// current hour inclusive.  Hours without entries report 0.
func (d *DashboardService) Hourly(ctx context.Context) (types.HourlyStats, error) {
	now := d.now().In(d.loc)
	first := d.hourStart(now.Add(-24 * time.Hour))
	last := d.hourStart(now)

	times, err := d.reports.EntryTimesBetween(ctx, first, last.Add(time.Hour))
	if err != nil {
		return types.HourlyStats{}, fmt.Errorf("Hourly: %w", err)
	}

	n := int(last.Sub(first)/time.Hour) + 1
	out := types.HourlyStats{Labels: make([]string, n), Values: make([]int, n)}
	for i := 0; i < n; i++ {
		out.Labels[i] = first.Add(time.Duration(i) * time.Hour).In(d.loc).Format("15:00")
	}
	for _, t := range times {
		i := int(t.Sub(first) / time.Hour)
		if i >= 0 && i < n {
			out.Values[i]++
		}
	}
	return out, nil
}

// hourStart returns the start of t's wall-clock hour in the dashboard zone.
// time.Truncate works on absolute time and is off for half-hour offsets.
func (d *DashboardService) hourStart(t time.Time) time.Time {
	t = t.In(d.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, d.loc)
}
