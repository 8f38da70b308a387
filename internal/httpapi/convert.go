package httpapi

import (
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/parkgate/internal/parkgate/types"
)

// Dashboard payloads travel as google.protobuf.Struct so clients decode
// them without a project-specific schema.  Field names match the JSON.

// ── Parking stats ────────────────────────────────────────────────────────────

func statsToProto(s types.ParkingStats) (*structpb.Struct, error) {
	activities := make([]any, 0, len(s.RecentActivities))
	for _, a := range s.RecentActivities {
		activities = append(activities, map[string]any{
			"plate_number": a.PlateNumber,
			"action":       a.Action,
			"timestamp":    a.Timestamp,
		})
	}

	attempts := make([]any, 0, len(s.UnauthorizedAttempts))
	for _, u := range s.UnauthorizedAttempts {
		attempts = append(attempts, map[string]any{
			"plate_number":  u.PlateNumber,
			"gate_location": u.GateLocation,
			"timestamp":     u.Timestamp,
		})
	}

	return structpb.NewStruct(map[string]any{
		"occupancy":             s.Occupancy,
		"revenue":               s.Revenue,
		"recent_activities":     activities,
		"unauthorized_attempts": attempts,
	})
}

// ── Hourly stats ─────────────────────────────────────────────────────────────

func hourlyToProto(h types.HourlyStats) (*structpb.Struct, error) {
	labels := make([]any, len(h.Labels))
	for i, l := range h.Labels {
		labels[i] = l
	}
	values := make([]any, len(h.Values))
	for i, v := range h.Values {
		values[i] = v
	}
	return structpb.NewStruct(map[string]any{
		"labels": labels,
		"values": values,
	})
}
