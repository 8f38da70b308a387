package types

type Activity struct {
	PlateNumber string `json:"plate_number"`
	Action      string `json:"action"`
	Timestamp   string `json:"timestamp"`
}

type UnauthorizedAttempt struct {
	PlateNumber  string `json:"plate_number"`
	GateLocation string `json:"gate_location"`
	Timestamp    string `json:"timestamp"`
}

type ParkingStats struct {
	Occupancy            int                   `json:"occupancy"`
	Revenue              int64                 `json:"revenue"`
	RecentActivities     []Activity            `json:"recent_activities"`
	UnauthorizedAttempts []UnauthorizedAttempt `json:"unauthorized_attempts"`
}

// HourlyStats is the trailing-day entry histogram.  Labels and Values are
// parallel; empty hours carry 0.
type HourlyStats struct {
	Labels []string `json:"labels"`
	Values []int    `json:"values"`
}

// Update kinds pushed over the websocket.
const (
	UpdateStats        = "stats"
	UpdateActivities   = "activities"
	UpdateUnauthorized = "unauthorized"
	UpdateHourly       = "hourly"
	UpdateExitDecision = "exit_decision"
	UpdatePayment      = "payment"
)

type Update struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}
