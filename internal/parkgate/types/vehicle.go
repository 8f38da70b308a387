package types

import "gopkg.in/guregu/null.v4"

type EntryRequest struct {
	Plate     string `json:"plate"`
	EnteredAt string `json:"entered_at,omitempty"` // optional RFC 3339; defaults to now
}

// Vehicle is a VehicleRecord on the wire.  Unset nullable fields encode as
// JSON null.
type Vehicle struct {
	ID            int64     `json:"id"`
	PlateNumber   string    `json:"plate_number"`
	EntryTime     string    `json:"entry_time"`
	ExitTime      null.Time `json:"exit_time"`
	PaymentStatus string    `json:"payment_status"`
	PaymentAmount null.Int  `json:"payment_amount"`
	PaymentTime   null.Time `json:"payment_time"`
}

// Vehicle states reported by VehicleStatus.
const (
	StateParkedUnpaid = "parked_unpaid"
	StatePaid         = "paid_awaiting_exit"
	StateNotParked    = "not_parked"
)

type VehicleStatus struct {
	Plate   string   `json:"plate"`
	State   string   `json:"state"`
	Vehicle *Vehicle `json:"vehicle,omitempty"`
}

type VehicleHistory struct {
	Plate   string    `json:"plate"`
	Entries []Vehicle `json:"entries"`
}
