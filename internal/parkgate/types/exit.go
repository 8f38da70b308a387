package types

type ObservationRequest struct {
	Text string `json:"text"`
}

type ObservationResponse struct {
	Queued int `json:"queued"`
}

type FrameResponse struct {
	Candidates []string `json:"candidates"`
	Queued     int      `json:"queued"`
}

// ExitDecision is pushed to dashboard clients after each resolved plate.
type ExitDecision struct {
	Plate        string `json:"plate_number"`
	Decision     string `json:"decision"`
	GateLocation string `json:"gate_location"`
	Timestamp    string `json:"timestamp"`
}

// PaymentNotice is pushed after a kiosk settlement commits.
type PaymentNotice struct {
	ExchangeID  string `json:"exchange_id"`
	PlateNumber string `json:"plate_number"`
	Amount      int64  `json:"amount"`
	Timestamp   string `json:"timestamp"`
}
