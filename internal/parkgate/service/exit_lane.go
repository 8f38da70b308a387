package service

import (
	"context"
	"log"
	"time"

	"github.com/BrandonDHaskell/parkgate/internal/parkgate/plate"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/types"
)

// Actuator is the gate the lane drives after a decision.
type Actuator interface {
	Release(ctx context.Context) error
	Alarm(ctx context.Context) error
}

type ExitLaneDeps struct {
	Validator plate.Validator
	Consensus *plate.Consensus
	Decider   *ExitService
	Gate      Actuator
	Publisher Publisher
	Notifier  Notifier
	Logger    *log.Logger

	// QueueSize bounds pending observations.  Defaults to 64.
	QueueSize int
}

// LaneResult describes what one observation did.
type LaneResult struct {
	Raw      string
	Plate    string // validated, "" if rejected
	Pending  int    // votes held after this observation
	Resolved string // set once the vote completed
	Decision Decision
}

// ExitLane is the single worker behind one exit camera: observations are
// validated, voted on, decided, and turned into gate commands, one at a
// time.
type ExitLane struct {
	validator plate.Validator
	consensus *plate.Consensus
	decider   *ExitService
	gate      Actuator
	pub       Publisher
	notify    Notifier
	logger    *log.Logger
	queue     chan string
}

func NewExitLane(d ExitLaneDeps) *ExitLane {
	if d.Consensus == nil {
		d.Consensus = plate.NewConsensus(3)
	}
	if d.Publisher == nil {
		d.Publisher = nopPublisher{}
	}
	if d.Notifier == nil {
		d.Notifier = nopNotifier{}
	}
	if d.QueueSize <= 0 {
		d.QueueSize = 64
	}
	return &ExitLane{
		validator: d.Validator,
		consensus: d.Consensus,
		decider:   d.Decider,
		gate:      d.Gate,
		pub:       d.Publisher,
		notify:    d.Notifier,
		logger:    d.Logger,
		queue:     make(chan string, d.QueueSize),
	}
}

// Observe queues raw recognizer text for the worker.  Returns false when the
// queue is full and the observation was dropped.
func (l *ExitLane) Observe(text string) bool {
	select {
	case l.queue <- text:
		return true
	default:
		l.logger.Printf("lane: queue full, dropping observation %q", text)
		return false
	}
}

// Run processes queued observations until ctx is done.
func (l *ExitLane) Run(ctx context.Context) error {
	l.logger.Printf("lane: started (quorum=%d)", l.consensus.Quorum())
	for {
		select {
		case <-ctx.Done():
			l.logger.Printf("lane: stopped")
			return nil
		case text := <-l.queue:
			// Failures are logged in Process; the lane keeps going.
			_, _ = l.Process(ctx, text)
		}
	}
}

// Process handles one observation synchronously.
func (l *ExitLane) Process(ctx context.Context, text string) (LaneResult, error) {
	res := LaneResult{Raw: text}

	p, ok := l.validator.Validate(text)
	if !ok {
		return res, nil
	}
	res.Plate = p

	resolved, ok := l.consensus.Observe(p)
	res.Pending = l.consensus.Pending()
	if !ok {
		return res, nil
	}
	res.Resolved = resolved

	decision, err := l.decider.Decide(ctx, resolved)
	if err != nil {
		l.logger.Printf("lane: plate=%s decision failed: %v", resolved, err)
		return res, err
	}
	res.Decision = decision

	l.pub.Publish(types.UpdateExitDecision, types.ExitDecision{
		Plate:        resolved,
		Decision:     string(decision),
		GateLocation: l.decider.GateLocation(),
		Timestamp:    stamp(time.Now()),
	})
	l.notify.Changed()

	// Gate trouble never undoes the decision; the actuator logs it.
	switch decision {
	case Allow:
		_ = l.gate.Release(ctx)
	case Deny:
		_ = l.gate.Alarm(ctx)
	}
	l.discardStale(resolved)
	return res, nil
}

// discardStale drops reads queued while the gate was actuating, along with
// any votes cast since; they belong to the vehicle just decided.
func (l *ExitLane) discardStale(plate string) {
	dropped := 0
	for {
		select {
		case <-l.queue:
			dropped++
			continue
		default:
		}
		break
	}
	l.consensus.Reset()
	if dropped > 0 {
		l.logger.Printf("lane: plate=%s dropped %d reads queued during actuation", plate, dropped)
	}
}
