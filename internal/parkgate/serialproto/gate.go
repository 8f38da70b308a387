package serialproto

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

type GatePhase string

const (
	GateIdle        GatePhase = "IDLE"
	GateSignalSent  GatePhase = "SIGNAL_SENT"
	GateHoldOpen    GatePhase = "HOLD_OPEN"
	GateSignalClose GatePhase = "SIGNAL_CLOSE"
	GateAlarmSent   GatePhase = "ALARM_SENT"
)

// Actuator command bytes.
const (
	CmdClose byte = '0'
	CmdOpen  byte = '1'
	CmdAlarm byte = '2'
)

// Gate drives the barrier actuator.  Transitions are purely time based; the
// actuator never acknowledges.  A missing link is logged and the action is
// skipped.
type Gate struct {
	link   Link
	hold   time.Duration
	logger *log.Logger

	op sync.Mutex // one actuation at a time

	mu    sync.Mutex
	phase GatePhase
}

func NewGate(link Link, hold time.Duration, logger *log.Logger) *Gate {
	if hold <= 0 {
		hold = 15 * time.Second
	}
	return &Gate{link: link, hold: hold, logger: logger, phase: GateIdle}
}

func (g *Gate) State() GatePhase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

func (g *Gate) setPhase(p GatePhase) {
	g.mu.Lock()
	g.phase = p
	g.mu.Unlock()
}

// Release opens the gate, holds it for the configured window and closes it.
// Cancelling ctx cuts the hold short; the close command is still sent.
func (g *Gate) Release(ctx context.Context) error {
	g.op.Lock()
	defer g.op.Unlock()
	defer g.setPhase(GateIdle)

	if err := ctx.Err(); err != nil {
		g.logger.Printf("gate: shutting down, skipping release")
		return err
	}
	if !g.link.Connected() {
		g.logger.Printf("gate: link down, skipping release (open, hold %s, close)", g.hold)
		return nil
	}

	g.setPhase(GateSignalSent)
	if err := g.link.Send([]byte{CmdOpen}); err != nil {
		g.logger.Printf("gate: open command failed: %v", err)
		return fmt.Errorf("gate open: %w", err)
	}
	g.logger.Printf("gate: opened, holding %s", g.hold)

	g.setPhase(GateHoldOpen)
	t := time.NewTimer(g.hold)
	select {
	case <-ctx.Done():
		t.Stop()
	case <-t.C:
	}

	g.setPhase(GateSignalClose)
	if err := g.link.Send([]byte{CmdClose}); err != nil {
		g.logger.Printf("gate: close command failed: %v", err)
		return fmt.Errorf("gate close: %w", err)
	}
	g.logger.Printf("gate: closed")
	return ctx.Err()
}

// Alarm sounds the lane alarm and returns immediately.
func (g *Gate) Alarm(ctx context.Context) error {
	g.op.Lock()
	defer g.op.Unlock()
	defer g.setPhase(GateIdle)

	if !g.link.Connected() {
		g.logger.Printf("gate: link down, skipping alarm")
		return nil
	}

	g.setPhase(GateAlarmSent)
	if err := g.link.Send([]byte{CmdAlarm}); err != nil {
		g.logger.Printf("gate: alarm command failed: %v", err)
		return fmt.Errorf("gate alarm: %w", err)
	}
	g.logger.Printf("gate: alarm raised")
	return nil
}
