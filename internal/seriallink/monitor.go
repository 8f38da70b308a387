package seriallink

import (
	"context"
	"errors"
	"log"
	"time"
)

// StatusFunc is told every time a link's connected state is observed.
type StatusFunc func(role string, connected bool)

// Monitor keeps links open.  It tries every enabled link immediately on
// Start, then re-opens any that dropped on each interval.  Stop it via its
// context or Stop.
type Monitor struct {
	links    []*Link
	interval time.Duration
	status   StatusFunc
	logger   *log.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewMonitor creates a monitor but does not start it.
func NewMonitor(links []*Link, interval time.Duration, status StatusFunc, logger *log.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if status == nil {
		status = func(string, bool) {}
	}
	return &Monitor{
		links:    links,
		interval: interval,
		status:   status,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	go m.loop(ctx)

	m.logger.Printf("link monitor started (links=%d, interval=%s)", len(m.links), m.interval)
}

// Stop signals the monitor to exit and waits for it to finish.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	<-m.done
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)

	m.check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

func (m *Monitor) check(ctx context.Context) {
	for _, l := range m.links {
		if !l.Enabled() {
			m.status(l.Role(), false)
			continue
		}
		if l.Connected() {
			m.status(l.Role(), true)
			continue
		}

		err := l.Open(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Printf("link monitor: %v", err)
		}
		m.status(l.Role(), err == nil)
	}
}
