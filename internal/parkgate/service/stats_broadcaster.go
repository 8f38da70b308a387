package service

import (
	"context"
	"log"
	"time"

	"github.com/BrandonDHaskell/parkgate/internal/parkgate/types"
)

// StatsBroadcaster pushes dashboard snapshots to websocket clients: on every
// interval, and soon after Changed is called.  It runs as a background
// goroutine and is safe to stop via its context or the Stop method.
//
// An interval of 0 disables the periodic push; change pushes still happen.
type StatsBroadcaster struct {
	dash     *DashboardService
	pub      Publisher
	interval time.Duration
	logger   *log.Logger
	kick     chan struct{}
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewStatsBroadcaster creates a broadcaster but does not start it.
func NewStatsBroadcaster(dash *DashboardService, pub Publisher, interval time.Duration, logger *log.Logger) *StatsBroadcaster {
	return &StatsBroadcaster{
		dash:     dash,
		pub:      pub,
		interval: interval,
		logger:   logger,
		kick:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start begins the loop.  The loop exits when ctx is cancelled or Stop is
// called.
func (b *StatsBroadcaster) Start(ctx context.Context) {
	ctx, b.cancel = context.WithCancel(ctx)

	go b.loop(ctx)

	b.logger.Printf("stats broadcaster started (interval=%s)", b.interval)
}

// Stop signals the broadcaster to exit and waits for it to finish.
func (b *StatsBroadcaster) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	<-b.done
}

// Changed schedules a push.  Never blocks; bursts collapse into one push.
func (b *StatsBroadcaster) Changed() {
	select {
	case b.kick <- struct{}{}:
	default:
	}
}

func (b *StatsBroadcaster) loop(ctx context.Context) {
	defer close(b.done)

	var tick <-chan time.Time
	if b.interval > 0 {
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.kick:
			b.pushStats(ctx)
		case <-tick:
			b.pushStats(ctx)
			b.pushHourly(ctx)
		}
	}
}

func (b *StatsBroadcaster) pushStats(ctx context.Context) {
	stats, err := b.dash.Stats(ctx)
	if err != nil {
		b.logger.Printf("stats push error: %v", err)
		return
	}
	b.pub.Publish(types.UpdateStats, stats)
	b.pub.Publish(types.UpdateActivities, stats.RecentActivities)
	b.pub.Publish(types.UpdateUnauthorized, stats.UnauthorizedAttempts)
}

func (b *StatsBroadcaster) pushHourly(ctx context.Context) {
	hourly, err := b.dash.Hourly(ctx)
	if err != nil {
		b.logger.Printf("hourly push error: %v", err)
		return
	}
	b.pub.Publish(types.UpdateHourly, hourly)
}
