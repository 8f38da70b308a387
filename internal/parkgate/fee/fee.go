// Package fee computes parking charges from elapsed parked time.  Amounts are
// non-negative integers in the smallest currency unit; partial units are
// always billed in full.
package fee

import (
	"fmt"
	"strings"
	"time"
)

// Policy maps a parked duration to a charge.
type Policy interface {
	Fee(elapsed time.Duration) int64
	Name() string
}

const (
	NamePerMinute = "per_minute"
	NameHalfHour  = "half_hour"
)

// PerMinute bills every started minute, with at least one minute billed.
type PerMinute struct {
	Rate int64
}

func (p PerMinute) Name() string { return NamePerMinute }

func (p PerMinute) Fee(elapsed time.Duration) int64 {
	return Minutes(elapsed) * p.Rate
}

// Minutes is the billable minute count: whole elapsed minutes plus the one
// in progress.  0–59s bills 1; exactly 40m bills 41.
func Minutes(elapsed time.Duration) int64 {
	if elapsed < 0 {
		elapsed = 0
	}
	return int64(elapsed/time.Minute) + 1
}

// HalfHour is free up to Free, then Rate per started Block.
type HalfHour struct {
	Free  time.Duration
	Block time.Duration
	Rate  int64
}

func (h HalfHour) Name() string { return NameHalfHour }

func (h HalfHour) Fee(elapsed time.Duration) int64 {
	excess := elapsed - h.Free
	if excess <= 0 || h.Block <= 0 {
		return 0
	}
	blocks := int64(excess / h.Block)
	if excess%h.Block != 0 {
		blocks++
	}
	return blocks * h.Rate
}

type Options struct {
	RatePerMinute int64
	FreeMinutes   int
	BlockMinutes  int
	BlockRate     int64
}

// New returns the policy called name.  An empty name selects per_minute.
func New(name string, opt Options) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NamePerMinute:
		return PerMinute{Rate: opt.RatePerMinute}, nil
	case NameHalfHour:
		return HalfHour{
			Free:  time.Duration(opt.FreeMinutes) * time.Minute,
			Block: time.Duration(opt.BlockMinutes) * time.Minute,
			Rate:  opt.BlockRate,
		}, nil
	default:
		return nil, fmt.Errorf("unknown fee policy %q", name)
	}
}
