// Package serialproto implements the line-oriented handshakes spoken over the
// gate and kiosk serial links.
package serialproto

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned by PollLine when the deadline passes without a
// matching line.
var ErrTimeout = errors.New("serial handshake timed out")

// Link is the slice of a serial connection the protocols need.  TryReadLine
// must not block past the port's read timeout; ok is false when no complete
// line is available yet.
type Link interface {
	Connected() bool
	Send(p []byte) error
	TryReadLine() (line string, ok bool, err error)
}

// PollLine reads lines until match accepts one, timeout elapses or ctx is
// done.  Lines that do not match are dropped.  Between empty reads it sleeps
// interval.
func PollLine(ctx context.Context, link Link, timeout, interval time.Duration, match func(string) bool) (string, error) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	deadline := time.Now().Add(timeout)

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if !time.Now().Before(deadline) {
			return "", ErrTimeout
		}

		line, ok, err := link.TryReadLine()
		if err != nil {
			return "", err
		}
		if ok {
			if match(line) {
				return line, nil
			}
			continue
		}

		wait := min(interval, time.Until(deadline))
		if wait <= 0 {
			continue
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return "", ctx.Err()
		case <-t.C:
		}
	}
}
