package seriallink_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/BrandonDHaskell/parkgate/internal/seriallink"
)

type statusLog struct {
	mu   sync.Mutex
	last map[string]bool
}

func (s *statusLog) record(role string, up bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		s.last = make(map[string]bool)
	}
	s.last[role] = up
}

func (s *statusLog) get(role string) (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.last[role]
	return v, ok
}

func TestMonitor_ReopensDroppedLink(t *testing.T) {
	first := &fakePort{}
	second := &fakePort{}
	o := &opener{ports: []*fakePort{first, second}}
	l := seriallink.New(seriallink.Config{Role: "gate", Port: "/dev/ttyACM0", Open: o.Open}, discardLogger())
	disabled := seriallink.New(seriallink.Config{Role: "kiosk"}, discardLogger())

	status := &statusLog{}
	m := seriallink.NewMonitor([]*seriallink.Link{l, disabled}, 5*time.Millisecond, status.record, discardLogger())
	m.Start(context.Background())
	defer m.Stop()

	waitFor(t, func() bool {
		_, seen := status.get("kiosk")
		return l.Connected() && seen
	})
	if up, _ := status.get("gate"); !up {
		t.Error("expected gate reported up")
	}
	if up, seen := status.get("kiosk"); !seen || up {
		t.Error("expected disabled kiosk reported down")
	}

	// Unplug: the next read drops the link and the monitor reopens it.
	first.mu.Lock()
	first.readErr = errUnplugged
	first.mu.Unlock()
	l.TryReadLine()

	waitFor(t, func() bool { return len(o.Devices()) == 2 && l.Connected() })
	l.Close()
}

func TestMonitor_StopWaitsForLoop(t *testing.T) {
	m := seriallink.NewMonitor(nil, time.Hour, nil, discardLogger())
	m.Start(context.Background())

	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
