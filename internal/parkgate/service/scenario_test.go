package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/BrandonDHaskell/parkgate/internal/parkgate/fee"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/plate"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/serialproto"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/service"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store/memory"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/types"
)

// scriptLink is a serial link that answers what it is sent.
type scriptLink struct {
	mu      sync.Mutex
	inbound []string
	sent    []string
	reply   map[string][]string
}

func (l *scriptLink) Connected() bool { return true }

func (l *scriptLink) Send(p []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sent = append(l.sent, string(p))
	l.inbound = append(l.inbound, l.reply[string(p)]...)
	return nil
}

func (l *scriptLink) TryReadLine() (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.inbound) == 0 {
		return "", false, nil
	}
	line := l.inbound[0]
	l.inbound = l.inbound[1:]
	return line, true, nil
}

func (l *scriptLink) Sent() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.sent...)
}

func TestScenario_PayAtKioskThenExit(t *testing.T) {
	ms := memory.New()
	ctx := context.Background()
	rec := &recorder{}

	// Vehicle enters at T0.
	entries := service.NewEntryService(plate.DefaultValidator(), ms, rec, silentLogger())
	if _, err := entries.Record(ctx, types.EntryRequest{Plate: "RAB123A", EnteredAt: t0.Format(time.RFC3339)}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	// Card tapped at T0+40min with 500 on it; the kiosk is READY a moment
	// later and confirms the write.
	kiosk := &scriptLink{
		inbound: []string{"READY"},
		reply:   map[string][]string{"295\r\n": {"DONE"}},
	}
	settlement := serialproto.NewSettlement(kiosk, ms, serialproto.SettlementConfig{
		Format:       serialproto.Standard{},
		Policy:       fee.PerMinute{Rate: 5},
		PollInterval: time.Millisecond,
		Now:          func() time.Time { return t0.Add(40 * time.Minute) },
		OnConfirmed:  service.SettlementHook(rec, rec),
	}, silentLogger())

	ex, err := settlement.HandleLine(ctx, "RAB123A,00500")
	if err != nil {
		t.Fatalf("settlement: %v", err)
	}
	if ex.Fee != 205 {
		t.Errorf("expected fee 205, got %d", ex.Fee)
	}
	if sent := kiosk.Sent(); len(sent) != 1 || sent[0] != "295\r\n" {
		t.Errorf("expected balance 295 sent, got %q", sent)
	}
	paid := ms.Vehicles()[0]
	if paid.PaymentStatus != store.Paid || paid.PaymentAmount.ValueOrZero() != 205 {
		t.Fatalf("expected PAID 205, got %s %v", paid.PaymentStatus, paid.PaymentAmount)
	}
	if n, ok := rec.Last(types.UpdatePayment); !ok || n.(types.PaymentNotice).Amount != 205 {
		t.Errorf("expected payment notice, got %v", n)
	}

	// Camera reads the plate three times at the exit.
	gateLink := &scriptLink{}
	gate := serialproto.NewGate(gateLink, 20*time.Millisecond, silentLogger())
	lane := service.NewExitLane(service.ExitLaneDeps{
		Validator: plate.DefaultValidator(),
		Consensus: plate.NewConsensus(3),
		Decider:   service.NewExitService(ms, ms, "Main Exit", silentLogger()),
		Gate:      gate,
		Publisher: rec,
		Logger:    silentLogger(),
	})

	var res service.LaneResult
	for i := 0; i < 3; i++ {
		res, err = lane.Process(ctx, "RAB123A")
		if err != nil {
			t.Fatalf("lane: %v", err)
		}
	}
	if res.Decision != service.Allow {
		t.Fatalf("expected ALLOW, got %q", res.Decision)
	}
	if !ms.Vehicles()[0].ExitTime.Valid {
		t.Error("expected exit time set")
	}
	if sent := gateLink.Sent(); len(sent) != 2 || sent[0] != "1" || sent[1] != "0" {
		t.Errorf("expected gate open then close, got %q", sent)
	}
	if len(ms.UnauthorizedEvents()) != 0 {
		t.Error("no unauthorized exit expected")
	}
}
