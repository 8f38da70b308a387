package service_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store/memory"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

var errDBDown = errors.New("database unavailable")

func silentLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// fakeGate records actuator calls.
type fakeGate struct {
	mu       sync.Mutex
	releases int
	alarms   int
}

func (g *fakeGate) Release(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.releases++
	return nil
}

func (g *fakeGate) Alarm(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.alarms++
	return nil
}

func (g *fakeGate) counts() (int, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.releases, g.alarms
}

// recorder collects published updates.
type recorder struct {
	mu      sync.Mutex
	kinds   []string
	data    []any
	changes int
}

func (r *recorder) Publish(kind string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kind)
	r.data = append(r.data, data)
}

func (r *recorder) Changed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes++
}

func (r *recorder) Kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.kinds))
	copy(out, r.kinds)
	return out
}

func (r *recorder) Last(kind string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.kinds) - 1; i >= 0; i-- {
		if r.kinds[i] == kind {
			return r.data[i], true
		}
	}
	return nil, false
}

// failingStore breaks exit writes.
type failingStore struct {
	*memory.Store
}

func (f failingStore) MarkExited(context.Context, string, time.Time) (store.VehicleRecord, error) {
	return store.VehicleRecord{}, errDBDown
}

// paidEntry creates an entry and settles it.
func paidEntry(ms *memory.Store, plate string, at time.Time, amount int64) store.VehicleRecord {
	ctx := context.Background()
	rec, _ := ms.CreateEntry(ctx, plate, at)
	paid, _ := ms.CommitPayment(ctx, store.Payment{EntryID: rec.ID, Plate: plate, Amount: amount, PaidAt: at.Add(30 * time.Minute)})
	return paid
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
