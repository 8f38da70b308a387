package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/parkgate/internal/httpapi"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/plate"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/service"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store/memory"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/types"
	"github.com/BrandonDHaskell/parkgate/internal/recognition"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fakeLane struct {
	mu    sync.Mutex
	texts []string
	full  bool
}

func (f *fakeLane) Observe(text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return false
	}
	f.texts = append(f.texts, text)
	return true
}

func (f *fakeLane) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type fakeRecognizer struct {
	texts []string
	err   error
}

func (f fakeRecognizer) Candidates(_ context.Context, image []byte) ([]string, error) {
	if len(image) == 0 {
		return nil, recognition.ErrEmptyFrame
	}
	return f.texts, f.err
}

type fixture struct {
	ts    *httptest.Server
	store *memory.Store
	lane  *fakeLane
}

// newTestServer wires the HTTP surface to in-memory stores and returns an
// httptest.Server whose URL can be hit with a plain http.Client.
func newTestServer(t *testing.T, rec httpapi.Recognizer) fixture {
	t.Helper()

	ms := memory.New()
	lane := &fakeLane{}
	dash := service.NewDashboardService(ms, time.UTC)
	dash.SetClock(func() time.Time { return t0.Add(2 * time.Hour) })

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:     log.New(io.Discard, "", 0),
		Addr:       ":0",
		Entries:    service.NewEntryService(plate.DefaultValidator(), ms, nil, log.New(io.Discard, "", 0)),
		Lane:       lane,
		Dashboard:  dash,
		Recognizer: rec,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return fixture{ts: ts, store: ms, lane: lane}
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string, accept string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, url, nil)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeErr(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error
}

// ── Entries ──────────────────────────────────────────────────────────────────

func TestEntry_Created(t *testing.T) {
	f := newTestServer(t, nil)

	resp := postJSON(t, f.ts.URL+"/v1/entries", `{"plate":"rab123a","entered_at":"2026-03-02T09:00:00Z"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var v types.Vehicle
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.PlateNumber != "RAB123A" || v.PaymentStatus != "UNPAID" || v.EntryTime != "2026-03-02T09:00:00Z" {
		t.Errorf("unexpected vehicle %+v", v)
	}
	if len(f.store.Vehicles()) != 1 {
		t.Error("expected one stored entry")
	}
}

func TestEntry_Errors(t *testing.T) {
	f := newTestServer(t, nil)
	postJSON(t, f.ts.URL+"/v1/entries", `{"plate":"RAB123A"}`)

	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"bad json", `{"plate":`, http.StatusBadRequest, "bad_json"},
		{"unknown field", `{"plate":"RAB123A","gate":"x"}`, http.StatusBadRequest, "bad_json"},
		{"invalid plate", `{"plate":"HELLO"}`, http.StatusBadRequest, "invalid_plate"},
		{"invalid time", `{"plate":"RAC456B","entered_at":"yesterday"}`, http.StatusBadRequest, "invalid_time"},
		{"already parked", `{"plate":"RAB123A"}`, http.StatusConflict, "already_parked"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJSON(t, f.ts.URL+"/v1/entries", tc.body)
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.StatusCode)
			}
			if code := decodeErr(t, resp); code != tc.code {
				t.Errorf("expected error %q, got %q", tc.code, code)
			}
		})
	}
}

// ── Vehicles ─────────────────────────────────────────────────────────────────

func TestVehicleStatus(t *testing.T) {
	f := newTestServer(t, nil)
	postJSON(t, f.ts.URL+"/v1/entries", `{"plate":"RAB123A"}`)

	resp := get(t, f.ts.URL+"/v1/vehicles/RAB123A", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var st types.VehicleStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.State != types.StateParkedUnpaid || st.Vehicle == nil {
		t.Errorf("expected parked unpaid, got %+v", st)
	}

	resp = get(t, f.ts.URL+"/v1/vehicles/RAC456B", "")
	var gone types.VehicleStatus
	if err := json.NewDecoder(resp.Body).Decode(&gone); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if gone.State != types.StateNotParked || gone.Vehicle != nil {
		t.Errorf("expected not parked, got %+v", gone)
	}

	resp = get(t, f.ts.URL+"/v1/vehicles/NOPE", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid plate, got %d", resp.StatusCode)
	}
}

func TestVehicleHistory_Limit(t *testing.T) {
	f := newTestServer(t, nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		rec, err := f.store.CreateEntry(ctx, "RAB123A", t0.Add(time.Duration(i)*time.Hour))
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
		if _, err := f.store.CommitPayment(ctx, store.Payment{EntryID: rec.ID, Plate: "RAB123A", Amount: 5, PaidAt: rec.EntryTime}); err != nil {
			t.Fatalf("seed pay: %v", err)
		}
	}

	resp := get(t, f.ts.URL+"/v1/vehicles/RAB123A/history?limit=2", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var h types.VehicleHistory
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(h.Entries) != 2 || h.Entries[0].EntryTime != "2026-03-02T11:00:00Z" {
		t.Errorf("expected newest two entries, got %+v", h.Entries)
	}

	resp = get(t, f.ts.URL+"/v1/vehicles/RAB123A/history?limit=zero", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", resp.StatusCode)
	}
}

// ── Exit lane input ──────────────────────────────────────────────────────────

func TestObservation_Queued(t *testing.T) {
	f := newTestServer(t, nil)

	resp := postJSON(t, f.ts.URL+"/v1/exit/observations", `{"text":"  XRAB123A9 "}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if got := f.lane.Texts(); len(got) != 1 || got[0] != "XRAB123A9" {
		t.Errorf("expected trimmed text queued, got %v", got)
	}

	resp = postJSON(t, f.ts.URL+"/v1/exit/observations", `{"text":"   "}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for empty text, got %d", resp.StatusCode)
	}
}

func TestObservation_LaneBusy(t *testing.T) {
	f := newTestServer(t, nil)
	f.lane.full = true

	resp := postJSON(t, f.ts.URL+"/v1/exit/observations", `{"text":"RAB123A"}`)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	if code := decodeErr(t, resp); code != "lane_busy" {
		t.Errorf("expected lane_busy, got %q", code)
	}
}

func TestFrame_QueuesCandidates(t *testing.T) {
	f := newTestServer(t, fakeRecognizer{texts: []string{"RAB123A", "PARKING"}})

	resp, err := http.Post(f.ts.URL+"/v1/exit/frames", "image/jpeg", bytes.NewReader([]byte{0xff, 0xd8, 0xff}))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	var fr types.FrameResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fr.Queued != 2 || len(f.lane.Texts()) != 2 {
		t.Errorf("expected both candidates queued, got %+v", fr)
	}
}

func TestFrame_Errors(t *testing.T) {
	disabled := newTestServer(t, nil)
	resp, _ := http.Post(disabled.ts.URL+"/v1/exit/frames", "image/jpeg", bytes.NewReader([]byte{1}))
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without recognizer, got %d", resp.StatusCode)
	}

	f := newTestServer(t, fakeRecognizer{err: errors.New("throttled")})
	resp, _ = http.Post(f.ts.URL+"/v1/exit/frames", "image/jpeg", bytes.NewReader(nil))
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for empty frame, got %d", resp.StatusCode)
	}

	resp, _ = http.Post(f.ts.URL+"/v1/exit/frames", "image/jpeg", bytes.NewReader([]byte{1}))
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("expected 502 on recognizer failure, got %d", resp.StatusCode)
	}
}

// ── Dashboard ────────────────────────────────────────────────────────────────

func seedDashboard(t *testing.T, ms *memory.Store) {
	t.Helper()
	ctx := context.Background()
	rec, _ := ms.CreateEntry(ctx, "RAB123A", t0)
	if _, err := ms.CommitPayment(ctx, store.Payment{EntryID: rec.ID, Plate: "RAB123A", Amount: 205, PaidAt: t0.Add(40 * time.Minute)}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, _ = ms.CreateEntry(ctx, "RAC456B", t0.Add(time.Hour))
	_ = ms.RecordUnauthorizedExit(ctx, store.UnauthorizedExitEvent{PlateNumber: "RAD789C", GateLocation: "Main Exit", OccurredAt: t0.Add(90 * time.Minute)})
}

func TestParkingStats_JSON(t *testing.T) {
	f := newTestServer(t, nil)
	seedDashboard(t, f.store)

	resp := get(t, f.ts.URL+"/api/parking_stats", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var st types.ParkingStats
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Occupancy != 2 || st.Revenue != 205 {
		t.Errorf("expected occupancy 2 revenue 205, got %d %d", st.Occupancy, st.Revenue)
	}
	if len(st.RecentActivities) != 3 || st.RecentActivities[0].PlateNumber != "RAC456B" {
		t.Errorf("unexpected activities %+v", st.RecentActivities)
	}
	if len(st.UnauthorizedAttempts) != 1 || st.UnauthorizedAttempts[0].GateLocation != "Main Exit" {
		t.Errorf("unexpected attempts %+v", st.UnauthorizedAttempts)
	}
}

func TestParkingStats_Protobuf(t *testing.T) {
	f := newTestServer(t, nil)
	seedDashboard(t, f.store)

	resp := get(t, f.ts.URL+"/api/parking_stats", "application/x-protobuf")
	if ct := resp.Header.Get("Content-Type"); ct != "application/x-protobuf" {
		t.Fatalf("expected protobuf content type, got %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)

	var msg structpb.Struct
	if err := proto.Unmarshal(body, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	fields := msg.GetFields()
	if fields["occupancy"].GetNumberValue() != 2 || fields["revenue"].GetNumberValue() != 205 {
		t.Errorf("unexpected stats %v", msg.AsMap())
	}
	if n := len(fields["recent_activities"].GetListValue().GetValues()); n != 3 {
		t.Errorf("expected 3 activities, got %d", n)
	}
}

func TestHourlyStats(t *testing.T) {
	f := newTestServer(t, nil)
	seedDashboard(t, f.store)

	resp := get(t, f.ts.URL+"/api/hourly_stats", "")
	var h types.HourlyStats
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// now = 11:00, so buckets run 11:00 yesterday .. 11:00 today.
	if len(h.Labels) != 25 || h.Labels[0] != "11:00" || h.Labels[22] != "09:00" {
		t.Fatalf("unexpected labels %v", h.Labels)
	}
	if h.Values[22] != 1 || h.Values[23] != 1 || h.Values[24] != 0 {
		t.Errorf("unexpected values %v", h.Values)
	}

	resp = get(t, f.ts.URL+"/api/hourly_stats", "application/protobuf")
	body, _ := io.ReadAll(resp.Body)
	var msg structpb.Struct
	if err := proto.Unmarshal(body, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if n := len(msg.GetFields()["values"].GetListValue().GetValues()); n != 25 {
		t.Errorf("expected 25 protobuf values, got %d", n)
	}
}
