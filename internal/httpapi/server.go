package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BrandonDHaskell/parkgate/internal/parkgate/service"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/types"
	"github.com/BrandonDHaskell/parkgate/internal/recognition"
)

// Observer accepts raw plate text for the exit lane.
type Observer interface {
	Observe(text string) bool
}

// Recognizer reads plate candidates off a still frame.
type Recognizer interface {
	Candidates(ctx context.Context, image []byte) ([]string, error)
}

type Dependencies struct {
	Logger    *log.Logger
	Addr      string
	Entries   *service.EntryService
	Lane      Observer
	Dashboard *service.DashboardService

	// Recognizer is optional; without it POST /v1/exit/frames answers 503.
	Recognizer Recognizer

	// Hub is optional; without it GET /v1/updates is not routed.
	Hub *Hub
}

type Server struct {
	httpServer *http.Server
	logger     *log.Logger
	mux        *http.ServeMux
	entries    *service.EntryService
	lane       Observer
	dashboard  *service.DashboardService
	recognizer Recognizer
}

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:     d.Logger,
		mux:        mux,
		entries:    d.Entries,
		lane:       d.Lane,
		dashboard:  d.Dashboard,
		recognizer: d.Recognizer,
	}

	mux.HandleFunc("POST /v1/entries", s.handleEntry)
	mux.HandleFunc("GET /v1/vehicles/{plate}", s.handleVehicleStatus)
	mux.HandleFunc("GET /v1/vehicles/{plate}/history", s.handleVehicleHistory)
	mux.HandleFunc("POST /v1/exit/observations", s.handleObservation)
	mux.HandleFunc("POST /v1/exit/frames", s.handleFrame)
	mux.HandleFunc("GET /api/parking_stats", s.handleParkingStats)
	mux.HandleFunc("GET /api/hourly_stats", s.handleHourlyStats)
	if d.Hub != nil {
		mux.HandleFunc("GET /v1/updates", d.Hub.ServeWS)
	}

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (s *Server) handleEntry(w http.ResponseWriter, r *http.Request) {
	var req types.EntryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	v, err := s.entries.Record(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPlate):
			writeError(w, http.StatusBadRequest, "invalid_plate", err.Error())
		case errors.Is(err, service.ErrInvalidTime):
			writeError(w, http.StatusBadRequest, "invalid_time", err.Error())
		case errors.Is(err, service.ErrAlreadyIn):
			writeError(w, http.StatusConflict, "already_parked", err.Error())
		default:
			s.logger.Printf("entry error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) handleVehicleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.entries.Status(r.Context(), r.PathValue("plate"))
	if err != nil {
		s.lookupError(w, "vehicle status", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleVehicleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	h, err := s.entries.History(r.Context(), r.PathValue("plate"), limit)
	if err != nil {
		s.lookupError(w, "vehicle history", err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) lookupError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, service.ErrInvalidPlate) {
		writeError(w, http.StatusBadRequest, "invalid_plate", err.Error())
		return
	}
	s.logger.Printf("%s error: %v", op, err)
	writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
}

func (s *Server) handleObservation(w http.ResponseWriter, r *http.Request) {
	var req types.ObservationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "empty_text", "text is required")
		return
	}

	if !s.lane.Observe(text) {
		writeError(w, http.StatusServiceUnavailable, "lane_busy", "exit lane queue is full")
		return
	}
	writeJSON(w, http.StatusAccepted, types.ObservationResponse{Queued: 1})
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	if s.recognizer == nil {
		writeError(w, http.StatusServiceUnavailable, "recognition_disabled", "frame recognition is not configured")
		return
	}

	img, err := io.ReadAll(io.LimitReader(r.Body, maxFrameBody+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_frame", "could not read frame")
		return
	}
	if len(img) > maxFrameBody {
		writeError(w, http.StatusRequestEntityTooLarge, "frame_too_large", "frame exceeds 5 MiB")
		return
	}

	texts, err := s.recognizer.Candidates(r.Context(), img)
	if err != nil {
		if errors.Is(err, recognition.ErrEmptyFrame) {
			writeError(w, http.StatusBadRequest, "empty_frame", err.Error())
			return
		}
		s.logger.Printf("frame recognition error: %v", err)
		writeError(w, http.StatusBadGateway, "recognition_failed", "text detection failed")
		return
	}

	resp := types.FrameResponse{Candidates: texts}
	if resp.Candidates == nil {
		resp.Candidates = []string{}
	}
	for _, t := range texts {
		if s.lane.Observe(t) {
			resp.Queued++
		}
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleParkingStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.dashboard.Stats(r.Context())
	if err != nil {
		s.logger.Printf("parking_stats error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	if wantsProtobuf(r) {
		msg, err := statsToProto(st)
		if err != nil {
			s.logger.Printf("parking_stats encode: %v", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
			return
		}
		writeProto(w, http.StatusOK, msg)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleHourlyStats(w http.ResponseWriter, r *http.Request) {
	h, err := s.dashboard.Hourly(r.Context())
	if err != nil {
		s.logger.Printf("hourly_stats error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	if wantsProtobuf(r) {
		msg, err := hourlyToProto(h)
		if err != nil {
			s.logger.Printf("hourly_stats encode: %v", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
			return
		}
		writeProto(w, http.StatusOK, msg)
		return
	}
	writeJSON(w, http.StatusOK, h)
}
