package serialproto

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/parkgate/internal/parkgate/fee"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store"
)

type Phase string

const (
	PhaseAwaitSample  Phase = "AWAIT_SAMPLE"
	PhaseParse        Phase = "PARSE"
	PhaseLookupEntry  Phase = "LOOKUP_ENTRY"
	PhaseComputeFee   Phase = "COMPUTE_FEE"
	PhaseInsufficient Phase = "INSUFFICIENT"
	PhaseAwaitReady   Phase = "AWAIT_READY"
	PhaseSendBalance  Phase = "SEND_BALANCE"
	PhaseAwaitConfirm Phase = "AWAIT_CONFIRM"
	PhaseConfirmed    Phase = "CONFIRMED"
	PhaseTimeout      Phase = "TIMEOUT"
)

type Outcome string

const (
	OutcomeIgnored        Outcome = "ignored"
	OutcomeMalformed      Outcome = "malformed"
	OutcomeNoEntry        Outcome = "no_entry"
	OutcomeInsufficient   Outcome = "insufficient"
	OutcomeReadyTimeout   Outcome = "ready_timeout"
	OutcomeConfirmTimeout Outcome = "confirm_timeout"
	OutcomeConfirmed      Outcome = "confirmed"
	OutcomeConflict       Outcome = "already_settled"
	OutcomeAborted        Outcome = "aborted"
	OutcomeFailed         Outcome = "failed"
)

// Exchange is the state of one settlement handshake.  It is created when a
// line arrives and is finished once Outcome is set.
type Exchange struct {
	ID         string
	StartedAt  time.Time
	Phase      Phase
	Deadline   time.Time
	Sample     Sample
	EntryID    int64
	EntryTime  time.Time
	Fee        int64
	NewBalance int64
	Outcome    Outcome
}

// Ledger is the slice of the gateway settlement needs.
type Ledger interface {
	FindLatestUnpaid(ctx context.Context, plate string) (store.VehicleRecord, error)
	CommitPayment(ctx context.Context, p store.Payment) (store.VehicleRecord, error)
}

type SettlementConfig struct {
	Format         Format
	Policy         fee.Policy
	ReadyTimeout   time.Duration
	ConfirmTimeout time.Duration
	PollInterval   time.Duration

	// Now defaults to time.Now.
	Now func() time.Time

	// OnConfirmed, if set, is called after a payment commits.
	OnConfirmed func(Exchange, store.VehicleRecord)
}

// Settlement runs the kiosk handshake over one link.  Only a confirmed
// exchange writes to the ledger; every other outcome leaves records as they
// were.
type Settlement struct {
	link   Link
	ledger Ledger
	cfg    SettlementConfig
	logger *log.Logger

	mu    sync.Mutex
	phase Phase
}

func NewSettlement(link Link, ledger Ledger, cfg SettlementConfig, logger *log.Logger) *Settlement {
	if cfg.Format == nil {
		cfg.Format = Standard{}
	}
	if cfg.Policy == nil {
		cfg.Policy = fee.PerMinute{Rate: 5}
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 5 * time.Second
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 10 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Settlement{link: link, ledger: ledger, cfg: cfg, logger: logger, phase: PhaseAwaitSample}
}

func (s *Settlement) State() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Settlement) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

func (s *Settlement) enter(ex *Exchange, p Phase) {
	ex.Phase = p
	s.setPhase(p)
}

// Run reads kiosk lines until ctx is done.  Each line is handled to
// completion before the next is read.
func (s *Settlement) Run(ctx context.Context) error {
	s.logger.Printf("settlement: started (format=%s policy=%s)", s.cfg.Format.Name(), s.cfg.Policy.Name())
	linkDown := false

	for {
		if ctx.Err() != nil {
			s.logger.Printf("settlement: stopped")
			return nil
		}

		if !s.link.Connected() {
			if !linkDown {
				s.logger.Printf("settlement: kiosk link down, waiting")
				linkDown = true
			}
			s.sleep(ctx)
			continue
		}
		if linkDown {
			s.logger.Printf("settlement: kiosk link up")
			linkDown = false
		}

		line, ok, err := s.link.TryReadLine()
		if err != nil {
			s.logger.Printf("settlement: read error: %v", err)
			s.sleep(ctx)
			continue
		}
		if !ok {
			s.sleep(ctx)
			continue
		}

		// Outcomes are logged inside HandleLine.
		_, _ = s.HandleLine(ctx, line)
	}
}

func (s *Settlement) sleep(ctx context.Context) {
	t := time.NewTimer(s.cfg.PollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// HandleLine runs one exchange starting from an inbound line.  Recoverable
// outcomes (ignored, malformed, no entry, insufficient) return a nil error;
// timeouts, link and ledger failures return the cause.
func (s *Settlement) HandleLine(ctx context.Context, line string) (Exchange, error) {
	ex := Exchange{ID: uuid.NewString(), StartedAt: s.cfg.Now().UTC()}
	defer s.setPhase(PhaseAwaitSample)

	s.enter(&ex, PhaseParse)
	ex.Sample = s.cfg.Format.ParseSample(line)
	switch ex.Sample.Kind {
	case NoMatch:
		ex.Outcome = OutcomeIgnored
		return ex, nil
	case Malformed:
		ex.Outcome = OutcomeMalformed
		s.logger.Printf("settlement: malformed sample line=%q", line)
		return ex, nil
	}
	plate, balance := ex.Sample.Plate, ex.Sample.Balance

	s.enter(&ex, PhaseLookupEntry)
	entry, err := s.ledger.FindLatestUnpaid(ctx, plate)
	if errors.Is(err, store.ErrNotFound) {
		ex.Outcome = OutcomeNoEntry
		s.logger.Printf("settlement: exchange=%s plate=%s balance=%d outcome=%s", ex.ID, plate, balance, ex.Outcome)
		err = s.sendOrFail(&ex, MsgNoUnpaid)
		return ex, err
	}
	if err != nil {
		return s.fail(ex, fmt.Errorf("lookup %s: %w", plate, err))
	}
	ex.EntryID, ex.EntryTime = entry.ID, entry.EntryTime

	s.enter(&ex, PhaseComputeFee)
	elapsed := s.cfg.Now().Sub(entry.EntryTime)
	ex.Fee = s.cfg.Policy.Fee(elapsed)
	ex.NewBalance = balance - ex.Fee

	if balance < ex.Fee {
		s.enter(&ex, PhaseInsufficient)
		ex.Outcome = OutcomeInsufficient
		s.logger.Printf("settlement: exchange=%s plate=%s balance=%d fee=%d outcome=%s",
			ex.ID, plate, balance, ex.Fee, ex.Outcome)
		err = s.sendOrFail(&ex, MsgInsufficient)
		return ex, err
	}

	if s.cfg.Format.AwaitsReady() {
		s.enter(&ex, PhaseAwaitReady)
		ex.Deadline = time.Now().Add(s.cfg.ReadyTimeout)
		if _, err := PollLine(ctx, s.link, s.cfg.ReadyTimeout, s.cfg.PollInterval, s.cfg.Format.IsReady); err != nil {
			return s.abandon(ex, OutcomeReadyTimeout, err)
		}
	}

	s.enter(&ex, PhaseSendBalance)
	msg := s.cfg.Format.PaymentMessage(balance, ex.Fee)
	if err := s.send(msg); err != nil {
		return s.fail(ex, err)
	}

	s.enter(&ex, PhaseAwaitConfirm)
	ex.Deadline = time.Now().Add(s.cfg.ConfirmTimeout)
	if _, err := PollLine(ctx, s.link, s.cfg.ConfirmTimeout, s.cfg.PollInterval, s.cfg.Format.IsConfirm); err != nil {
		return s.abandon(ex, OutcomeConfirmTimeout, err)
	}

	rec, err := s.ledger.CommitPayment(ctx, store.Payment{
		EntryID: entry.ID,
		Plate:   plate,
		Amount:  ex.Fee,
		PaidAt:  s.cfg.Now().UTC(),
	})
	if errors.Is(err, store.ErrAlreadySettled) {
		ex.Outcome = OutcomeConflict
		s.logger.Printf("settlement: exchange=%s plate=%s entry=%d outcome=%s", ex.ID, plate, entry.ID, ex.Outcome)
		return ex, err
	}
	if err != nil {
		return s.fail(ex, fmt.Errorf("commit %s: %w", plate, err))
	}

	s.enter(&ex, PhaseConfirmed)
	ex.Outcome = OutcomeConfirmed
	s.logger.Printf("settlement: exchange=%s plate=%s entry=%d balance=%d fee=%d new_balance=%d outcome=%s",
		ex.ID, plate, entry.ID, balance, ex.Fee, ex.NewBalance, ex.Outcome)

	if s.cfg.OnConfirmed != nil {
		s.cfg.OnConfirmed(ex, rec)
	}
	return ex, nil
}

func (s *Settlement) send(msg string) error {
	if err := s.link.Send([]byte(msg + s.cfg.Format.LineEnding())); err != nil {
		return fmt.Errorf("send %q: %w", msg, err)
	}
	return nil
}

// sendOrFail sends a terminal notice; a failed send turns the outcome into
// failed.
func (s *Settlement) sendOrFail(ex *Exchange, msg string) error {
	if err := s.send(msg); err != nil {
		s.logger.Printf("settlement: exchange=%s notify failed: %v", ex.ID, err)
		ex.Outcome = OutcomeFailed
		return err
	}
	return nil
}

func (s *Settlement) abandon(ex Exchange, timeoutOutcome Outcome, err error) (Exchange, error) {
	waiting := ex.Phase
	switch {
	case errors.Is(err, ErrTimeout):
		s.enter(&ex, PhaseTimeout)
		ex.Outcome = timeoutOutcome
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		ex.Outcome = OutcomeAborted
	default:
		ex.Outcome = OutcomeFailed
	}
	s.logger.Printf("settlement: exchange=%s plate=%s fee=%d abandoned in %s outcome=%s: %v",
		ex.ID, ex.Sample.Plate, ex.Fee, waiting, ex.Outcome, err)
	return ex, err
}

func (s *Settlement) fail(ex Exchange, err error) (Exchange, error) {
	ex.Outcome = OutcomeFailed
	s.logger.Printf("settlement: exchange=%s plate=%s phase=%s outcome=%s: %v",
		ex.ID, ex.Sample.Plate, ex.Phase, ex.Outcome, err)
	return ex, err
}
