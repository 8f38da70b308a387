// Package recognition turns camera output into raw plate text for the exit
// lane.  Nothing here validates plates; that is the lane's job.
package recognition

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strings"
	"time"
)

// Sink receives one raw plate candidate.  It returns false when the
// candidate was dropped.
type Sink func(text string) bool

// alprResponse is one JSON line of `alpr -j` output.
type alprResponse struct {
	EpochTime      float64      `json:"epoch_time"`
	ProcessingTime float64      `json:"processing_time_ms"`
	Results        []alprResult `json:"results"`
}

type alprResult struct {
	Plate      string  `json:"plate"`
	Confidence float64 `json:"confidence"`
	Region     string  `json:"region"`
}

type ALPRConfig struct {
	Command string
	Args    []string

	// MinConfidence is in percent, as OpenALPR reports it.
	MinConfidence float64

	// RestartDelay is the wait before restarting an exited command.
	// Defaults to 5s.
	RestartDelay time.Duration
}

// ALPRStream runs an OpenALPR process against a video stream and forwards
// every plate it reports above the confidence floor.
type ALPRStream struct {
	cfg    ALPRConfig
	sink   Sink
	logger *log.Logger
}

func NewALPRStream(cfg ALPRConfig, sink Sink, logger *log.Logger) *ALPRStream {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = 5 * time.Second
	}
	return &ALPRStream{cfg: cfg, sink: sink, logger: logger}
}

// Run keeps the command running until ctx is cancelled, restarting it after
// it exits.
func (a *ALPRStream) Run(ctx context.Context) error {
	if a.cfg.Command == "" {
		return errors.New("alpr: no command configured")
	}
	for {
		err := a.runOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		a.logger.Printf("alpr: command exited: %v; restarting in %s", err, a.cfg.RestartDelay)

		t := time.NewTimer(a.cfg.RestartDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

func (a *ALPRStream) runOnce(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, a.cfg.Command, a.cfg.Args...)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("alpr stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("alpr start: %w", err)
	}
	a.logger.Printf("alpr: started %s (pid %d)", a.cfg.Command, cmd.Process.Pid)

	scanErr := a.Scan(out)
	waitErr := cmd.Wait()
	if scanErr != nil {
		return scanErr
	}
	return waitErr
}

// Scan decodes newline-delimited OpenALPR JSON from r until EOF.  Lines that
// fail to decode are logged and skipped.
func (a *ALPRStream) Scan(r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var resp alprResponse
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			a.logger.Printf("alpr: parse error: %v", err)
			continue
		}
		for _, res := range resp.Results {
			if res.Plate == "" || res.Confidence < a.cfg.MinConfidence {
				continue
			}
			if !a.sink(res.Plate) {
				a.logger.Printf("alpr: dropped plate=%s confidence=%.1f (lane busy)", res.Plate, res.Confidence)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("alpr read: %w", err)
	}
	return nil
}
