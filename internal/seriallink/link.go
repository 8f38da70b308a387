// Package seriallink owns the physical serial ports behind the gate and kiosk
// protocols: opening (with USB auto-detection), line buffering, and
// reconnecting after the device drops off the bus.
package seriallink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

var (
	// ErrNotConnected is returned by Send and TryReadLine while no port is
	// open.
	ErrNotConnected = errors.New("serial link not connected")

	// ErrDisabled is returned by Open when the link has no port configured.
	ErrDisabled = errors.New("serial link disabled")
)

// AutoPort asks Open to pick a USB serial device through the Detector.
const AutoPort = "auto"

const maxLineBytes = 4096

// Opener matches serial.Open.
type Opener func(name string, mode *serial.Mode) (serial.Port, error)

type Config struct {
	// Role names the link in logs and health reports ("gate", "kiosk").
	Role string

	// Port is a device path, AutoPort, or "" to disable the link.
	Port string

	BaudRate int

	// SettleDelay is waited after open; boards that reset on DTR drop the
	// first bytes otherwise.
	SettleDelay time.Duration

	// ReadTimeout bounds each TryReadLine.  Defaults to 50ms.
	ReadTimeout time.Duration

	Open     Opener    // defaults to serial.Open
	Detector *Detector // required for AutoPort
}

// Link is one serial connection.  It is safe for concurrent use, though each
// protocol drives its link from a single goroutine.
type Link struct {
	cfg    Config
	logger *log.Logger

	mu      sync.Mutex
	port    serial.Port
	device  string
	pending []byte
	lastErr error
}

func New(cfg Config, logger *log.Logger) *Link {
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = 9600
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 50 * time.Millisecond
	}
	if cfg.Open == nil {
		cfg.Open = serial.Open
	}
	cfg.Port = strings.TrimSpace(cfg.Port)
	return &Link{cfg: cfg, logger: logger}
}

func (l *Link) Role() string { return l.cfg.Role }

// Enabled reports whether a port is configured at all.
func (l *Link) Enabled() bool { return l.cfg.Port != "" }

// Device is the path of the open port, or "".
func (l *Link) Device() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.device
}

func (l *Link) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.port != nil
}

// LastError is the error that last closed or failed to open the port.
func (l *Link) LastError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// Open connects to the configured port.  Calling Open on a connected link is
// a no-op.
func (l *Link) Open(ctx context.Context) error {
	if !l.Enabled() {
		return ErrDisabled
	}

	l.mu.Lock()
	if l.port != nil {
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	device := l.cfg.Port
	if strings.EqualFold(device, AutoPort) {
		if l.cfg.Detector == nil {
			return fmt.Errorf("%s link: auto port without detector", l.cfg.Role)
		}
		d, err := l.cfg.Detector.Claim(l.cfg.Role)
		if err != nil {
			l.setErr(err)
			return fmt.Errorf("%s link: %w", l.cfg.Role, err)
		}
		device = d
	}

	port, err := l.cfg.Open(device, &serial.Mode{BaudRate: l.cfg.BaudRate})
	if err != nil {
		l.release()
		l.setErr(err)
		return fmt.Errorf("%s link: open %s: %w", l.cfg.Role, device, err)
	}
	if err := port.SetReadTimeout(l.cfg.ReadTimeout); err != nil {
		_ = port.Close()
		l.release()
		l.setErr(err)
		return fmt.Errorf("%s link: set read timeout: %w", l.cfg.Role, err)
	}

	if l.cfg.SettleDelay > 0 {
		t := time.NewTimer(l.cfg.SettleDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			_ = port.Close()
			l.release()
			return ctx.Err()
		case <-t.C:
		}
	}
	_ = port.ResetInputBuffer()

	l.mu.Lock()
	l.port = port
	l.device = device
	l.pending = l.pending[:0]
	l.lastErr = nil
	l.mu.Unlock()

	l.logger.Printf("%s link: connected on %s (baud=%d)", l.cfg.Role, device, l.cfg.BaudRate)
	return nil
}

// Close releases the port.  Safe to call on a closed link.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeLocked(nil)
}

func (l *Link) Send(p []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.port == nil {
		return ErrNotConnected
	}
	if _, err := l.port.Write(p); err != nil {
		_ = l.closeLocked(err)
		return fmt.Errorf("%s link write: %w", l.cfg.Role, err)
	}
	return nil
}

// TryReadLine returns the next complete line without its terminator.  It
// reads at most once from the port, so it returns within ReadTimeout.  Blank
// lines are skipped.
func (l *Link) TryReadLine() (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if line, ok := l.nextLineLocked(); ok {
		return line, true, nil
	}
	if l.port == nil {
		return "", false, ErrNotConnected
	}

	buf := make([]byte, 256)
	n, err := l.port.Read(buf)
	if err != nil {
		_ = l.closeLocked(err)
		return "", false, fmt.Errorf("%s link read: %w", l.cfg.Role, err)
	}
	// n == 0 is a read timeout.
	l.pending = append(l.pending, buf[:n]...)
	if len(l.pending) > maxLineBytes {
		l.logger.Printf("%s link: dropping %d bytes without a line break", l.cfg.Role, len(l.pending))
		l.pending = l.pending[:0]
	}

	line, ok := l.nextLineLocked()
	return line, ok, nil
}

func (l *Link) nextLineLocked() (string, bool) {
	for {
		i := bytes.IndexByte(l.pending, '\n')
		if i < 0 {
			return "", false
		}
		line := strings.TrimRight(string(l.pending[:i]), "\r")
		l.pending = l.pending[i+1:]
		if strings.TrimSpace(line) != "" {
			return line, true
		}
	}
}

func (l *Link) closeLocked(cause error) error {
	if l.port == nil {
		return nil
	}
	err := l.port.Close()
	if cause != nil {
		l.lastErr = cause
		l.logger.Printf("%s link: lost %s: %v", l.cfg.Role, l.device, cause)
	} else {
		l.logger.Printf("%s link: closed %s", l.cfg.Role, l.device)
	}
	l.port = nil
	l.device = ""
	l.pending = l.pending[:0]
	if l.cfg.Detector != nil {
		l.cfg.Detector.Release(l.cfg.Role)
	}
	return err
}

func (l *Link) release() {
	if l.cfg.Detector != nil {
		l.cfg.Detector.Release(l.cfg.Role)
	}
}

func (l *Link) setErr(err error) {
	l.mu.Lock()
	l.lastErr = err
	l.mu.Unlock()
}
