package seriallink_test

import (
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"go.bug.st/serial"
)

var errUnplugged = errors.New("device unplugged")

// fakePort is an in-memory serial.Port.  Reads return queued chunks, or
// (0, nil) like a real port whose read timeout expired.
type fakePort struct {
	mu      sync.Mutex
	chunks  [][]byte
	written []byte
	closed  bool
	readErr error
	timeout time.Duration
}

func (p *fakePort) feed(s string) {
	p.mu.Lock()
	p.chunks = append(p.chunks, []byte(s))
	p.mu.Unlock()
}

func (p *fakePort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(p.written)
}

func (p *fakePort) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.readErr != nil {
		return 0, p.readErr
	}
	if len(p.chunks) == 0 {
		return 0, nil
	}
	n := copy(b, p.chunks[0])
	if n < len(p.chunks[0]) {
		p.chunks[0] = p.chunks[0][n:]
	} else {
		p.chunks = p.chunks[1:]
	}
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, errUnplugged
	}
	p.written = append(p.written, b...)
	return len(b), nil
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	p.timeout = t
	p.mu.Unlock()
	return nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *fakePort) SetMode(*serial.Mode) error { return nil }
func (p *fakePort) Drain() error               { return nil }
func (p *fakePort) ResetInputBuffer() error    { return nil }
func (p *fakePort) ResetOutputBuffer() error   { return nil }
func (p *fakePort) SetDTR(bool) error          { return nil }
func (p *fakePort) SetRTS(bool) error          { return nil }
func (p *fakePort) Break(time.Duration) error  { return nil }

func (p *fakePort) GetModemStatusBits() (*serial.ModemStatusBits, error) {
	return &serial.ModemStatusBits{}, nil
}

// opener hands out ports in order and records the device names asked for.
type opener struct {
	mu      sync.Mutex
	ports   []*fakePort
	devices []string
	err     error
}

func (o *opener) Open(name string, _ *serial.Mode) (serial.Port, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.devices = append(o.devices, name)
	if o.err != nil {
		return nil, o.err
	}
	if len(o.ports) == 0 {
		return nil, errors.New("no such device")
	}
	p := o.ports[0]
	o.ports = o.ports[1:]
	return p, nil
}

func (o *opener) Devices() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.devices))
	copy(out, o.devices)
	return out
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}
