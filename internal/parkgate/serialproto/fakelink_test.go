package serialproto_test

import (
	"bytes"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
)

var errLinkBroken = errors.New("link broken")

// fakeLink is a scripted serial link.  Inbound lines are queued up front or
// produced by reply in response to what the protocol sends.
type fakeLink struct {
	mu        sync.Mutex
	connected bool
	inbound   []string
	sent      []string
	reply     func(sent string) []string
	sendErr   error
	readErr   error
}

func newFakeLink(lines ...string) *fakeLink {
	return &fakeLink{connected: true, inbound: lines}
}

func (f *fakeLink) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeLink) Send(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	msg := string(p)
	f.sent = append(f.sent, msg)
	if f.reply != nil {
		f.inbound = append(f.inbound, f.reply(msg)...)
	}
	return nil
}

func (f *fakeLink) TryReadLine() (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return "", false, f.readErr
	}
	if len(f.inbound) == 0 {
		return "", false, nil
	}
	line := f.inbound[0]
	f.inbound = f.inbound[1:]
	return line, true, nil
}

func (f *fakeLink) push(lines ...string) {
	f.mu.Lock()
	f.inbound = append(f.inbound, lines...)
	f.mu.Unlock()
}

func (f *fakeLink) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

// syncBuffer is a log sink safe for concurrent writers.
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

func (b *syncBuffer) Contains(s string) bool {
	return strings.Contains(b.String(), s)
}

func testLogger() (*log.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return log.New(buf, "", 0), buf
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}
