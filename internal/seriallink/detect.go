package seriallink

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.bug.st/serial/enumerator"
)

var ErrNoDevice = errors.New("no serial device detected")

// Detector picks USB serial devices for links configured with AutoPort and
// keeps two links from claiming the same device.
type Detector struct {
	// List defaults to enumerator.GetDetailedPortsList.
	List func() ([]*enumerator.PortDetails, error)

	mu      sync.Mutex
	claimed map[string]string // device -> role
}

func NewDetector() *Detector {
	return &Detector{List: enumerator.GetDetailedPortsList}
}

// Claim returns the first unclaimed device that looks like a
// microcontroller board and records it against role.  A role that already
// holds a device gets it back.
func (d *Detector) Claim(role string) (string, error) {
	ports, err := d.List()
	if err != nil {
		return "", fmt.Errorf("enumerate ports: %w", err)
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i].Name < ports[j].Name })

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.claimed == nil {
		d.claimed = make(map[string]string)
	}

	for dev, owner := range d.claimed {
		if owner == role {
			return dev, nil
		}
	}

	// Boards that identify themselves win over generic USB adapters.
	for _, pass := range []func(*enumerator.PortDetails) bool{isBoard, LooksLikeDevice} {
		for _, p := range ports {
			if _, taken := d.claimed[p.Name]; taken || !pass(p) {
				continue
			}
			d.claimed[p.Name] = role
			return p.Name, nil
		}
	}
	return "", ErrNoDevice
}

// Release frees whatever device role holds.
func (d *Detector) Release(role string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for dev, owner := range d.claimed {
		if owner == role {
			delete(d.claimed, dev)
		}
	}
}

// LooksLikeDevice matches USB serial adapters and the usual Linux and macOS
// device names for them.
func LooksLikeDevice(p *enumerator.PortDetails) bool {
	if p == nil {
		return false
	}
	if p.IsUSB || isBoard(p) {
		return true
	}
	for _, s := range []string{"ttyUSB", "ttyACM", "usbmodem", "usbserial"} {
		if strings.Contains(p.Name, s) {
			return true
		}
	}
	return false
}

func isBoard(p *enumerator.PortDetails) bool {
	product := strings.ToUpper(p.Product)
	return strings.Contains(product, "ARDUINO") || strings.Contains(product, "USB-SERIAL")
}
