package serialproto

import (
	"fmt"
	"strconv"
	"strings"
)

type SampleKind int

const (
	// NoMatch: the line is not a balance sample (device chatter, stray
	// control tokens).
	NoMatch SampleKind = iota
	// Malformed: looked like a sample but could not be parsed.
	Malformed
	Valid
)

func (k SampleKind) String() string {
	switch k {
	case Valid:
		return "valid"
	case Malformed:
		return "malformed"
	default:
		return "no-match"
	}
}

// Sample is the tagged result of tokenizing one inbound kiosk line.
type Sample struct {
	Kind    SampleKind
	Plate   string
	Balance int64
	Raw     string
}

const (
	MsgInsufficient = "I"
	MsgNoUnpaid     = "NO_UNPAID_ENTRY"
)

// Format is one kiosk message dialect.
type Format interface {
	Name() string
	ParseSample(line string) Sample
	// AwaitsReady reports whether the device sends READY before it will
	// accept the payment message.
	AwaitsReady() bool
	IsReady(line string) bool
	PaymentMessage(balance, fee int64) string
	IsConfirm(line string) bool
	LineEnding() string
}

const (
	FormatStandard = "standard"
	FormatLegacy   = "legacy"
)

// NewFormat returns the dialect called name.  An empty name selects standard.
func NewFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", FormatStandard:
		return Standard{}, nil
	case FormatLegacy:
		return Legacy{}, nil
	default:
		return nil, fmt.Errorf("unknown message format %q", name)
	}
}

// Standard: inbound "<plate>,<balance>", READY, anything containing DONE;
// outbound the new balance.
type Standard struct{}

func (Standard) Name() string { return FormatStandard }

func (Standard) AwaitsReady() bool { return true }

func (Standard) LineEnding() string { return "\r\n" }

func (Standard) ParseSample(line string) Sample {
	return parseFields(line, strings.TrimSpace(line))
}

func (Standard) IsReady(line string) bool {
	return strings.EqualFold(strings.TrimSpace(line), "READY")
}

func (Standard) PaymentMessage(balance, fee int64) string {
	return strconv.FormatInt(balance-fee, 10)
}

func (Standard) IsConfirm(line string) bool {
	return strings.Contains(line, "DONE")
}

// Legacy: inbound "DATA:<plate>,<balance>" and an exact DONE; outbound
// "CHARGE:<fee>".  There is no READY phase.
type Legacy struct{}

const legacyPrefix = "DATA:"

func (Legacy) Name() string { return FormatLegacy }

func (Legacy) AwaitsReady() bool { return false }

func (Legacy) IsReady(string) bool { return true }

func (Legacy) LineEnding() string { return "\n" }

func (Legacy) ParseSample(line string) Sample {
	body, ok := strings.CutPrefix(strings.TrimSpace(line), legacyPrefix)
	if !ok {
		return Sample{Kind: NoMatch, Raw: line}
	}
	s := parseFields(line, body)
	if s.Kind == NoMatch {
		// The prefix alone marks the line as a sample.
		s.Kind = Malformed
	}
	return s
}

func (Legacy) PaymentMessage(_, fee int64) string {
	return "CHARGE:" + strconv.FormatInt(fee, 10)
}

func (Legacy) IsConfirm(line string) bool {
	return strings.TrimSpace(line) == "DONE"
}

// parseFields splits "<plate>,<balance>".  A line without a delimiter is not
// a sample; one with the wrong field count, an empty plate or no digits in
// the balance is malformed.
func parseFields(raw, body string) Sample {
	if !strings.Contains(body, ",") {
		return Sample{Kind: NoMatch, Raw: raw}
	}

	parts := strings.Split(body, ",")
	if len(parts) != 2 {
		return Sample{Kind: Malformed, Raw: raw}
	}

	plate := strings.ToUpper(strings.TrimSpace(parts[0]))
	digits := digitsOnly(parts[1])
	if plate == "" || digits == "" {
		return Sample{Kind: Malformed, Raw: raw}
	}

	balance, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return Sample{Kind: Malformed, Raw: raw}
	}
	return Sample{Kind: Valid, Plate: plate, Balance: balance, Raw: raw}
}

func digitsOnly(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
