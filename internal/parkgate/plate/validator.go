// Package plate turns noisy recognizer text into trusted plate identities.
package plate

import (
	"strings"
	"unicode"
)

// Validator applies the structural plate filter: find Marker in the
// normalized text, take the Window characters starting at it and accept the
// window only if it splits into Letters letters, Digits digits and Suffix
// letters (the marker counts toward Letters).
type Validator struct {
	Marker  string
	Window  int
	Letters int
	Digits  int
	Suffix  int
}

// DefaultValidator matches the deployment's 7-character format, e.g. RAB123A.
func DefaultValidator() Validator {
	return NewValidator("RA")
}

// NewValidator returns the 3-3-1 layout anchored on marker.  An empty marker
// falls back to "RA".
func NewValidator(marker string) Validator {
	marker = strings.ToUpper(strings.TrimSpace(marker))
	if marker == "" {
		marker = "RA"
	}
	return Validator{Marker: marker, Window: 7, Letters: 3, Digits: 3, Suffix: 1}
}

// Normalize strips all whitespace and uppercases.
func Normalize(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, raw)
}

// Validate returns the plate found in raw, or ("", false).  Every occurrence
// of the marker is tried in order; the first window that fits wins.
func (v Validator) Validate(raw string) (string, bool) {
	if !v.usable() {
		return "", false
	}
	text := Normalize(raw)

	for off := 0; off < len(text); {
		i := strings.Index(text[off:], v.Marker)
		if i < 0 {
			break
		}
		start := off + i
		if start+v.Window <= len(text) {
			if w := text[start : start+v.Window]; v.fits(w) {
				return w, true
			}
		}
		off = start + 1
	}
	return "", false
}

func (v Validator) usable() bool {
	return v.Marker != "" &&
		v.Letters >= len(v.Marker) &&
		v.Digits >= 0 && v.Suffix >= 0 &&
		v.Window == v.Letters+v.Digits+v.Suffix
}

func (v Validator) fits(w string) bool {
	for i := 0; i < len(w); i++ {
		c := w[i]
		switch {
		case i < v.Letters:
			if !isLetter(c) {
				return false
			}
		case i < v.Letters+v.Digits:
			if !isDigit(c) {
				return false
			}
		default:
			if !isLetter(c) {
				return false
			}
		}
	}
	return true
}

func isLetter(c byte) bool { return c >= 'A' && c <= 'Z' }
func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
