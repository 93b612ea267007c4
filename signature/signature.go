// Package signature parses byte signatures such as "48 8D 15 ?? ?? ?? ?? 66 44 89"
// and finds them in a local copy of a module.
package signature

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrPatternNotFound is returned when no offset of a buffer matches a pattern
	ErrPatternNotFound = errors.New("pattern not found")

	// ErrInvalidPattern is returned for notation that does not describe a non-empty pattern
	ErrInvalidPattern = errors.New("invalid pattern")
)

// Part is one position of a pattern
type Part struct {
	Value byte
	Mask  byte // 0xFF for exact match, 0x00 for wildcard
}

// IsWildcard reports whether the part matches any byte
func (p Part) IsWildcard() bool {
	return p.Mask == 0
}

// Pattern is an immutable, non-empty sequence of exact and wildcard bytes
type Pattern struct {
	parts []Part
}

// Parse turns notation into a Pattern. Tokens are separated by spaces or commas,
// "??" and "?" are wildcards, anything else must be a two digit hex byte.
func Parse(notation string) (Pattern, error) {
	tokens := strings.FieldsFunc(notation, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})

	if len(tokens) == 0 {
		return Pattern{}, fmt.Errorf("%w: empty pattern", ErrInvalidPattern)
	}

	parts := make([]Part, 0, len(tokens))
	for i, token := range tokens {
		if token == "??" || token == "?" {
			parts = append(parts, Part{Value: 0, Mask: 0})
			continue
		}

		if len(token) != 2 {
			return Pattern{}, fmt.Errorf("%w: token %d %q is not a hex byte", ErrInvalidPattern, i, token)
		}

		val, err := strconv.ParseUint(token, 16, 8)
		if err != nil {
			return Pattern{}, fmt.Errorf("%w: token %d %q is not a hex byte", ErrInvalidPattern, i, token)
		}
		parts = append(parts, Part{Value: byte(val), Mask: 0xFF})
	}

	return Pattern{parts: parts}, nil
}

// MustParse is Parse for patterns known at compile time
func MustParse(notation string) Pattern {
	p, err := Parse(notation)
	if err != nil {
		panic(err)
	}
	return p
}

// Len returns the number of bytes the pattern covers
func (p Pattern) Len() int {
	return len(p.parts)
}

// String renders the pattern in canonical notation, e.g. "48 8D 15 ?? ??"
func (p Pattern) String() string {
	var sb strings.Builder
	for i, part := range p.parts {
		if i > 0 {
			sb.WriteString(" ")
		}
		if part.IsWildcard() {
			sb.WriteString("??")
		} else {
			fmt.Fprintf(&sb, "%02X", part.Value)
		}
	}
	return sb.String()
}

// matchAt reports whether every exact byte of the pattern equals data at offset i.
// The caller guarantees i+len(p.parts) <= len(data).
func (p Pattern) matchAt(data []byte, i int) bool {
	for j, part := range p.parts {
		// wildcard
		if part.Mask == 0 {
			continue
		}
		if data[i+j]&part.Mask != part.Value&part.Mask {
			return false
		}
	}
	return true
}

// Scan returns the lowest offset in data where the pattern matches
func (p Pattern) Scan(data []byte) (int, error) {
	if len(p.parts) == 0 {
		return 0, fmt.Errorf("%w: empty pattern", ErrInvalidPattern)
	}

	for i := 0; i <= len(data)-len(p.parts); i++ {
		if p.matchAt(data, i) {
			return i, nil
		}
	}

	return 0, fmt.Errorf("%w: %s", ErrPatternNotFound, p)
}

// ScanAll returns every offset in data where the pattern matches, in ascending order
func (p Pattern) ScanAll(data []byte) []int {
	if len(p.parts) == 0 {
		return nil
	}

	var matches []int
	for i := 0; i <= len(data)-len(p.parts); i++ {
		if p.matchAt(data, i) {
			matches = append(matches, i)
		}
	}
	return matches
}

// UnmarshalText lets patterns be read straight from configuration
func (p *Pattern) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// MarshalText renders the canonical notation
func (p Pattern) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}
