// Package reference builds tenant-formatted order reference numbers.
//
// Uniqueness is not guaranteed here; it is enforced by the per-tenant unique
// index on orders.reference_number.
package reference

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/bwmarrin/snowflake"
)

const (
	separator    = "-"
	mobileDigits = 10
	maxCustomLen = 64
)

// Generator supplies the time-ordered component for auto-generated references.
type Generator struct {
	node *snowflake.Node
}

// NewGenerator creates a generator bound to a snowflake node (0-1023).
func NewGenerator(nodeID int64) (*Generator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}
	return &Generator{node: node}, nil
}

// Generate returns the reference for an order. A blank custom value falls back
// to an auto-generated reference.
func (g *Generator) Generate(mobile string, enablePrefix bool, custom string) string {
	return Format(mobile, enablePrefix, custom, g.Stamp())
}

// Stamp returns a fresh, time-ordered token (base36 snowflake id).
func (g *Generator) Stamp() string {
	return strings.ToUpper(strconv.FormatInt(g.node.Generate().Int64(), 36))
}

// Format is the pure formatting rule:
//
//	custom, prefix on:   <mobile>-<custom>
//	custom, prefix off:  <custom>
//	auto,   prefix on:   <mobile>-<stamp>
//	auto,   prefix off:  <stamp><mobile>
//
// The mobile part is the last ten digits of the input; when no digits are
// present it is omitted.
func Format(mobile string, enablePrefix bool, custom, stamp string) string {
	m := NormalizeMobile(mobile)
	custom = sanitize(custom)

	if custom != "" {
		if enablePrefix && m != "" && !strings.HasPrefix(custom, m) {
			return m + separator + custom
		}
		return custom
	}

	if enablePrefix {
		if m == "" {
			return stamp
		}
		return m + separator + stamp
	}
	return stamp + m
}

// NormalizeMobile keeps the last ten digits of a phone number.
func NormalizeMobile(mobile string) string {
	var b strings.Builder
	for _, r := range mobile {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) > mobileDigits {
		digits = digits[len(digits)-mobileDigits:]
	}
	return digits
}

func sanitize(v string) string {
	v = strings.TrimSpace(v)
	v = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '_'
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, v)
	if len(v) > maxCustomLen {
		v = v[:maxCustomLen]
	}
	return v
}
