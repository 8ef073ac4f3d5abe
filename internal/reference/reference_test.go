package reference

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	cases := []struct {
		name   string
		mobile string
		prefix bool
		custom string
		want   string
	}{
		{"custom with prefix", "9999999999", true, "INV-42", "9999999999-INV-42"},
		{"custom without prefix", "9999999999", false, "INV-42", "INV-42"},
		{"custom already prefixed", "9999999999", true, "9999999999-INV-42", "9999999999-INV-42"},
		{"custom inner spaces", "9999999999", false, " INV 42 ", "INV_42"},
		{"blank custom falls back", "9999999999", true, "   ", "9999999999-STAMP"},
		{"auto without prefix", "+91 99999-99999", false, "", "STAMP9999999999"},
		{"auto, no digits", "n/a", true, "", "STAMP"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Format(tc.mobile, tc.prefix, tc.custom, "STAMP"))
		})
	}
}

func TestFormat_TenantsCanCollide(t *testing.T) {
	a := Format("9999999999", false, "ORDER-1", "X")
	b := Format("8888888888", false, "ORDER-1", "Y")
	assert.Equal(t, a, b)
}

func TestNormalizeMobile(t *testing.T) {
	assert.Equal(t, "9876543210", NormalizeMobile("+91-98765 43210"))
	assert.Equal(t, "12345", NormalizeMobile("12345"))
	assert.Equal(t, "", NormalizeMobile(""))
}

func TestGenerator_Generate(t *testing.T) {
	g, err := NewGenerator(1)
	require.NoError(t, err)

	ref := g.Generate("9999999999", false, "")
	assert.True(t, strings.HasSuffix(ref, "9999999999"))
	assert.Contains(t, ref, "9999999999")

	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		r := g.Generate("9999999999", true, "")
		require.False(t, seen[r], "duplicate reference %s", r)
		seen[r] = true
	}
}

func TestNewGenerator_InvalidNode(t *testing.T) {
	_, err := NewGenerator(5000)
	assert.Error(t, err)
}
