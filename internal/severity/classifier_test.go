package severity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyBuiltins(t *testing.T) {
	c := NewClassifier(nil)

	tests := []struct {
		errorType string
		expected  Level
	}{
		{"SecurityError", Critical},
		{"PG::ConnectionBad", Critical},
		{"Net::ReadTimeout", High},
		{"NoMethodError", High},
		{"ArgumentError", Medium},
		{"JSON::ParserError", Medium},
		{"SomeUnknownError", Low},
		{"", Low},
	}

	for _, tt := range tests {
		t.Run(tt.errorType, func(t *testing.T) {
			assert.Equal(t, tt.expected, c.Classify(tt.errorType))
		})
	}
}

func TestClassifyOverrides(t *testing.T) {
	c := NewClassifier(map[string]Level{
		"PaymentFailedError": Critical,
		"NoMethodError":      Low, // demote a built-in high
		"BogusLevelError":    Level("urgent"),
	})

	t.Run("OverrideWins", func(t *testing.T) {
		require.Equal(t, Critical, c.Classify("PaymentFailedError"))
		require.Equal(t, Low, c.Classify("NoMethodError"))
	})

	t.Run("InvalidOverrideIgnored", func(t *testing.T) {
		require.Equal(t, Low, c.Classify("BogusLevelError"))
	})

	t.Run("BuiltinsStillApply", func(t *testing.T) {
		require.Equal(t, Critical, c.Classify("SecurityError"))
	})
}

func TestIsCritical(t *testing.T) {
	c := NewClassifier(nil)
	require.True(t, c.IsCritical("NoMemoryError"))
	require.False(t, c.IsCritical("ArgumentError"))
}

func TestRankOrdering(t *testing.T) {
	require.Greater(t, Rank(Critical), Rank(High))
	require.Greater(t, Rank(High), Rank(Medium))
	require.Greater(t, Rank(Medium), Rank(Low))
	require.Greater(t, Rank(Low), Rank(Level("unknown")))

	require.True(t, AtLeast(High, Medium))
	require.True(t, AtLeast(High, High))
	require.False(t, AtLeast(Low, Medium))
}
