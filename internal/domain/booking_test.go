package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Booking Status Validation Tests
// ============================================================================

func TestValidBookingStatuses_ContainsAll(t *testing.T) {
	statuses := ValidBookingStatuses()
	expected := []string{
		BookingStatusPending, BookingStatusConfirmed, BookingStatusCancelled,
		BookingStatusCompleted, BookingStatusExpired,
	}
	assert.ElementsMatch(t, expected, statuses)
}

func TestIsValidBookingStatus_ValidStatuses(t *testing.T) {
	for _, s := range ValidBookingStatuses() {
		assert.True(t, IsValidBookingStatus(s), "expected %q to be valid", s)
	}
}

func TestIsValidBookingStatus_Invalid(t *testing.T) {
	assert.False(t, IsValidBookingStatus("unknown"))
	assert.False(t, IsValidBookingStatus(""))
	assert.False(t, IsValidBookingStatus("PENDING"))
}

// ============================================================================
// Status Transition Tests
// ============================================================================

func TestCanTransitionTo_AllowedTransitions(t *testing.T) {
	tests := []struct {
		from string
		to   string
	}{
		{BookingStatusPending, BookingStatusConfirmed},
		{BookingStatusPending, BookingStatusCancelled},
		{BookingStatusPending, BookingStatusExpired},
		{BookingStatusConfirmed, BookingStatusCancelled},
		{BookingStatusConfirmed, BookingStatusCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.from+"_to_"+tt.to, func(t *testing.T) {
			b := Booking{Status: tt.from}
			assert.True(t, b.CanTransitionTo(tt.to))
		})
	}
}

func TestCanTransitionTo_DisallowedTransitions(t *testing.T) {
	tests := []struct {
		from string
		to   string
	}{
		{BookingStatusPending, BookingStatusCompleted},
		{BookingStatusConfirmed, BookingStatusPending},
		{BookingStatusConfirmed, BookingStatusExpired},
		{BookingStatusCancelled, BookingStatusPending},
		{BookingStatusCancelled, BookingStatusConfirmed},
		{BookingStatusCompleted, BookingStatusCancelled},
		{BookingStatusExpired, BookingStatusConfirmed},
	}

	for _, tt := range tests {
		t.Run(tt.from+"_to_"+tt.to, func(t *testing.T) {
			b := Booking{Status: tt.from}
			assert.False(t, b.CanTransitionTo(tt.to))
		})
	}
}

func TestCanTransitionTo_UnknownStatus(t *testing.T) {
	b := Booking{Status: "garbage"}
	assert.False(t, b.CanTransitionTo(BookingStatusConfirmed))
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []string{BookingStatusCancelled, BookingStatusCompleted, BookingStatusExpired} {
		b := Booking{Status: s}
		assert.True(t, b.IsTerminal(), "expected %q to be terminal", s)
	}
	for _, s := range []string{BookingStatusPending, BookingStatusConfirmed} {
		b := Booking{Status: s}
		assert.False(t, b.IsTerminal(), "expected %q to be non-terminal", s)
	}
}

func TestHoldsCapacity(t *testing.T) {
	assert.True(t, (&Booking{Status: BookingStatusPending}).HoldsCapacity())
	assert.True(t, (&Booking{Status: BookingStatusConfirmed}).HoldsCapacity())
	assert.False(t, (&Booking{Status: BookingStatusCancelled}).HoldsCapacity())
	assert.False(t, (&Booking{Status: BookingStatusCompleted}).HoldsCapacity())
	assert.False(t, (&Booking{Status: BookingStatusExpired}).HoldsCapacity())
}

// ============================================================================
// Booking Code Tests
// ============================================================================

func TestGenerateBookingCode_Format(t *testing.T) {
	code, err := GenerateBookingCode()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(code, BookingCodePrefix), "code %q missing prefix", code)
	suffix := strings.TrimPrefix(code, BookingCodePrefix)
	assert.Len(t, suffix, 8)
	for _, c := range suffix {
		assert.True(t, (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9'),
			"code %q contains invalid character %q", code, c)
	}
}

func TestGenerateBookingCode_UniformCharacterDistribution(t *testing.T) {
	const draws = 10000
	counts := make(map[rune]int, len(bookingCodeCharset))
	for i := 0; i < draws; i++ {
		code, err := GenerateBookingCode()
		require.NoError(t, err)
		for _, c := range strings.TrimPrefix(code, BookingCodePrefix) {
			counts[c]++
		}
	}

	// 80000 characters over a 36-character alphabet: each character is
	// expected about 2222 times. The bounds sit far outside normal variance
	// and catch any modulo bias toward the low end of the alphabet.
	expected := draws * bookingCodeLength / len(bookingCodeCharset)
	for _, c := range bookingCodeCharset {
		n := counts[c]
		assert.Greater(t, n, expected*3/4, "character %q drawn %d times, expected about %d", c, n, expected)
		assert.Less(t, n, expected*5/4, "character %q drawn %d times, expected about %d", c, n, expected)
	}
}

func TestGenerateBookingCode_UniqueAcrossManyDraws(t *testing.T) {
	const n = 10000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		code, err := GenerateBookingCode()
		require.NoError(t, err)
		_, dup := seen[code]
		require.False(t, dup, "duplicate booking code %q after %d draws", code, i)
		seen[code] = struct{}{}
	}
}
