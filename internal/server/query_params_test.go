package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptionalHelpers(t *testing.T) {
	v, err := parseOptionalBool("  ")
	require.NoError(t, err)
	assert.Nil(t, v)

	b, err := parseOptionalBool("true")
	require.NoError(t, err)
	assert.True(t, *b)

	_, err = parseOptionalInt64("ten")
	assert.ErrorIs(t, err, errInvalidParam)

	_, err = parseOptionalSnowflakeID("0")
	assert.ErrorIs(t, err, errInvalidParam)

	d, err := parseOptionalDecimal("12.50")
	require.NoError(t, err)
	assert.Equal(t, "12.5", d.String())
}

func TestParseOptionalTime(t *testing.T) {
	start, err := parseOptionalTime("2026-05-01", false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), *start)

	end, err := parseOptionalTime("2026-05-01", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 1, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC), *end)

	exact, err := parseOptionalTime("2026-05-01T10:00:00Z", false)
	require.NoError(t, err)
	assert.Equal(t, 10, exact.Hour())

	_, err = parseOptionalTime("yesterday", false)
	assert.Error(t, err)
}
