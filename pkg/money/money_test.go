package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToCents(t *testing.T) {
	cents, err := ToCents(decimal.RequireFromString("50"))
	require.NoError(t, err)
	assert.Equal(t, int64(5000), cents)

	cents, err = ToCents(decimal.RequireFromString("19.99"))
	require.NoError(t, err)
	assert.Equal(t, int64(1999), cents)

	cents, err = ToCents(decimal.RequireFromString("19.900"))
	require.NoError(t, err)
	assert.Equal(t, int64(1990), cents)

	_, err = ToCents(decimal.RequireFromString("0.001"))
	assert.ErrorIs(t, err, ErrTooPrecise)

	_, err = ToCents(decimal.RequireFromString("-1"))
	assert.ErrorIs(t, err, ErrNegative)
}

func TestPercentOfRoundsHalfUp(t *testing.T) {
	// 15% of 33.33 = 4.9995
	assert.Equal(t, int64(500), PercentOf(3333, decimal.RequireFromString("15")))
	// 12.5% of 0.04 = 0.005
	assert.Equal(t, int64(1), PercentOf(4, decimal.RequireFromString("12.5")))
	// 12.5% of 0.03 = 0.00375
	assert.Equal(t, int64(0), PercentOf(3, decimal.RequireFromString("12.5")))
	assert.Equal(t, int64(1000), PercentOf(10000, decimal.RequireFromString("10")))
	assert.Equal(t, int64(0), PercentOf(10000, decimal.Zero))
}

func TestDecimals(t *testing.T) {
	assert.Equal(t, int32(0), Decimals(decimal.RequireFromString("10")))
	assert.Equal(t, int32(0), Decimals(decimal.RequireFromString("10.00")))
	assert.Equal(t, int32(1), Decimals(decimal.RequireFromString("12.50")))
	assert.Equal(t, int32(3), Decimals(decimal.RequireFromString("0.125")))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "10.00", Format(1000))
	assert.Equal(t, "0.05", Format(5))
}
