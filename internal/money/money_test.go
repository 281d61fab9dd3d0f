package money

import (
	"math"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Cents
		wantErr bool
	}{
		{in: "1", want: 100},
		{in: "1.0", want: 100},
		{in: "12.34", want: 1234},
		{in: "12,34", want: 1234},
		{in: " 2.50 ", want: 250},
		{in: "0.01", want: 1},
		{in: "0", want: 0},
		{in: "1.005", want: 101},
		{in: "1.004", want: 100},
		{in: "12.345", want: 1235},
		{in: "-12.345", want: -1235},
		{in: "-0.005", want: -1},
		{in: "-0.004", want: 0},
		{in: "", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "1.2.3", wantErr: true},
		{in: "99999999999999999999", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := Parse(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromDecimal_HalfAwayFromZero(t *testing.T) {
	t.Parallel()

	tests := map[string]Cents{
		"0.125":  13,
		"-0.125": -13,
		"0.135":  14,
		"0.1249": 12,
	}
	for in, want := range tests {
		got, err := FromDecimal(decimal.RequireFromString(in))
		require.NoError(t, err)
		assert.Equal(t, want, got, "input %s", in)
	}
}

func TestString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "12.34", Cents(1234).String())
	assert.Equal(t, "0.05", Cents(5).String())
	assert.Equal(t, "-0.05", Cents(-5).String())
	assert.Equal(t, "0.00", Cents(0).String())
	assert.Equal(t, "-1000.00", Cents(-100000).String())
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	fixed := []Cents{0, 1, -1, 99, 100, -100, 1234567, math.MaxInt64, math.MinInt64}
	r := rand.New(rand.NewPCG(7, 11))
	for range 1000 {
		fixed = append(fixed, Cents(r.Int64N(1<<50)-1<<49))
	}

	for _, c := range fixed {
		got, err := Parse(c.String())
		require.NoError(t, err, "cents %d", c)
		assert.Equal(t, c, got)
	}
}

func TestSum(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		amounts []Cents
		want    Cents
		wantErr bool
	}{
		{name: "empty", want: 0},
		{name: "thirds", amounts: []Cents{334, 333, 333}, want: 1000},
		{name: "mixed signs", amounts: []Cents{10, -15}, want: -5},
		{name: "max", amounts: []Cents{math.MaxInt64 - 1, 1}, want: math.MaxInt64},
		{name: "min", amounts: []Cents{math.MinInt64 + 1, -1}, want: math.MinInt64},
		{name: "wraps past max", amounts: []Cents{math.MaxInt64, math.MaxInt64, 3}, wantErr: true},
		{name: "wraps past min", amounts: []Cents{math.MinInt64, -1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sum(tt.amounts...)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrOverflow)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAdd(t *testing.T) {
	t.Parallel()

	got, err := Add(math.MaxInt64, -1)
	require.NoError(t, err)
	assert.Equal(t, Cents(math.MaxInt64-1), got)

	_, err = Add(math.MaxInt64, 1)
	assert.ErrorIs(t, err, ErrOverflow)
	_, err = Add(math.MinInt64, -1)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestAbs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Cents(5), Cents(-5).Abs())
	assert.Equal(t, Cents(5), Cents(5).Abs())
	assert.Equal(t, Cents(math.MinInt64), Cents(math.MinInt64).Abs())
}

func TestFormat(t *testing.T) {
	t.Parallel()

	out, err := Format(1234, "USD", language.AmericanEnglish)
	require.NoError(t, err)
	assert.Contains(t, out, "12.34")
	assert.Contains(t, out, "$")

	out, err = Format(1234, "EUR", language.BritishEnglish)
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "€"), "got %q", out)

	_, err = Format(100, "ZZZ", language.English)
	assert.Error(t, err)
}

func TestValidCurrency(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidCurrency("USD"))
	assert.True(t, ValidCurrency("EUR"))
	assert.False(t, ValidCurrency("US"))
	assert.False(t, ValidCurrency("ZZZ"))
}
