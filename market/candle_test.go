package market

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(closes ...float64) Series {
	start := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	s := make(Series, len(closes))
	for i, c := range closes {
		s[i] = Candle{
			Time:   start.Add(time.Duration(i) * time.Hour),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: float64(100 * (i + 1)),
		}
	}
	return s
}

func TestSeriesAccessors(t *testing.T) {
	t.Parallel()

	s := series(10, 11, 12)

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 12.0, s.Last().Close)
	assert.Equal(t, 11.0, s.Prev().Close)
	assert.Equal(t, []float64{10, 11, 12}, s.Closes())
	assert.Equal(t, []float64{11, 12, 13}, s.Highs())
	assert.Equal(t, []float64{9, 10, 11}, s.Lows())
	assert.Equal(t, []float64{100, 200, 300}, s.Volumes())

	low, high := s.Range()
	assert.Equal(t, 9.0, low)
	assert.Equal(t, 13.0, high)
}

func TestSeriesEdgeCases(t *testing.T) {
	t.Parallel()

	var empty Series
	assert.Equal(t, Candle{}, empty.Last())
	assert.Equal(t, Candle{}, empty.Prev())

	one := series(5)
	assert.Equal(t, 5.0, one.Prev().Close)

	s := series(1, 2, 3, 4)
	assert.Equal(t, []float64{3, 4}, s.Tail(2).Closes())
	assert.Equal(t, 4, s.Tail(10).Len())
	assert.Equal(t, 0, s.Tail(0).Len())
}

func TestTypicalPrice(t *testing.T) {
	t.Parallel()

	c := Candle{High: 12, Low: 9, Close: 12}
	assert.InDelta(t, 11.0, c.TypicalPrice(), 1e-12)
}

func TestParseSpan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want time.Duration
	}{
		{"1m", time.Minute},
		{"90m", 90 * time.Minute},
		{"1h", time.Hour},
		{"5d", 5 * 24 * time.Hour},
		{"1wk", 7 * 24 * time.Hour},
		{"1mo", 30 * 24 * time.Hour},
		{"1y", 365 * 24 * time.Hour},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseSpan(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "h", "10", "0h", "3x"} {
		_, err := ParseSpan(bad)
		assert.Error(t, err, bad)
	}
}

func TestWindowBars(t *testing.T) {
	t.Parallel()

	n, err := DefaultWindow.Bars()
	require.NoError(t, err)
	assert.Equal(t, 720, n)

	_, err = Window{Period: "1h", Interval: "1d"}.Bars()
	assert.Error(t, err)

	assert.Equal(t, "1mo/1h", DefaultWindow.String())
}

func TestCSVRoundTrip(t *testing.T) {
	s := series(10, 11.5, 12.25)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, s))
	assert.True(t, strings.HasPrefix(buf.String(), "time,open,high,low,close,volume\n"))

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("2025-01-02T00:00:00Z,1,2,0.5,abc,10\n"))
	assert.ErrorContains(t, err, "close")

	_, err = ReadCSV(strings.NewReader("2025-01-02T01:00:00Z,1,2,0.5,1,10\n2025-01-02T00:00:00Z,1,2,0.5,1,10\n"))
	assert.ErrorContains(t, err, "line 2")

	_, err = ReadCSV(strings.NewReader("2025-01-02T00:00:00Z,1,2\n"))
	assert.Error(t, err)

	s, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, s)
}
