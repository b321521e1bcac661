package market

import "time"

// Candle represents one OHLCV bar.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// TypicalPrice is (high+low+close)/3.
func (c Candle) TypicalPrice() float64 {
	return (c.High + c.Low + c.Close) / 3
}

// Series is a chronological run of candles, oldest first. Series handed to
// scanners and bots are treated as read-only.
type Series []Candle

func (s Series) Len() int { return len(s) }

// Last returns the most recent candle, or the zero Candle if s is empty.
func (s Series) Last() Candle {
	if len(s) == 0 {
		return Candle{}
	}
	return s[len(s)-1]
}

// Prev returns the candle before the last one. A single-candle series
// returns that candle.
func (s Series) Prev() Candle {
	switch len(s) {
	case 0:
		return Candle{}
	case 1:
		return s[0]
	}
	return s[len(s)-2]
}

func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.Close
	}
	return out
}

func (s Series) Highs() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.High
	}
	return out
}

func (s Series) Lows() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.Low
	}
	return out
}

func (s Series) Volumes() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.Volume
	}
	return out
}

// Tail returns the last n candles (all of them when n >= len(s)).
func (s Series) Tail(n int) Series {
	if n <= 0 {
		return Series{}
	}
	if n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}

// Range returns the lowest low and highest high in s.
func (s Series) Range() (low, high float64) {
	for i, c := range s {
		if i == 0 || c.Low < low {
			low = c.Low
		}
		if i == 0 || c.High > high {
			high = c.High
		}
	}
	return low, high
}
