package scanners

import (
	"context"
	"time"
)

// Kind classifies a signal.
type Kind string

const (
	Bullish    Kind = "BULLISH"
	Bearish    Kind = "BEARISH"
	Neutral    Kind = "NEUTRAL"
	Oversold   Kind = "OVERSOLD"
	Overbought Kind = "OVERBOUGHT"
	Breakout   Kind = "BREAKOUT"
	Waiting    Kind = "WAITING"
	Ready      Kind = "READY"
)

// Signal is one scanner observation. Signals are never modified after the
// scanner stamps them.
type Signal struct {
	ID          string             `json:"id"`
	ScannerID   string             `json:"scanner_id"`
	ScannerName string             `json:"scanner_name"`
	Symbol      string             `json:"symbol"`
	Kind        Kind               `json:"signal_type"`
	Confidence  float64            `json:"confidence"`
	Price       float64            `json:"price"`
	Indicators  map[string]float64 `json:"indicators,omitempty"`
	Condition   string             `json:"condition"`
	Timestamp   time.Time          `json:"timestamp"`
}

// SignalStore persists signals as they are produced.
type SignalStore interface {
	RecordSignal(ctx context.Context, s Signal) error
}

// Confidence averages component scores; no scores yield 0.
func Confidence(scores ...float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}
