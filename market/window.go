package market

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Window describes how much history to fetch and at which bar size,
// e.g. Period "1mo" of Interval "1h" bars.
type Window struct {
	Period   string `json:"period" yaml:"period"`
	Interval string `json:"interval" yaml:"interval"`
}

// DefaultWindow is one month of hourly bars.
var DefaultWindow = Window{Period: "1mo", Interval: "1h"}

func (w Window) String() string {
	return w.Period + "/" + w.Interval
}

// Bars returns how many Interval bars fit in Period.
func (w Window) Bars() (int, error) {
	p, err := ParseSpan(w.Period)
	if err != nil {
		return 0, fmt.Errorf("period: %w", err)
	}
	iv, err := ParseSpan(w.Interval)
	if err != nil {
		return 0, fmt.Errorf("interval: %w", err)
	}
	if iv > p {
		return 0, fmt.Errorf("interval %s longer than period %s", w.Interval, w.Period)
	}
	return int(p / iv), nil
}

// IntervalDuration is the bar size as a time.Duration.
func (w Window) IntervalDuration() (time.Duration, error) {
	return ParseSpan(w.Interval)
}

var spanUnits = map[string]time.Duration{
	"s":  time.Second,
	"m":  time.Minute,
	"h":  time.Hour,
	"d":  24 * time.Hour,
	"wk": 7 * 24 * time.Hour,
	"w":  7 * 24 * time.Hour,
	"mo": 30 * 24 * time.Hour,
	"y":  365 * 24 * time.Hour,
}

// ParseSpan parses market-data spans such as "90m", "1h", "5d", "1wk",
// "3mo" and "1y". Months are 30 days and years 365 days.
func ParseSpan(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 || i == len(s) {
		return 0, fmt.Errorf("invalid span %q", s)
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid span %q", s)
	}
	unit, ok := spanUnits[s[i:]]
	if !ok {
		return 0, fmt.Errorf("invalid span unit %q", s[i:])
	}
	return time.Duration(n) * unit, nil
}
