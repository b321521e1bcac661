package scanners

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/scantrade/internal/id"
	"github.com/rustyeddy/scantrade/market"
)

// Deps are the collaborators a Scanner needs.
type Deps struct {
	Provider market.Provider
	Store    SignalStore // optional
	Symbols  []string
	Window   market.Window
	Log      zerolog.Logger
}

// Scanner runs one Analyzer over its symbols. Scanners start active.
type Scanner struct {
	analyzer Analyzer
	deps     Deps
	log      zerolog.Logger
	now      func() time.Time

	mu        sync.Mutex
	active    bool
	lastScan  time.Time
	generated int
	latest    *Signal
}

func New(a Analyzer, deps Deps) *Scanner {
	if deps.Window == (market.Window{}) {
		deps.Window = market.DefaultWindow
	}
	return &Scanner{
		analyzer: a,
		deps:     deps,
		log:      deps.Log.With().Str("scanner", a.ID()).Logger(),
		now:      time.Now,
		active:   true,
	}
}

func (s *Scanner) ID() string         { return s.analyzer.ID() }
func (s *Scanner) Name() string       { return s.analyzer.Name() }
func (s *Scanner) Analyzer() Analyzer { return s.analyzer }

func (s *Scanner) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Toggle flips the scanner between active and inactive and returns the
// new state.
func (s *Scanner) Toggle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = !s.active
	return s.active
}

// Scan analyzes every symbol once and returns the signals produced. A
// symbol that fails to load or panics in analysis is logged and skipped.
func (s *Scanner) Scan(ctx context.Context) []Signal {
	if !s.Active() {
		return nil
	}

	var out []Signal
	for _, sym := range s.deps.Symbols {
		if ctx.Err() != nil {
			break
		}
		sig, ok, err := s.scanSymbol(ctx, sym)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", sym).Msg("scan failed")
			continue
		}
		if !ok {
			continue
		}

		dropUndefined(sig.Indicators)
		sig.ID = id.NewAt(sig.Timestamp)
		sig.ScannerID = s.ID()
		sig.ScannerName = s.Name()
		if sig.Symbol == "" {
			sig.Symbol = sym
		}

		s.mu.Lock()
		s.generated++
		latest := sig
		s.latest = &latest
		s.mu.Unlock()

		if s.deps.Store != nil {
			if err := s.deps.Store.RecordSignal(ctx, sig); err != nil {
				s.log.Error().Err(err).Str("symbol", sym).Msg("persist signal failed")
			}
		}
		s.log.Debug().Str("symbol", sym).Str("kind", string(sig.Kind)).Float64("confidence", sig.Confidence).Msg("signal")
		out = append(out, sig)
	}

	s.mu.Lock()
	s.lastScan = s.now()
	s.mu.Unlock()
	return out
}

// dropUndefined removes NaN and infinite readings. JSON cannot encode them.
func dropUndefined(m map[string]float64) {
	for k, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			delete(m, k)
		}
	}
}

func (s *Scanner) scanSymbol(ctx context.Context, sym string) (sig Signal, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analyze %s: panic: %v", sym, r)
		}
	}()

	series, err := s.deps.Provider.Series(ctx, sym, s.deps.Window)
	if err != nil {
		return Signal{}, false, fmt.Errorf("series %s: %w", sym, err)
	}
	if len(series) == 0 {
		return Signal{}, false, nil
	}
	sig, ok = s.analyzer.Analyze(sym, series)
	if ok {
		sig.Timestamp = s.now()
	}
	return sig, ok, nil
}

// Latest returns the most recent signal this scanner produced.
func (s *Scanner) Latest() (Signal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return Signal{}, false
	}
	return *s.latest, true
}

// Status is a point-in-time view of a scanner.
type Status struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Active           bool       `json:"active"`
	Condition        string     `json:"condition"`
	SignalsGenerated int        `json:"signals_generated"`
	LastScan         *time.Time `json:"last_scan"`
	SymbolsCount     int        `json:"symbols_count"`
}

func (s *Scanner) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		ID:               s.ID(),
		Name:             s.Name(),
		Active:           s.active,
		Condition:        s.analyzer.Condition(),
		SignalsGenerated: s.generated,
		SymbolsCount:     len(s.deps.Symbols),
	}
	if !s.lastScan.IsZero() {
		t := s.lastScan
		st.LastScan = &t
	}
	return st
}
