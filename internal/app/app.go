// Package app wires the configured components into a runnable process.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/scantrade/api"
	"github.com/rustyeddy/scantrade/bots"
	"github.com/rustyeddy/scantrade/config"
	"github.com/rustyeddy/scantrade/engine"
	"github.com/rustyeddy/scantrade/feed"
	"github.com/rustyeddy/scantrade/journal"
	"github.com/rustyeddy/scantrade/market"
	"github.com/rustyeddy/scantrade/metrics"
	"github.com/rustyeddy/scantrade/notify"
	"github.com/rustyeddy/scantrade/portfolio"
	"github.com/rustyeddy/scantrade/risk"
	"github.com/rustyeddy/scantrade/scanners"
)

type App struct {
	Config     *config.Config
	Log        zerolog.Logger
	Metrics    *metrics.Metrics
	Journal    journal.Journal
	Provider   market.Provider
	Ledger     *portfolio.Ledger
	Governor   *risk.Governor
	Dispatcher *notify.Dispatcher
	Engine     *engine.Engine
	Server     *api.Server
}

// Options let callers swap the journal or provider, e.g. in tests.
type Options struct {
	Version  string
	Journal  journal.Journal
	Provider market.Provider
}

// New builds every component in dependency order. The journal is opened
// here and released by Close.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts Options) (*App, error) {
	a := &App{Config: cfg, Log: log, Metrics: metrics.New()}

	a.Journal = opts.Journal
	if a.Journal == nil {
		j, err := journal.Open(cfg.Journal)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		a.Journal = j
	}
	// the ledger always starts flat
	if err := a.Journal.ClearPositions(ctx); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("clear positions: %w", err)
	}

	a.Provider = opts.Provider
	if a.Provider == nil {
		p, err := feed.Build(ctx, cfg.Provider, cfg.Cache, a.Metrics, log.With().Str("component", "feed").Logger())
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("build provider: %w", err)
		}
		a.Provider = p
	}

	window, err := cfg.MarketWindow()
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Ledger = portfolio.New(cfg.Portfolio(), a.Journal, log.With().Str("component", "ledger").Logger())
	a.Ledger.SetListener(a.Metrics)
	a.Governor = risk.NewGovernor(cfg.RiskPolicy(), a.Ledger, log.With().Str("component", "risk").Logger())

	scs, err := a.buildScanners(window)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	bs, err := a.buildBots(window)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Dispatcher, err = notify.Build(cfg.Notify, log.With().Str("component", "notify").Logger())
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("build notifiers: %w", err)
	}

	a.Engine = engine.New(cfg.Engine, engine.Deps{
		Provider: a.Provider,
		Ledger:   a.Ledger,
		Governor: a.Governor,
		Scanners: scs,
		Bots:     bs,
		Sink:     a.Dispatcher,
		Observer: a.Metrics,
		Log:      log.With().Str("component", "engine").Logger(),
	})
	a.Server = api.NewServer(cfg.Server, api.Deps{
		Engine:  a.Engine,
		History: a.Journal,
		Metrics: a.Metrics.Handler(),
		Version: opts.Version,
		Log:     log,
	})
	return a, nil
}

func (a *App) buildScanners(w market.Window) ([]*scanners.Scanner, error) {
	var out []*scanners.Scanner
	for _, id := range a.Config.ScannerIDs() {
		an, err := scanners.NewAnalyzer(id)
		if err != nil {
			return nil, err
		}
		out = append(out, scanners.New(an, scanners.Deps{
			Provider: a.Provider,
			Store:    a.Journal,
			Symbols:  a.Config.Symbols,
			Window:   w,
			Log:      a.Log,
		}))
	}
	return out, nil
}

func (a *App) buildBots(w market.Window) ([]*bots.Bot, error) {
	onReject := engine.RejectRecorder(a.Governor, a.Metrics.Reject)

	var gate bots.Gate
	if a.Config.Risk.EnableChecks {
		gate = a.Governor
	}

	var out []*bots.Bot
	for _, id := range a.Config.BotIDs() {
		p, err := bots.NewPolicy(id)
		if err != nil {
			return nil, err
		}
		b := bots.New(p, bots.Deps{
			Provider:      a.Provider,
			Ledger:        a.Ledger,
			Gate:          gate,
			Symbols:       a.Config.Symbols,
			Window:        w,
			Log:           a.Log,
			CapitalPct:    a.Config.Bots.CapitalPct[id],
			MinConfidence: a.Config.Bots.MinConfidence,
			OnReject:      onReject,
		})
		if a.Config.StartsActive(id) {
			b.Activate()
		}
		out = append(out, b)
	}
	return out, nil
}

// Run starts the notifier, the engine and the API and blocks until ctx
// is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.Dispatcher.Run(ctx)
	defer a.Dispatcher.Close()

	a.Governor.Record(risk.LevelInfo, "ENGINE_STARTED", "Trading engine started")
	a.Log.Info().
		Int("scanners", len(a.Engine.Scanners())).
		Int("bots", len(a.Engine.Bots())).
		Strs("symbols", a.Config.Symbols).
		Dur("interval", a.Config.Engine.Interval).
		Msg("starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Engine.Run(gctx) })
	g.Go(func() error { return a.Server.ListenAndServe(gctx) })
	err := g.Wait()

	a.Governor.Record(risk.LevelInfo, "ENGINE_STOPPED", "Trading engine stopped")
	a.Log.Info().Msg("stopped")
	return err
}

// Close releases the journal and the provider's cache connection.
func (a *App) Close() error {
	var errs []error
	if c, ok := a.Provider.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	if a.Journal != nil {
		errs = append(errs, a.Journal.Close())
	}
	return errors.Join(errs...)
}
