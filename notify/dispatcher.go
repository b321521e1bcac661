package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"

	"github.com/rustyeddy/scantrade/scanners"
)

type Config struct {
	DiscordWebhookURL string        `yaml:"discord_webhook_url" json:"discord_webhook_url"`
	TelegramToken     string        `yaml:"telegram_token" json:"telegram_token"`
	TelegramChatID    int64         `yaml:"telegram_chat_id" json:"telegram_chat_id"`
	MinConfidence     float64       `yaml:"min_confidence" json:"min_confidence"`
	Cooldown          time.Duration `yaml:"cooldown" json:"cooldown"`
	QueueSize         int           `yaml:"queue_size" json:"queue_size"`
}

func DefaultConfig() Config {
	return Config{MinConfidence: 70, Cooldown: 30 * time.Minute, QueueSize: 64}
}

// Enabled reports whether any channel is configured.
func (c Config) Enabled() bool {
	return c.DiscordWebhookURL != "" || c.TelegramToken != ""
}

// Dispatcher queues signals and delivers them to every notifier from a
// single worker. Publish never blocks: a full queue drops the signal.
type Dispatcher struct {
	notifiers []Notifier
	minConf   float64
	cooldown  time.Duration
	log       zerolog.Logger
	now       func() time.Time

	queue chan scanners.Signal
	done  chan struct{}

	mu      sync.Mutex
	seen    map[uint64]time.Time
	started bool
	closed  bool
}

func NewDispatcher(cfg Config, log zerolog.Logger, notifiers ...Notifier) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	return &Dispatcher{
		notifiers: notifiers,
		minConf:   cfg.MinConfidence,
		cooldown:  cfg.Cooldown,
		log:       log,
		now:       time.Now,
		queue:     make(chan scanners.Signal, cfg.QueueSize),
		done:      make(chan struct{}),
		seen:      make(map[uint64]time.Time),
	}
}

// Build creates the notifiers cfg names and a dispatcher over them.
func Build(cfg Config, log zerolog.Logger) (*Dispatcher, error) {
	var ns []Notifier
	if cfg.DiscordWebhookURL != "" {
		ns = append(ns, NewDiscord(cfg.DiscordWebhookURL))
	}
	if cfg.TelegramToken != "" {
		tg, err := NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			return nil, err
		}
		ns = append(ns, tg)
	}
	return NewDispatcher(cfg, log, ns...), nil
}

func fingerprint(sig scanners.Signal) uint64 {
	return xxh3.HashString(sig.ScannerID + "|" + sig.Symbol + "|" + string(sig.Kind))
}

// Publish enqueues sig unless it is below the confidence floor or a
// repeat of the same scanner, symbol and kind inside the cooldown. It
// reports whether the signal was queued.
func (d *Dispatcher) Publish(sig scanners.Signal) bool {
	if len(d.notifiers) == 0 || sig.Confidence < d.minConf {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	fp := fingerprint(sig)
	now := d.now()
	if last, ok := d.seen[fp]; ok && now.Sub(last) < d.cooldown {
		return false
	}

	select {
	case d.queue <- sig:
		d.seen[fp] = now
		return true
	default:
		d.log.Warn().Str("symbol", sig.Symbol).Str("scanner", sig.ScannerID).Msg("notify queue full, dropping signal")
		return false
	}
}

// Run delivers queued signals until Close is called or ctx ends. Only the
// first call does anything, and none after Close.
func (d *Dispatcher) Run(ctx context.Context) {
	d.mu.Lock()
	if d.started || d.closed {
		d.mu.Unlock()
		return
	}
	d.started = true
	d.mu.Unlock()
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-d.queue:
			if !ok {
				return
			}
			d.deliver(ctx, sig)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, sig scanners.Signal) {
	for _, n := range d.notifiers {
		if err := n.Notify(ctx, sig); err != nil {
			d.log.Error().Err(err).Str("notifier", n.Name()).Str("symbol", sig.Symbol).Msg("notify failed")
			continue
		}
		d.log.Info().Str("notifier", n.Name()).Str("symbol", sig.Symbol).Str("kind", string(sig.Kind)).Msg("signal broadcast")
	}
}

// Close stops accepting signals and waits until everything queued has been
// delivered. If Run was never started, Close delivers the queue itself.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	close(d.queue)
	drain := !d.started
	d.started = true
	d.mu.Unlock()

	if drain {
		for sig := range d.queue {
			d.deliver(context.Background(), sig)
		}
		close(d.done)
	}
	<-d.done
}
