package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/scantrade/api"
	"github.com/rustyeddy/scantrade/bots"
	"github.com/rustyeddy/scantrade/engine"
	"github.com/rustyeddy/scantrade/feed"
	"github.com/rustyeddy/scantrade/internal/logx"
	"github.com/rustyeddy/scantrade/journal"
	"github.com/rustyeddy/scantrade/market"
	"github.com/rustyeddy/scantrade/notify"
	"github.com/rustyeddy/scantrade/portfolio"
	"github.com/rustyeddy/scantrade/risk"
	"github.com/rustyeddy/scantrade/scanners"
)

// Config is the complete process configuration.
type Config struct {
	Account  AccountConfig       `json:"account" yaml:"account"`
	Risk     RiskConfig          `json:"risk" yaml:"risk"`
	Symbols  []string            `json:"symbols" yaml:"symbols"`
	Window   WindowConfig        `json:"window" yaml:"window"`
	Engine   engine.Config       `json:"engine" yaml:"engine"`
	Provider feed.ProviderConfig `json:"provider" yaml:"provider"`
	Cache    feed.CacheConfig    `json:"cache" yaml:"cache"`
	Journal  journal.Config      `json:"journal" yaml:"journal"`
	Server   api.Config          `json:"server" yaml:"server"`
	Notify   notify.Config       `json:"notify" yaml:"notify"`
	Scanners ScannersConfig      `json:"scanners" yaml:"scanners"`
	Bots     BotsConfig          `json:"bots" yaml:"bots"`
	Log      logx.Config         `json:"log" yaml:"log"`
}

// AccountConfig holds the paper account parameters.
type AccountConfig struct {
	InitialCapital float64 `json:"initial_capital" yaml:"initial_capital"`
	RiskFreeRate   float64 `json:"risk_free_rate" yaml:"risk_free_rate"`
}

// RiskConfig holds the limits shared by the ledger and the governor. All
// percentages are of portfolio value.
type RiskConfig struct {
	MaxPositionPct float64 `json:"max_position_pct" yaml:"max_position_pct"`
	MaxExposurePct float64 `json:"max_exposure_pct" yaml:"max_exposure_pct"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct" yaml:"max_drawdown_pct"`
	PauseBelow     float64 `json:"pause_below" yaml:"pause_below"`
	MinEntryScore  float64 `json:"min_entry_score" yaml:"min_entry_score"`
	PaperTrading   bool    `json:"paper_trading" yaml:"paper_trading"`
	EnableChecks   bool    `json:"enable_checks" yaml:"enable_checks"`
}

// WindowConfig is the lookback requested from the provider, e.g. 1mo/1h.
type WindowConfig struct {
	Period   string `json:"period" yaml:"period"`
	Interval string `json:"interval" yaml:"interval"`
}

type ScannersConfig struct {
	// Enabled lists scanner ids; empty means every registered scanner.
	Enabled []string `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

type BotsConfig struct {
	// Enabled lists bot ids; empty means every registered bot.
	Enabled []string `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// Active bots start in the active state instead of inactive.
	Active []string `json:"active,omitempty" yaml:"active,omitempty"`
	// CapitalPct overrides the tier allocation per bot id.
	CapitalPct    map[string]float64 `json:"capital_pct,omitempty" yaml:"capital_pct,omitempty"`
	MinConfidence float64            `json:"min_confidence" yaml:"min_confidence"`
}

// LoadFromFile loads configuration from a YAML or JSON file and validates it.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes YAML for .yaml/.yml paths and indented JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.InitialCapital <= 0 {
		return fmt.Errorf("account.initial_capital must be positive")
	}
	limits := []struct {
		name string
		v    float64
	}{
		{"risk.max_position_pct", c.Risk.MaxPositionPct},
		{"risk.max_exposure_pct", c.Risk.MaxExposurePct},
		{"risk.max_drawdown_pct", c.Risk.MaxDrawdownPct},
	}
	for _, l := range limits {
		if l.v <= 0 || l.v > 100 {
			return fmt.Errorf("%s must be between 0 and 100", l.name)
		}
	}
	if c.Risk.MaxPositionPct > c.Risk.MaxExposurePct {
		return fmt.Errorf("risk.max_position_pct must not exceed risk.max_exposure_pct")
	}
	if c.Risk.PauseBelow < 0 || c.Risk.PauseBelow > 100 || c.Risk.MinEntryScore < 0 || c.Risk.MinEntryScore > 100 {
		return fmt.Errorf("risk health thresholds must be between 0 and 100")
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("symbols is required")
	}
	if _, err := c.MarketWindow(); err != nil {
		return err
	}
	if c.Engine.Interval <= 0 {
		return fmt.Errorf("engine.interval must be positive")
	}

	switch c.Provider.Source {
	case "", "synthetic":
	case "oanda":
		if c.Provider.Token == "" {
			return fmt.Errorf("provider.token is required for oanda")
		}
	default:
		return fmt.Errorf("provider.source must be 'synthetic' or 'oanda'")
	}
	if c.Provider.RPS < 0 || c.Provider.Burst < 0 {
		return fmt.Errorf("provider rate limits must not be negative")
	}

	switch c.Journal.Type {
	case "", "sqlite", "sqlite3":
		if c.Journal.Path == "" {
			return fmt.Errorf("journal.path is required for sqlite")
		}
	case "postgres":
		if c.Journal.DSN == "" {
			return fmt.Errorf("journal.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("journal.type must be 'sqlite' or 'postgres'")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Notify.TelegramToken != "" && c.Notify.TelegramChatID == 0 {
		return fmt.Errorf("notify.telegram_chat_id is required with a telegram token")
	}
	if c.Notify.MinConfidence < 0 || c.Notify.MinConfidence > 100 {
		return fmt.Errorf("notify.min_confidence must be between 0 and 100")
	}

	for _, id := range c.Scanners.Enabled {
		if _, err := scanners.NewAnalyzer(id); err != nil {
			return fmt.Errorf("scanners.enabled: %w", err)
		}
	}
	for _, id := range append(append([]string{}, c.Bots.Enabled...), c.Bots.Active...) {
		if _, err := bots.NewPolicy(id); err != nil {
			return fmt.Errorf("bots: %w", err)
		}
	}
	for id, pct := range c.Bots.CapitalPct {
		if pct <= 0 || pct > c.Risk.MaxPositionPct {
			return fmt.Errorf("bots.capital_pct.%s must be positive and at most risk.max_position_pct", id)
		}
	}
	if _, err := logx.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// MarketWindow parses the window section.
func (c *Config) MarketWindow() (market.Window, error) {
	w := market.Window{Period: c.Window.Period, Interval: c.Window.Interval}
	if _, err := w.Bars(); err != nil {
		return market.Window{}, fmt.Errorf("window: %w", err)
	}
	return w, nil
}

// Portfolio is the ledger configuration.
func (c *Config) Portfolio() portfolio.Config {
	return portfolio.Config{
		InitialCapital: c.Account.InitialCapital,
		MaxPositionPct: c.Risk.MaxPositionPct,
		MaxExposurePct: c.Risk.MaxExposurePct,
		MaxDrawdownPct: c.Risk.MaxDrawdownPct,
		RiskFreeRate:   c.Account.RiskFreeRate,
	}
}

// RiskPolicy is the governor configuration.
func (c *Config) RiskPolicy() risk.Policy {
	return risk.Policy{
		MaxPositionPct: c.Risk.MaxPositionPct,
		MaxExposurePct: c.Risk.MaxExposurePct,
		MaxDrawdownPct: c.Risk.MaxDrawdownPct,
		PauseBelow:     c.Risk.PauseBelow,
		MinEntryScore:  c.Risk.MinEntryScore,
		PaperTrading:   c.Risk.PaperTrading,
		EnableChecks:   c.Risk.EnableChecks,
	}
}

// ScannerIDs returns the enabled scanners, or all registered ones.
func (c *Config) ScannerIDs() []string {
	if len(c.Scanners.Enabled) > 0 {
		return c.Scanners.Enabled
	}
	return scanners.IDs()
}

// BotIDs returns the enabled bots, or all registered ones.
func (c *Config) BotIDs() []string {
	if len(c.Bots.Enabled) > 0 {
		return c.Bots.Enabled
	}
	return bots.IDs()
}

// StartsActive reports whether bot id is listed in bots.active.
func (c *Config) StartsActive(id string) bool {
	for _, a := range c.Bots.Active {
		if a == id {
			return true
		}
	}
	return false
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	p := risk.DefaultPolicy()
	pc := portfolio.DefaultConfig()
	return &Config{
		Account: AccountConfig{
			InitialCapital: pc.InitialCapital,
			RiskFreeRate:   pc.RiskFreeRate,
		},
		Risk: RiskConfig{
			MaxPositionPct: p.MaxPositionPct,
			MaxExposurePct: p.MaxExposurePct,
			MaxDrawdownPct: p.MaxDrawdownPct,
			PauseBelow:     p.PauseBelow,
			MinEntryScore:  p.MinEntryScore,
			PaperTrading:   p.PaperTrading,
			EnableChecks:   p.EnableChecks,
		},
		Symbols: []string{"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA", "NVDA", "META", "SPY", "QQQ"},
		Window: WindowConfig{
			Period:   market.DefaultWindow.Period,
			Interval: market.DefaultWindow.Interval,
		},
		Engine: engine.Config{
			Interval:     engine.DefaultInterval,
			ErrorBackoff: engine.DefaultErrorBackoff,
		},
		Provider: feed.ProviderConfig{
			Source:         "synthetic",
			Env:            "practice",
			RPS:            10,
			Burst:          1,
			BreakerTimeout: 60 * time.Second,
		},
		Cache: feed.CacheConfig{TTL: feed.DefaultTTL},
		Journal: journal.Config{
			Type:    "sqlite",
			Path:    "./scantrade.db",
			Timeout: 5 * time.Second,
		},
		Server: api.DefaultConfig(),
		Notify: notify.DefaultConfig(),
		Bots:   BotsConfig{MinConfidence: 60},
		Log:    logx.Config{Level: "info", Format: "console"},
	}
}

// ApplyEnv overlays SCANTRADE_* environment variables, e.g.
// SCANTRADE_INITIAL_CAPITAL or SCANTRADE_SYMBOLS=AAPL,MSFT.
func (c *Config) ApplyEnv() error {
	v := viper.New()
	v.SetEnvPrefix("scantrade")
	v.AutomaticEnv()

	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = strings.TrimSpace(v.GetString(key))
		}
	}
	num := func(key string, dst *float64) error {
		if !v.IsSet(key) {
			return nil
		}
		f, err := parseFloat(v.GetString(key))
		if err != nil {
			return fmt.Errorf("SCANTRADE_%s: %w", strings.ToUpper(key), err)
		}
		*dst = f
		return nil
	}

	if err := num("initial_capital", &c.Account.InitialCapital); err != nil {
		return err
	}
	if err := num("max_position_pct", &c.Risk.MaxPositionPct); err != nil {
		return err
	}
	if err := num("max_exposure_pct", &c.Risk.MaxExposurePct); err != nil {
		return err
	}
	if err := num("max_drawdown_pct", &c.Risk.MaxDrawdownPct); err != nil {
		return err
	}
	if v.IsSet("symbols") {
		c.Symbols = splitList(v.GetString("symbols"))
	}
	if v.IsSet("interval") {
		d, err := time.ParseDuration(v.GetString("interval"))
		if err != nil {
			return fmt.Errorf("SCANTRADE_INTERVAL: %w", err)
		}
		c.Engine.Interval = d
	}
	if v.IsSet("paper_trading") {
		c.Risk.PaperTrading = v.GetBool("paper_trading")
	}
	if v.IsSet("enable_risk_checks") {
		c.Risk.EnableChecks = v.GetBool("enable_risk_checks")
	}

	str("provider", &c.Provider.Source)
	str("oanda_token", &c.Provider.Token)
	str("oanda_env", &c.Provider.Env)
	str("redis_addr", &c.Cache.RedisAddr)
	str("redis_password", &c.Cache.RedisPassword)

	str("journal_type", &c.Journal.Type)
	str("journal_path", &c.Journal.Path)
	str("journal_dsn", &c.Journal.DSN)
	if v.IsSet("journal_dsn") && !v.IsSet("journal_type") {
		c.Journal.Type = "postgres"
	}

	str("host", &c.Server.Host)
	if v.IsSet("port") {
		c.Server.Port = v.GetInt("port")
	}

	str("discord_webhook_url", &c.Notify.DiscordWebhookURL)
	str("telegram_token", &c.Notify.TelegramToken)
	if v.IsSet("telegram_chat_id") {
		c.Notify.TelegramChatID = v.GetInt64("telegram_chat_id")
	}

	str("log_level", &c.Log.Level)
	str("log_format", &c.Log.Format)
	return nil
}

// Load reads path when given, otherwise starts from Default, then applies
// the environment and validates.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
