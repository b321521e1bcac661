package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/scantrade/market"
	"github.com/rustyeddy/scantrade/oanda"
)

type ProviderConfig struct {
	Source string `yaml:"source" json:"source"` // synthetic or oanda
	Token  string `yaml:"token" json:"token"`
	Env    string `yaml:"env" json:"env"` // practice or live

	// Instruments maps watchlist symbols to OANDA instrument names.
	Instruments map[string]string `yaml:"instruments" json:"instruments"`

	RPS            float64       `yaml:"rps" json:"rps"`
	Burst          int           `yaml:"burst" json:"burst"`
	BreakerTimeout time.Duration `yaml:"breaker_timeout" json:"breaker_timeout"`
}

type CacheConfig struct {
	TTL           time.Duration `yaml:"ttl" json:"ttl"`
	RedisAddr     string        `yaml:"redis_addr" json:"redis_addr"`
	RedisPassword string        `yaml:"redis_password" json:"redis_password"`
	RedisDB       int           `yaml:"redis_db" json:"redis_db"`
}

// Build assembles source → guarded → cached. A redis cache is used when
// RedisAddr is set, otherwise an in-memory one.
func Build(ctx context.Context, pc ProviderConfig, cc CacheConfig, obs Observer, log zerolog.Logger) (market.Provider, error) {
	var src market.Provider
	switch pc.Source {
	case "", "synthetic":
		src = NewSynthetic()
	case "oanda":
		if pc.Token == "" {
			return nil, fmt.Errorf("provider: oanda token is required")
		}
		base, err := oanda.BaseURL(pc.Env)
		if err != nil {
			return nil, err
		}
		src = oanda.NewProvider(oanda.NewClient(pc.Token, base), pc.Instruments)
	default:
		return nil, fmt.Errorf("provider: unknown source %q", pc.Source)
	}

	guarded := NewGuarded(src, GuardConfig{RPS: pc.RPS, Burst: pc.Burst, BreakerTimeout: pc.BreakerTimeout}, obs, log)

	var c Cache = NewMemoryCache()
	if cc.RedisAddr != "" {
		rc, err := NewRedisCache(ctx, cc.RedisAddr, cc.RedisPassword, cc.RedisDB)
		if err != nil {
			return nil, err
		}
		c = rc
	}
	log.Info().Str("source", pc.Source).Bool("redis", cc.RedisAddr != "").Msg("provider chain ready")
	return NewCached(guarded, c, cc.TTL, obs, log), nil
}
