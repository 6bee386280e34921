// Package config loads the caching subsystem's settings from the
// environment and constructs the Redis client the stores share.
//
// Durations accept day units ("7d"), which time.ParseDuration cannot parse;
// plain Go durations ("90s", "1h30m") work too.
package config

import (
	"reflect"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	str2duration "github.com/xhit/go-str2duration/v2"
)

// Config is the environment-driven configuration.
type Config struct {
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	EntityTTL     time.Duration `env:"CACHE_ENTITY_TTL" envDefault:"7d"`
	QueryTimeout  time.Duration `env:"CACHE_QUERY_TIMEOUT" envDefault:"5s"`
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	var cfg Config
	opts := env.Options{
		FuncMap: map[reflect.Type]env.ParserFunc{
			reflect.TypeOf(time.Duration(0)): parseDuration,
		},
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, errors.Wrap(err, "config: parsing environment")
	}
	return cfg, nil
}

func parseDuration(v string) (any, error) {
	d, err := str2duration.ParseDuration(v)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid duration %q", v)
	}
	return d, nil
}

// NewRedisClient builds the shared Redis client. The caller owns its
// lifecycle.
func NewRedisClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}
