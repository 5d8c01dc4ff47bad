// Package config loads the service configuration from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/krisalay/routecache/engine"
	"github.com/krisalay/routecache/eviction"
)

type ArchiveMode string

const (
	ArchiveOff          ArchiveMode = "off"
	ArchiveWriteThrough ArchiveMode = "write-through"
	ArchiveWriteBack    ArchiveMode = "write-back"
)

type Config struct {
	Cache   CacheConfig   `yaml:"cache"`
	Archive ArchiveConfig `yaml:"archive"`
	Server  ServerConfig  `yaml:"server"`
	Routes  RoutesConfig  `yaml:"routes"`
}

type CacheConfig struct {
	// RouteExpire is the TTL applied when a route does not pass its own.
	RouteExpire    time.Duration `yaml:"route_expire"`
	Shards         int           `yaml:"shards"`
	Capacity       int           `yaml:"capacity"`
	Eviction       string        `yaml:"eviction"`
	StaleRetention time.Duration `yaml:"stale_retention"`
	PurgeInterval  time.Duration `yaml:"purge_interval"`
}

type ArchiveConfig struct {
	Mode   ArchiveMode `yaml:"mode"`
	Path   string      `yaml:"path"`
	Buffer int         `yaml:"buffer"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type RoutesConfig struct {
	UserAgent   string        `yaml:"user_agent"`
	Timeout     time.Duration `yaml:"timeout"`
	Concurrency int           `yaml:"concurrency"`
	// FeedHosts lists the hosts /feed may republish from.
	FeedHosts []string `yaml:"feed_hosts"`
}

func Default() Config {
	return Config{
		Cache: CacheConfig{
			RouteExpire:    engine.DefaultRouteExpire,
			Shards:         16,
			Capacity:       10000,
			Eviction:       string(eviction.LRU),
			StaleRetention: time.Hour,
			PurgeInterval:  time.Minute,
		},
		Archive: ArchiveConfig{
			Mode:   ArchiveOff,
			Path:   "routecache.sqlite3",
			Buffer: 256,
		},
		Server: ServerConfig{Addr: ":1200"},
		Routes: RoutesConfig{
			UserAgent:   "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
			Timeout:     30 * time.Second,
			Concurrency: 8,
		},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv honours CACHE_EXPIRE (seconds), LISTEN_ADDR and UA.
func applyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv("CACHE_EXPIRE"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: CACHE_EXPIRE: %w", err)
		}
		cfg.Cache.RouteExpire = time.Duration(secs) * time.Second
	}
	if v := getenv("LISTEN_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := getenv("UA"); v != "" {
		cfg.Routes.UserAgent = v
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error

	if c.Cache.RouteExpire <= 0 {
		errs = append(errs, errors.New("cache.route_expire must be positive"))
	}
	if c.Cache.Shards < 1 {
		errs = append(errs, errors.New("cache.shards must be at least 1"))
	}
	if c.Cache.Capacity < 0 {
		errs = append(errs, errors.New("cache.capacity must not be negative"))
	}
	if _, err := eviction.ParsePolicyType(c.Cache.Eviction); err != nil {
		errs = append(errs, err)
	}
	if c.Cache.StaleRetention < 0 {
		errs = append(errs, errors.New("cache.stale_retention must not be negative"))
	}

	switch c.Archive.Mode {
	case ArchiveOff, "":
	case ArchiveWriteThrough, ArchiveWriteBack:
		if c.Archive.Path == "" {
			errs = append(errs, errors.New("archive.path is required when archiving"))
		}
	default:
		errs = append(errs, fmt.Errorf("archive.mode %q is not one of off, write-through, write-back", c.Archive.Mode))
	}

	if c.Routes.Concurrency < 1 {
		errs = append(errs, errors.New("routes.concurrency must be at least 1"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
