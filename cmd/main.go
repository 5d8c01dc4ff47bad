package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cache "github.com/krisalay/routecache"
	"github.com/krisalay/routecache/archive"
	"github.com/krisalay/routecache/config"
	"github.com/krisalay/routecache/engine"
	"github.com/krisalay/routecache/eviction"
	"github.com/krisalay/routecache/fetch"
	"github.com/krisalay/routecache/routes"
	"github.com/krisalay/routecache/types"
	"github.com/krisalay/routecache/writepolicy"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (optional)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(*configPath, log); err != nil {
		log.Error("exit", "err", err)
		os.Exit(1)
	}
}

func run(configPath string, log *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------------- Archive ----------------
	var policy writepolicy.WritePolicy
	if cfg.Archive.Mode == config.ArchiveWriteThrough || cfg.Archive.Mode == config.ArchiveWriteBack {
		store, err := archive.OpenSQLite(cfg.Archive.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		onError := func(key string, err error) {
			log.Warn("archive write failed", "key", key, "err", err)
		}
		if cfg.Archive.Mode == config.ArchiveWriteThrough {
			policy = writepolicy.NewWriteThroughPolicy(store, onError)
		} else {
			policy = writepolicy.NewWriteBackPolicy(store, cfg.Archive.Buffer, onError)
		}
		log.Info("archive enabled", "mode", cfg.Archive.Mode, "path", cfg.Archive.Path)
	}

	// ---------------- Cache ----------------
	evictPolicy, err := eviction.ParsePolicyType(cfg.Cache.Eviction)
	if err != nil {
		return err
	}

	metrics := &types.Counters{}
	e := engine.NewCacheEngine(nil, policy, metrics, cfg.Cache.RouteExpire)
	e.StaleRetention = cfg.Cache.StaleRetention

	c := cache.NewResponseCache(cfg.Cache.Shards, cfg.Cache.Capacity, evictPolicy, e)
	defer c.Close()

	go c.RunJanitor(ctx, cfg.Cache.PurgeInterval)

	if configPath != "" {
		go func() {
			err := config.Watch(ctx, configPath, func(next config.Config) {
				e.SetDefaultTTL(next.Cache.RouteExpire)
				log.Info("config reloaded", "route_expire", next.Cache.RouteExpire)
			}, func(err error) {
				log.Warn("config reload rejected", "err", err)
			})
			if err != nil {
				log.Warn("config watcher stopped", "err", err)
			}
		}()
	}

	// ---------------- HTTP ----------------
	client := fetch.NewClient(cfg.Routes.UserAgent, cfg.Routes.Timeout)
	rt := routes.New(c, client, log,
		routes.WithConcurrency(cfg.Routes.Concurrency),
		routes.WithFeedHosts(cfg.Routes.FeedHosts...),
		routes.WithStats(func() any {
			return struct {
				types.Snapshot
				Entries    int    `json:"entries"`
				DefaultTTL string `json:"default_ttl"`
			}{metrics.Snapshot(), c.Len(), e.DefaultTTL().String()}
		}),
	)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           rt.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.Server.Addr, "route_expire", cfg.Cache.RouteExpire)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
