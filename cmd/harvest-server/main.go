package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"harvest-backend/lib/chrono"
	"harvest-backend/lib/configutil"
	"harvest-backend/lib/pagecache"
	"harvest-backend/lib/restyutil"
	"harvest-backend/lib/scrapers/sitecrawl"
	"harvest-backend/lib/scrapers/zomato"
	"harvest-backend/lib/serviceutil"
	"harvest-backend/services/menuapi"

	devenv "harvest-backend/dev/env"
)

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	configPath := flag.String("config", "config.json5", "The config file to read.")
	refreshNow := flag.Bool("refresh", false, "Refresh every stored menu immediately on run.")
	flag.Parse()

	ctx := serviceutil.SignalContext()

	output := InitTelemetry(ctx, *verbose)

	cfg, err := configutil.ReadConfigWithDefaults(*configPath, defaultConfig)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("no config file found, using defaults", "path", *configPath)
	} else if err != nil {
		serviceutil.Fatal("read config", err)
	}

	err = serve(ctx, cfg, output, *refreshNow)
	if err != nil {
		serviceutil.Fatal("harvest-server", err)
	}
}

// serve wires the store, page cache and scrapers into the http service and
// blocks until ctx ends or the server fails. Everything it opened is closed
// before it returns.
func serve(ctx context.Context, cfg Config, output restyutil.InstrumentOutput, refreshNow bool) error {
	clock := chrono.NewStandardImpl()

	store, closeStore, err := OpenStore(ctx, cfg.Database, clock)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore()

	cacheDir := cfg.Crawl.CacheDir
	if cacheDir != "" {
		cacheDir, err = devenv.ResolvePath(cacheDir)
		if err != nil {
			return fmt.Errorf("resolve page cache dir: %w", err)
		}
	}
	cache, err := pagecache.Open(cacheDir, time.Duration(cfg.Crawl.CacheTtlHours)*time.Hour)
	if err != nil {
		return err
	}
	defer cache.Close()

	menus := zomato.NewClient(zomato.ClientOptions{
		BaseUrl:     cfg.Zomato.BaseUrl,
		RetryPolicy: cfg.Zomato.Retry,
		Output:      output,
	})
	crawler := sitecrawl.NewCrawler(sitecrawl.Options{
		RateLimit: cfg.Crawl.RateLimit,
		Cache:     &cache,
		Clock:     clock,
		Output:    output,
	})

	if store != nil {
		refresher := menuapi.NewRefresher(menus, store)
		if cfg.RefreshCron != "" {
			err = refresher.Schedule(ctx, chrono.NewStandardCron(ctx), cfg.RefreshCron)
			if err != nil {
				return fmt.Errorf("schedule menu refresh: %w", err)
			}
		}
		if refreshNow {
			slog.Info("refreshing stored menus on start")
			go func() {
				err := refresher.RefreshAll(ctx)
				if err != nil {
					slog.ErrorContext(ctx, "menu refresh finished with errors", "err", err)
				}
			}()
		}
	}

	service := menuapi.NewService(menus, crawler, store)
	err = serviceutil.StartHttpServer(ctx, cfg.Port, service.Handler())
	if err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
