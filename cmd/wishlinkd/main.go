// cmd/wishlinkd/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wishlink/wishlink/internal/cache"
	"github.com/wishlink/wishlink/internal/config"
	"github.com/wishlink/wishlink/internal/enrich"
	"github.com/wishlink/wishlink/internal/maintenance"
	"github.com/wishlink/wishlink/internal/monitoring"
	"github.com/wishlink/wishlink/internal/server"
	"github.com/wishlink/wishlink/internal/store"
	"github.com/wishlink/wishlink/internal/utils"
)

// Version information (set by build flags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "enrich":
		runEnrich(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "version":
		fmt.Printf("wishlinkd %s (built %s, commit %s)\n", version, buildTime, gitCommit)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`wishlinkd - wishlist backend with product enrichment

Usage:
  wishlinkd serve [-config file.yaml]   start the HTTP service
  wishlinkd enrich <url>                enrich one URL and print JSON
  wishlinkd validate <url>              check a URL against the trust policy
  wishlinkd version                     print version information
`)
}

// loadConfig reads the -config flag out of args, falling back to defaults
// when no file is given.
func loadConfig(args []string) (*config.Config, error) {
	for i, arg := range args {
		if (arg == "-config" || arg == "--config") && i+1 < len(args) {
			return config.LoadFromFile(args[i+1])
		}
	}
	if path := os.Getenv("WISHLINK_CONFIG"); path != "" {
		return config.LoadFromFile(path)
	}
	return config.Default(), nil
}

func runServe(args []string) {
	cfg, err := loadConfig(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger := utils.NewLoggerWithLevel(utils.ParseLevel(cfg.Logging.Level))
	metrics := monitoring.NewMetrics()

	enricher := enrich.NewEnricher(
		enrich.TrustPolicy{
			AllowedDomains: cfg.Trust.AllowedDomains,
			DeniedHosts:    cfg.Trust.DeniedHosts,
			RetailKeywords: cfg.Trust.RetailKeywords,
			TrustedTLDs:    cfg.Trust.TrustedTLDs,
		},
		enrich.FetchConfig{
			Timeout:      cfg.Fetch.Timeout.Std(),
			MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
			RateLimit:    cfg.Fetch.RateLimit,
			RateBurst:    cfg.Fetch.RateBurst,
			UserAgents:   cfg.Fetch.UserAgents,
		},
		enrich.WithLogger(logger),
		enrich.WithMetrics(metrics),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	productCache, err := buildCache(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer productCache.Close()

	st, err := store.NewSQLStore(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if cfg.Maintenance.Enabled {
		scheduler := maintenance.NewScheduler(maintenance.Config{
			ImageCleanupSchedule:    cfg.Maintenance.ImageCleanupSchedule,
			ImageCleanupBudget:      cfg.Maintenance.ImageCleanupBudget,
			ImageCleanupMaxAttempts: cfg.Maintenance.ImageCleanupMaxAttempts,
			ReminderSchedule:        cfg.Maintenance.ReminderSchedule,
		}, st, nil, nil, logger, metrics)
		if err := scheduler.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		defer scheduler.Stop()
	}

	srv := server.New(cfg.Server, enricher, productCache, cfg.Cache.TTL.Std(), st, logger, metrics, version)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Errorf("server failed: %v", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("shutdown failed: %v", err)
		}
	}
}

func buildCache(ctx context.Context, cfg *config.Config) (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case "redis":
		return cache.NewRedisCache(ctx, cfg.Cache.Redis.Addr, cfg.Cache.Redis.Password, cfg.Cache.Redis.DB)
	default:
		return cache.NewMemoryCache(), nil
	}
}

func runEnrich(args []string) {
	url, rest := takeURL(args)
	if url == "" {
		fmt.Fprintln(os.Stderr, "usage: wishlinkd enrich <url>")
		os.Exit(1)
	}

	cfg, err := loadConfig(rest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	enricher := enrich.NewEnricher(
		enrich.TrustPolicy{
			AllowedDomains: cfg.Trust.AllowedDomains,
			DeniedHosts:    cfg.Trust.DeniedHosts,
			RetailKeywords: cfg.Trust.RetailKeywords,
			TrustedTLDs:    cfg.Trust.TrustedTLDs,
		},
		enrich.FetchConfig{
			Timeout:      cfg.Fetch.Timeout.Std(),
			MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
			RateLimit:    cfg.Fetch.RateLimit,
			RateBurst:    cfg.Fetch.RateBurst,
		},
		enrich.WithLogger(utils.NewLoggerWithLevel(utils.ErrorLevel)),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	product, err := enricher.Enrich(ctx, url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rejected: %v\n", err)
		os.Exit(2)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(product); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runValidate(args []string) {
	url, rest := takeURL(args)
	if url == "" {
		fmt.Fprintln(os.Stderr, "usage: wishlinkd validate <url>")
		os.Exit(1)
	}

	cfg, err := loadConfig(rest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	validator := enrich.NewValidator(enrich.TrustPolicy{
		AllowedDomains: cfg.Trust.AllowedDomains,
		DeniedHosts:    cfg.Trust.DeniedHosts,
		RetailKeywords: cfg.Trust.RetailKeywords,
		TrustedTLDs:    cfg.Trust.TrustedTLDs,
	})

	target, err := validator.Validate(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rejected: %v\n", err)
		os.Exit(2)
	}
	fmt.Printf("accepted: %s\ncanonical: %s\n", target.URL, target.Canonical)
}

// takeURL expects the URL as the first argument; anything after it is
// passed through as flags.
func takeURL(args []string) (string, []string) {
	if len(args) == 0 || args[0] == "" || args[0][0] == '-' {
		return "", args
	}
	return args[0], args[1:]
}
