package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"nftmarket/config"
	"nftmarket/core/events"
	"nftmarket/core/genesis"
	"nftmarket/core/state"
	"nftmarket/crypto"
	"nftmarket/gateway/middleware"
	"nftmarket/native/marketplace"
	"nftmarket/native/nft"
	"nftmarket/observability/logging"
	"nftmarket/observability/otel"
	"nftmarket/rpc"
	"nftmarket/services/salesindex"
	"nftmarket/services/webhook"
	"nftmarket/storage"
)

const exportInterval = 24 * time.Hour

func main() {
	configFile := flag.String("config", "./marketd.toml", "Path to the configuration file (TOML or YAML)")
	flag.Parse()

	if err := run(*configFile); err != nil {
		fmt.Fprintf(os.Stderr, "marketd: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, logCloser := logging.SetupWithOptions(logging.Options{
		Service:    "marketd",
		Env:        cfg.Environment,
		Level:      logging.ParseLevel(cfg.Logging.Level),
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := otel.Init(ctx, otel.Config{
		ServiceName: "marketd",
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     otel.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	backend := state.NewBackend(db)
	registry := nft.NewRegistry()
	engine := marketplace.NewEngine(marketplace.Config{
		Address:    cfg.MarketplaceAddress,
		Governance: cfg.GovernanceAddress,
		Prefix:     crypto.AddressPrefix(cfg.AddressPrefix),
	}, backend, registry, registry)
	engine.SetLogger(logger.With("component", "marketplace"))

	applied, err := genesis.Apply(ctx, &cfg.Genesis, backend, registry, engine, cfg.MarketplaceAddress)
	if err != nil {
		return fmt.Errorf("apply genesis: %w", err)
	}
	if applied {
		logger.Info("genesis applied",
			"balances", len(cfg.Genesis.Balances),
			"tokens", len(cfg.Genesis.Tokens))
	}

	audit, err := webhook.OpenAuditLog(filepath.Join(cfg.DataDir, "webhooks.db"))
	if err != nil {
		return fmt.Errorf("open webhook audit log: %w", err)
	}
	defer audit.Close()

	endpoints := make([]webhook.Endpoint, 0, len(cfg.Hooks))
	for _, hook := range cfg.Hooks {
		endpoints = append(endpoints, webhook.Endpoint{Address: hook.Address, URL: hook.URL, Secret: hook.Secret})
	}
	dispatcher := webhook.NewDispatcher(endpoints,
		webhook.WithAuditLog(audit),
		webhook.WithLogger(logger.With("component", "webhook")),
	)
	engine.SetNotifier(dispatcher)
	go dispatcher.Run(ctx)

	hub := rpc.NewHub(0)
	emitters := events.Fanout{hub}
	var sales rpc.SalesQuerier
	if cfg.SalesIndex.Enabled {
		indexDB, err := salesindex.Open(cfg.SalesIndex.Driver, cfg.SalesIndex.DSN)
		if err != nil {
			return fmt.Errorf("open sales index: %w", err)
		}
		indexer := salesindex.NewIndexer(indexDB)
		indexer.SetLogger(logger.With("component", "salesindex"))
		emitters = append(emitters, indexer)
		sales = indexer
		if dir := strings.TrimSpace(cfg.SalesIndex.ExportDir); dir != "" {
			go exportLoop(ctx, indexer, dir, logger)
		}
	}
	engine.SetEmitter(emitters)

	server := rpc.NewServer(engine, rpc.Config{
		Authenticator: middleware.NewAuthenticator(middleware.AuthConfig{
			Enabled:    cfg.Auth.Enabled,
			HMACSecret: cfg.Auth.HMACSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
		}, logger),
		RateLimit: middleware.RateLimit{
			RatePerSecond: cfg.RateLimit.RatePerSecond,
			Burst:         cfg.RateLimit.Burst,
		},
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{ServiceName: "marketd"}, logger),
		Sales:         sales,
		Hub:           hub,
		Logger:        logger.With("component", "rpc"),
	})

	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("marketd listening",
			"addr", cfg.RPCAddress,
			"marketplace", engine.Address(),
			"hooks", len(endpoints),
			"sales_index", cfg.SalesIndex.Enabled)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}

	logger.Info("shutting down", "pending_webhooks", dispatcher.Pending())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// exportLoop writes the previous window of sales to parquet once per interval.
func exportLoop(ctx context.Context, indexer *salesindex.Indexer, dir string, logger *slog.Logger) {
	ticker := time.NewTicker(exportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			res, err := indexer.ExportParquet(ctx, dir, now.Add(-exportInterval), now)
			if err != nil {
				logger.Warn("sales export failed", "error", err)
				continue
			}
			logger.Info("sales exported", "path", res.Path, "rows", res.Rows, "digest", res.Digest)
		}
	}
}
