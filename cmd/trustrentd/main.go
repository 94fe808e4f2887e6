package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"trustrent/config"
	"trustrent/core"
	"trustrent/core/pricing"
	"trustrent/crypto"
	"trustrent/observability/logging"
	telemetry "trustrent/observability/otel"
	"trustrent/rpc"
	"trustrent/storage"
)

const serviceName = "trustrentd"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("trustrentd exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func setupLogger(cfg *config.Config) *slog.Logger {
	env := strings.TrimSpace(cfg.Logging.Env)
	if env == "" {
		env = strings.TrimSpace(os.Getenv("TRUSTRENT_ENV"))
	}
	opts := logging.Options{Level: logging.ParseLevel(cfg.Logging.Level)}
	if path := strings.TrimSpace(cfg.Logging.File); path != "" {
		opts.File = &logging.FileOptions{
			Path:       path,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		}
	}
	return logging.SetupWithOptions(serviceName, env, opts)
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.Telemetry.Traces || cfg.Telemetry.Metrics {
		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName: serviceName,
			Environment: cfg.Logging.Env,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
			Traces:      cfg.Telemetry.Traces,
			Metrics:     cfg.Telemetry.Metrics,
			SampleRatio: cfg.Telemetry.SampleRatio,
		})
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown", slog.Any("error", err))
			}
		}()
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	node, err := buildNode(cfg, db, logger)
	if err != nil {
		return err
	}

	secret := cfg.JWTSecret()
	if secret == "" {
		logger.Warn("jwt secret not set; mutating rpc methods are disabled", slog.String("env", cfg.Auth.SecretEnv))
	} else {
		logger.Info("rpc auth configured",
			slog.String("issuer", cfg.Auth.Issuer),
			slog.String("audience", cfg.Auth.Audience),
			logging.MaskField("jwtSecret", secret))
	}
	if err := os.MkdirAll(filepath.Dir(cfg.IdempotencyFile()), 0o755); err != nil {
		return fmt.Errorf("prepare idempotency dir: %w", err)
	}
	server, err := rpc.NewServer(node, rpcConfig(cfg, secret), logger)
	if err != nil {
		return err
	}
	defer server.Close()

	logger.Info("trustrentd started",
		slog.String("network", cfg.NetworkName),
		slog.String("arbiter", crypto.FormatAddress(node.Arbiter())),
		slog.String("vault", crypto.FormatAddress(node.VaultAddress())),
		slog.String("backend", cfg.DBBackend))
	return server.Serve(ctx, cfg.RPC.ListenAddress)
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch cfg.DBBackend {
	case config.BackendMemory:
		return storage.NewMemDB(), nil
	case config.BackendLevelDB:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("prepare data dir: %w", err)
		}
		db, err := storage.NewLevelDB(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown DBBackend %q", cfg.DBBackend)
	}
}

func buildNode(cfg *config.Config, db storage.Database, logger *slog.Logger) (*core.Node, error) {
	arbiter, err := crypto.ParseAddress(cfg.Arbiter)
	if err != nil {
		return nil, fmt.Errorf("arbiter: %w", err)
	}
	rate, err := cfg.PricingRate()
	if err != nil {
		return nil, err
	}
	updatedAt := time.Now()
	if cfg.Pricing.UpdatedAt > 0 {
		updatedAt = time.Unix(cfg.Pricing.UpdatedAt, 0)
	}
	feed, err := pricing.NewFixedFeed(rate, updatedAt, time.Duration(cfg.Pricing.MaxAgeSeconds)*time.Second)
	if err != nil {
		return nil, err
	}
	opts := core.Options{Arbiter: arbiter, Feed: feed, Logger: logger}
	if cfg.Faucet.Enabled {
		amount, err := cfg.FaucetAmount()
		if err != nil {
			return nil, err
		}
		opts.Faucet = amount
	}
	node, err := core.NewNode(db, opts)
	if err != nil {
		return nil, err
	}

	parsed, err := cfg.GenesisAllocations()
	if err != nil {
		return nil, err
	}
	allocs := make([]core.Allocation, 0, len(parsed))
	for _, alloc := range parsed {
		allocs = append(allocs, core.Allocation{Address: alloc.Address, Amount: alloc.Amount})
	}
	applied, err := node.ApplyGenesis(allocs)
	if err != nil {
		return nil, fmt.Errorf("apply genesis: %w", err)
	}
	if applied {
		logger.Info("genesis allocations applied", slog.Int("count", len(allocs)))
	}
	return node, nil
}

func rpcConfig(cfg *config.Config, secret string) rpc.Config {
	return rpc.Config{
		Auth: rpc.AuthConfig{
			HMACSecret: secret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
		},
		RateLimitPerSecond: cfg.RPC.RateLimitPerSecond,
		RateLimitBurst:     cfg.RPC.RateLimitBurst,
		TrustProxyHeaders:  cfg.RPC.TrustProxyHeaders,
		TrustedProxies:     cfg.RPC.TrustedProxies,
		IdempotencyPath:    cfg.IdempotencyFile(),
		IdempotencyTTL:     time.Duration(cfg.RPC.IdempotencyTTLSecs) * time.Second,
		Tracing:            cfg.Telemetry.Traces,
		ReadHeaderTimeout:  time.Duration(cfg.RPC.ReadHeaderTimeoutSecs) * time.Second,
		WriteTimeout:       time.Duration(cfg.RPC.WriteTimeoutSecs) * time.Second,
	}
}
