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
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"trustrent/observability/logging"
	telemetry "trustrent/observability/otel"
	"trustrent/services/rentalindexd/config"
	"trustrent/services/rentalindexd/index"
)

const serviceName = "rentalindexd"

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/rentalindexd/config.yaml", "path to rentalindexd configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rentalindexd: load config: %v\n", err)
		os.Exit(1)
	}
	env := strings.TrimSpace(cfg.Logging.Env)
	if env == "" {
		env = strings.TrimSpace(os.Getenv("TRUSTRENT_ENV"))
	}
	logger := logging.SetupWithOptions(serviceName, env, logging.Options{Level: logging.ParseLevel(cfg.Logging.Level)})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, env, logger); err != nil {
		logger.Error("rentalindexd exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, env string, logger *slog.Logger) error {
	tracing := false
	if endpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); endpoint != "" {
		insecure := true
		if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
			if parsed, err := strconv.ParseBool(value); err == nil {
				insecure = parsed
			}
		}
		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName: serviceName,
			Environment: env,
			Endpoint:    endpoint,
			Insecure:    insecure,
			Headers:     telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
			Metrics:     true,
			Traces:      true,
		})
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() { _ = shutdown(context.Background()) }()
		tracing = true
	}

	db, err := openDatabase(cfg.Database)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := index.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate read model: %w", err)
	}

	projector := index.NewProjector(db, logger)
	client := index.NewNodeClient(cfg.NodeRPC, 10*time.Second)
	poller := index.NewPoller(client, projector, cfg.PollInterval.Duration, cfg.BatchSize, logger)

	var handler http.Handler = index.NewAPI(db, projector, cfg.ExportDir, logger).Handler()
	if tracing {
		handler = otelhttp.NewHandler(handler, "rentalindexd.api")
	}
	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go poller.Run(ctx)

	errs := make(chan error, 1)
	go func() {
		logger.Info("rentalindexd listening",
			slog.String("addr", cfg.ListenAddress),
			slog.String("node", cfg.NodeRPC),
			slog.String("driver", cfg.Database.Driver),
			logging.MaskField("dsn", cfg.Database.DSN))
		errs <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
			return err
		}
		return nil
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func openDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open %s read model: %w", cfg.Driver, err)
	}
	return db, nil
}
