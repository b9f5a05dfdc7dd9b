package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"messengerhub/internal/config"
	"messengerhub/internal/constants"
	"messengerhub/internal/database"
	"messengerhub/internal/database/mongodb"
	"messengerhub/internal/database/postgres"
	"messengerhub/internal/metrics"
	"messengerhub/internal/models"
	"messengerhub/internal/retry"
	"messengerhub/internal/service"
	"messengerhub/internal/tracing"
	"messengerhub/pkg/messenger"

	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging (includes customer identifiers)")
	configPath = flag.String("config", constants.DefaultConfigPath, "Path to optional configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("Messenger Hub %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting Messenger Hub")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	configureLogLevel(logger, cfg.LogLevel, *verbose)

	if cfg.Tracing.ServiceVersion == "" {
		cfg.Tracing.ServiceVersion = Version
	}
	tracingManager := tracing.NewTracingManager(cfg.Tracing, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	store, err := connectStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	pages, err := service.NewPageRegistry(cfg.Pages)
	if err != nil {
		return fmt.Errorf("invalid page configuration: %w", err)
	}
	if pages.Count() == 0 {
		logger.Warn("No Facebook pages configured; inbound events will be skipped")
	}
	for _, pageID := range pages.InvalidTokenPages() {
		logger.WithField(service.LogFieldPageID, pageID).Warn("Page access token looks invalid")
	}
	metrics.SetGauge(metrics.ConfiguredPages, float64(pages.Count()), nil, "Number of configured Facebook pages")

	client := messenger.NewClient(messenger.ClientConfig{
		BaseURL:        cfg.Messenger.GraphAPIBaseURL,
		APIVersion:     cfg.Messenger.GraphAPIVersion,
		ProfileTimeout: time.Duration(cfg.Messenger.ProfileTimeoutSec) * time.Second,
		SendTimeout:    time.Duration(cfg.Messenger.SendTimeoutSec) * time.Second,
		UploadTimeout:  time.Duration(cfg.Messenger.UploadTimeoutSec) * time.Second,
	})

	server := NewServer(cfg, newServices(client, pages, store, logger, cfg.Messenger.MaxUploadMB), logger, *verbose)
	serverErrCh := make(chan error, constants.ServerErrorChannelSize)
	go func() {
		if err := server.Start(); err != nil {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	logger.Info("Server shutdown completed")
	return nil
}

func configureLogLevel(logger *logrus.Logger, level string, verbose bool) {
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - customer identifiers will be logged")
		return
	}
	if level == "" {
		logger.SetLevel(logrus.InfoLevel)
		return
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		logger.Warnf("Invalid log level %q, defaulting to info", level)
		logger.SetLevel(logrus.InfoLevel)
		return
	}
	logger.SetLevel(parsed)
}

func newServices(client messenger.Client, pages *service.PageRegistry, store service.Store, logger *logrus.Logger, maxUploadMB int) Services {
	names := service.NewNameResolver(client, pages, store, logger)
	return Services{
		Ingestion:     service.NewIngestionService(pages, names, store, logger),
		Outbound:      service.NewOutboundService(client, pages, store, logger, int64(maxUploadMB)*constants.BytesPerMegabyte),
		Names:         names,
		Unreplied:     service.NewUnrepliedCounter(store, logger),
		Conversations: service.NewConversationReader(store, store),
	}
}

// connectStore opens the configured backend, retrying with exponential backoff
func connectStore(ctx context.Context, cfg *models.Config, logger *logrus.Logger) (service.Store, error) {
	var store service.Store
	backoff := retry.NewBackoff(retry.FromRetryConfig(cfg.Retry))

	err := backoff.Retry(ctx, func() error {
		var openErr error
		store, openErr = openStore(ctx, cfg.Database)
		if openErr != nil {
			logger.WithField("driver", cfg.Database.Driver).Warnf("Failed to connect to store: %v", openErr)
		}
		return openErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s store after retries: %w", cfg.Database.Driver, err)
	}

	logger.WithField("driver", cfg.Database.Driver).Info("Store ready")
	return store, nil
}

func openStore(ctx context.Context, dbCfg models.DatabaseConfig) (service.Store, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(constants.DefaultStoreConnectTimeoutSec)*time.Second)
	defer cancel()

	var (
		store service.Store
		err   error
	)
	switch dbCfg.Driver {
	case constants.DatabaseDriverPostgres:
		store, err = postgres.New(ctx, dbCfg.URL)
	case constants.DatabaseDriverMongoDB:
		store, err = mongodb.New(ctx, dbCfg.URL, dbCfg.Name)
	case constants.DatabaseDriverSQLite, "":
		store, err = database.New(dbCfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", dbCfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}
