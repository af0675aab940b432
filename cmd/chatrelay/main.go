package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"chatrelay/internal/clock"
	"chatrelay/internal/config"
	"chatrelay/internal/constants"
	"chatrelay/internal/database"
	"chatrelay/internal/models"
	"chatrelay/internal/retry"
	"chatrelay/internal/service"
	"chatrelay/internal/tracing"
	"chatrelay/pkg/completion"
	"chatrelay/pkg/livesource"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging (includes full user ids)")
	configPath = flag.String("config", "", "Path to an optional JSON configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("chatrelay %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.Warnf("Failed to load .env file: %v", err)
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
	}).Info("Starting chatrelay")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	configureLogLevel(logger, cfg.LogLevel, *verbose)

	tracingManager := tracing.NewTracingManager(cfg.Tracing, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultTracingShutdownTimeout)
		defer cancel()
		if err := tracingManager.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warnf("Failed to close database: %v", err)
			return
		}
		logger.Info("Database closed")
	}()

	client := completion.NewOpenAIClient(completion.Config{
		APIKey:             cfg.Completion.APIKey,
		OrganizationID:     cfg.Completion.OrganizationID,
		BaseURL:            cfg.Completion.BaseURL,
		BreakerMaxFailures: constants.DefaultBreakerMaxFailures,
		BreakerTimeout:     constants.DefaultBreakerTimeout,
	}, logger)

	dispatcher := service.NewDispatcher(db, client, service.DispatcherConfig{
		QueueDelay:   time.Duration(cfg.Queue.DelayMs) * time.Millisecond,
		DeleteKey:    cfg.Queue.DeleteKey,
		Model:        cfg.Completion.Model,
		SystemPrompt: cfg.Completion.SystemPrompt,
		MaxTokens:    cfg.Completion.MaxTokens,
		Backoff: retry.BackoffConfig{
			InitialDelay: time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond,
			MaxDelay:     time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond,
			Multiplier:   constants.DefaultBackoffFactor,
			MaxRetries:   *cfg.Retry.MaxRetries,
		},
	}, clock.Real(), logger)

	source, err := newSource(cfg.Source, logger)
	if err != nil {
		return err
	}
	ingestor := service.NewIngestor(db, cfg.Queue.MaxSize, source.Name(), logger)
	runner := service.NewSourceRunner(source, ingestor, service.SourceRunnerConfig{
		ReconnectAttempts: *cfg.Source.ReconnectAttempts,
		InitialBackoff:    time.Duration(cfg.Source.ReconnectBackoffMs) * time.Millisecond,
		MaxBackoff:        time.Duration(cfg.Source.ReconnectMaxBackoffMs) * time.Millisecond,
	}, clock.Real(), logger)

	monitor := service.NewQueueMonitor(db, constants.DefaultQueueMonitorInterval, logger)

	workCtx, cancelWork := context.WithCancel(service.WithVerbose(ctx, *verbose))
	defer cancelWork()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		dispatcher.Run(workCtx)
	}()
	go func() {
		defer wg.Done()
		if err := runner.Run(workCtx); err != nil {
			logger.Warn("Live source is down, queued messages will still be dispatched")
		}
	}()
	go func() {
		defer wg.Done()
		monitor.Start(workCtx)
	}()

	var server *Server
	serverErrCh := make(chan error, constants.ServerErrorChannelSize)
	if cfg.Server.Enabled {
		server = NewServer(db, logger, *verbose)
		go func() {
			if err := server.Start(cfg.Server.Port); err != nil {
				serverErrCh <- fmt.Errorf("server error: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case runErr = <-serverErrCh:
		logger.Error(runErr)
	}

	cancelWork()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("Failed to shutdown server gracefully: %v", err)
		}
	}

	wg.Wait()
	logger.Info("Shutdown completed")
	return runErr
}

func configureLogLevel(logger *logrus.Logger, configured string, verbose bool) {
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - chat text and user ids will be logged")
		return
	}

	level, err := logrus.ParseLevel(configured)
	if err != nil {
		logger.Warnf("Invalid log level %q, defaulting to info", configured)
		logger.SetLevel(logrus.InfoLevel)
		return
	}
	if level > logrus.InfoLevel {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

// openDatabase opens the queue store, retrying transient failures such as a
// locked file left by a previous process.
func openDatabase(ctx context.Context, cfg *models.Config, logger *logrus.Logger) (*database.Database, error) {
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Duration(constants.DefaultDatabaseRetryBackoffMs) * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		MaxRetries:   constants.DefaultDatabaseRetryAttempts,
		Jitter:       true,
	})

	var db *database.Database
	err := backoff.Retry(ctx, func() error {
		var initErr error
		db, initErr = database.New(cfg.Database.Path)
		if initErr != nil {
			logger.Warnf("Failed to initialize database: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database after retries: %w", err)
	}
	logger.WithField("path", cfg.Database.Path).Info("Queue store ready")
	return db, nil
}

func newSource(cfg models.SourceConfig, logger *logrus.Logger) (livesource.Source, error) {
	switch cfg.Type {
	case constants.SourceTwitch:
		return livesource.NewTwitchSource(livesource.TwitchConfig{
			Channel:    cfg.Channel,
			Username:   cfg.Username,
			OAuthToken: cfg.OAuthToken,
		}, logger), nil
	case constants.SourceWebSocket:
		return livesource.NewWebSocketSource(livesource.WebSocketConfig{
			URL:       cfg.URL,
			ReadLimit: constants.DefaultWebSocketReadLimitByte,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unsupported live source %q", cfg.Type)
	}
}
