// Tutord is an LLM-backed grading daemon with an HTTP API.
//
// This binary starts the tutord HTTP server with full service
// initialization: model gateway, grading configuration bootstrap, and
// evaluation endpoints.
//
// Configuration is loaded from a YAML file and overridden by environment
// variables. See internal/config for details.
//
// Usage:
//
//	# Start server with defaults (~/.config/tutord/config.yaml)
//	tutord
//
//	# Start with an explicit config file
//	tutord -config /etc/tutord/config.yaml
//
//	# Configure via environment
//	SERVER_PORT=9090 TUTOR_DEFAULT_MODEL=gpt-4o tutord
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/ashgrovelabs/tutord/internal/config"
	"github.com/ashgrovelabs/tutord/internal/directive"
	"github.com/ashgrovelabs/tutord/internal/evaluation"
	"github.com/ashgrovelabs/tutord/internal/gateway"
	"github.com/ashgrovelabs/tutord/internal/http"
	"github.com/ashgrovelabs/tutord/internal/logging"
	"github.com/ashgrovelabs/tutord/internal/tutor"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.config/tutord/config.yaml)")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  tutord           Start the tutord daemon\n")
			fmt.Fprintf(os.Stderr, "  tutord version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("tutord by Ashgrove Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the tutord server and blocks until context is cancelled.
//
// Initialization order:
//  1. Load and validate configuration
//  2. Initialize the structured logger
//  3. Create the model gateway client
//  4. Wrap the grading pipeline in a lazy bootstrap
//  5. Start the HTTP server
//  6. Perform graceful shutdown on context cancellation
//
// Loading the grading configuration is deferred to the bootstrap: the
// daemon comes up even when every grading config source is broken and
// reports 503 until an operator fixes the deployment and calls restart.
func run(ctx context.Context, configPath string) error {
	if err := config.EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to prepare config directory: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	logger.Info(ctx, "starting tutord",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("default_model", cfg.Tutor.DefaultModel),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout))

	gw, err := initGateway(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize gateway: %w", err)
	}

	logger.Info(ctx, "gateway initialized",
		zap.String("base_url", cfg.Gateway.BaseURL),
		zap.Float64("requests_per_minute", cfg.Gateway.RequestsPerMinute))

	boot := evaluation.NewBootstrap(newInitFunc(cfg, gw, logger))

	srv, err := http.NewServer(boot, logger, &http.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Warm the grading pipeline so the first request does not pay for
	// config loading. Failures are cached and surfaced as 503s.
	if _, err := boot.Service(ctx); err != nil {
		logger.Warn(ctx, "grading pipeline not ready",
			zap.Error(err),
			zap.Strings("config_paths", cfg.Tutor.ConfigPaths))
	} else {
		logger.Info(ctx, "grading pipeline ready")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

// initLogger builds the structured logger from the daemon configuration.
func initLogger(cfg *config.Config) (*logging.Logger, error) {
	level, err := logging.LevelFromString(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
	}

	logCfg := logging.NewDefaultConfig()
	logCfg.Level = level
	logCfg.Format = cfg.Logging.Format
	return logging.NewLogger(logCfg)
}

// initGateway creates the model gateway client. The API key comes from the
// config file or, preferably, from the named environment variable.
func initGateway(cfg *config.Config, logger *logging.Logger) (*gateway.Client, error) {
	apiKey := cfg.Gateway.APIKey.Value()
	if apiKey == "" && cfg.Gateway.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.Gateway.APIKeyEnv)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no API key: set gateway.api_key or the %s environment variable", cfg.Gateway.APIKeyEnv)
	}

	return gateway.New(gateway.Config{
		BaseURL:           cfg.Gateway.BaseURL,
		APIKey:            apiKey,
		Timeout:           cfg.Gateway.Timeout.Duration(),
		RequestsPerMinute: cfg.Gateway.RequestsPerMinute,
		Burst:             cfg.Gateway.Burst,
		MaxTokens:         cfg.Gateway.MaxTokens,
	}, logger)
}

// newInitFunc builds the bootstrap initializer: load the first usable
// grading config, wrap it in a tutor, and wire the evaluation service.
func newInitFunc(cfg *config.Config, gw *gateway.Client, logger *logging.Logger) evaluation.InitFunc {
	return func(ctx context.Context) (*evaluation.Service, error) {
		contract := directiveContract(cfg)
		gradingCfg, err := evaluation.LoadGradingConfig(cfg.Tutor.ConfigPaths, contract)
		if err != nil {
			return nil, err
		}

		logger.Info(ctx, "grading config loaded",
			zap.Strings("directives", gradingCfg.Directives.Names()),
			zap.String("model_name", gradingCfg.ModelName))

		tut, err := tutor.New(gradingCfg, gw, tutor.Options{
			WorkflowDir:  cfg.Tutor.WorkflowDir,
			DefaultModel: cfg.Tutor.DefaultModel,
			Temperature:  cfg.Tutor.Temperature,
		}, logger)
		if err != nil {
			return nil, err
		}

		opts := evaluation.Options{
			DefaultModel:   cfg.Tutor.DefaultModel,
			Usage:          gw.Usage(),
			MaxSubmissions: cfg.Tutor.MaxSubmissions,
		}
		if cfg.Tutor.Moderation {
			opts.Moderator = gw
		}
		return evaluation.NewService(tut, opts, logger)
	}
}

// directiveContract maps deployment settings to grading config
// requirements.
func directiveContract(cfg *config.Config) directive.Contract {
	return directive.Contract{RequireCorrectness: !cfg.Tutor.OptionalCorrectness}
}
