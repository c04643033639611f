package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/vinodismyname/mfgstats/config"
	"github.com/vinodismyname/mfgstats/internal/dataset"
	"github.com/vinodismyname/mfgstats/internal/registry"
	"github.com/vinodismyname/mfgstats/internal/runtime"
	"github.com/vinodismyname/mfgstats/internal/security"
	"github.com/vinodismyname/mfgstats/internal/telemetry"
	"github.com/vinodismyname/mfgstats/internal/workbooks"
	"github.com/vinodismyname/mfgstats/pkg/version"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var (
		useStdio        bool
		showVersion     bool
		envDir          string
		clientModel     string
		shutdownTimeout time.Duration
	)

	flag.BoolVar(&useStdio, "stdio", false, "Run server over stdio transport")
	flag.BoolVar(&showVersion, "version", false, "Print the version and exit")
	flag.StringVar(&envDir, "env-dir", ".", "Directory holding an optional .env file")
	flag.StringVar(&clientModel, "client-model", "gpt-4o", "Client model name used to report its context window")
	flag.DurationVar(&shutdownTimeout, "shutdown-timeout", 5*time.Second, "Graceful shutdown timeout")
	flag.Parse()

	if showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := config.Load(envDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	logger := zlog.With().Str("service", "mfgstats-server").Logger()
	ctx := logger.WithContext(context.Background())

	// Security: validate allow-list directories on startup (fail-safe on error)
	secMgr, err := security.NewManagerFromConfig(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("security: failed to initialize manager")
		fmt.Fprintln(os.Stderr, "invalid security configuration; check MFGSTATS_ALLOWED_DIRS")
		os.Exit(1)
	}
	if err := secMgr.ValidateConfig(); err != nil {
		logger.Error().Err(err).Msg("security: invalid allow-list configuration")
		fmt.Fprintln(os.Stderr, "no allowed directories configured; set MFGSTATS_ALLOWED_DIRS")
		os.Exit(1)
	}
	logger.Info().Strs("allowed_dirs", secMgr.AllowedDirectories()).Msg("security allow-list configured")

	toolRegistry := registry.New()
	contextSize := toolRegistry.ModelContextSize(clientModel)
	limits := runtime.LimitsFromConfig(cfg).FitContextWindow(contextSize)
	runtimeController := runtime.NewController(limits)
	runtimeMW := runtime.NewMiddleware(runtimeController)

	datasets := workbooks.NewManager(workbooks.Options{
		TTL:       cfg.DatasetIdleTTL,
		Gate:      runtimeController,
		Validator: secMgr,
		Load: dataset.LoadOptions{
			MetricColumn: cfg.MetricColumn,
			MaxCells:     limits.MaxCellsPerLoad,
		},
	})
	datasets.Start()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := datasets.Close(sctx); err != nil {
			logger.Error().Err(err).Msg("dataset cache shutdown")
		}
	}()

	exportFilter := registry.NewExportToolFilter(cfg.EnableExports)

	srv := server.NewMCPServer(
		"Manufacturing Statistics Server",
		version.Version(),
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithHooks(telemetry.NewHooks(logger).Server()),
		server.WithToolHandlerMiddleware(runtimeMW.ToolMiddleware),
		server.WithToolFilter(func(ctx context.Context, tools []mcp.Tool) []mcp.Tool { return exportFilter.FilterTools(ctx, tools) }),
	)

	tools := registry.NewTools(registry.Deps{
		Limits:        runtimeController.LimitsSnapshot(),
		Datasets:      datasets,
		Security:      secMgr,
		EnableExports: cfg.EnableExports,
	})
	registry.RegisterFoundationTools(srv, toolRegistry, tools)
	registry.RegisterInsightsTools(srv, toolRegistry, tools)

	registered, _ := toolRegistry.Tools(ctx)

	logger.Info().
		Ctx(ctx).
		Str("version", version.Version()).
		Int("tools", len(registered)).
		Bool("exports_enabled", cfg.EnableExports).
		Int("max_concurrent_requests", limits.MaxConcurrentRequests).
		Int("max_open_datasets", limits.MaxOpenDatasets).
		Dur("dataset_ttl", cfg.DatasetIdleTTL).
		Str("client_model", clientModel).
		Int("model_context_size", contextSize).
		Int("max_payload_bytes", limits.MaxPayloadBytes).
		Bool("stdio", useStdio).
		Msg("server bootstrap configured")

	if !useStdio {
		// If no transport flags provided, print usage and exit non-zero
		fmt.Fprintln(os.Stderr, "no transport selected; use --stdio to run over stdio")
		os.Exit(2)
	}
	if err := server.ServeStdio(srv, server.WithStdioContextFunc(func(c context.Context) context.Context { return logger.WithContext(c) })); err != nil {
		// Use stderr for transport errors so clients don't misinterpret output
		logger.Error().Err(err).Msg("stdio server stopped")
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
