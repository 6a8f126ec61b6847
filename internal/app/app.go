package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/ollamon/internal/batch"
	"github.com/MrSnakeDoc/ollamon/internal/benchmark"
	"github.com/MrSnakeDoc/ollamon/internal/config"
	"github.com/MrSnakeDoc/ollamon/internal/discovery"
	"github.com/MrSnakeDoc/ollamon/internal/fetch"
	"github.com/MrSnakeDoc/ollamon/internal/httpserver"
	"github.com/MrSnakeDoc/ollamon/internal/httpserver/deps"
	"github.com/MrSnakeDoc/ollamon/internal/index"
	"github.com/MrSnakeDoc/ollamon/internal/logger"
	"github.com/MrSnakeDoc/ollamon/internal/ollama"
	"github.com/MrSnakeDoc/ollamon/internal/reconcile"
	"github.com/MrSnakeDoc/ollamon/internal/redis"
	"github.com/MrSnakeDoc/ollamon/internal/report"
	"github.com/MrSnakeDoc/ollamon/internal/scheduler"
	"github.com/MrSnakeDoc/ollamon/internal/sources/seed"
	redisstore "github.com/MrSnakeDoc/ollamon/internal/store/redis"
	"github.com/MrSnakeDoc/ollamon/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	reconciler  *reconcile.Reconciler
	scheduler   *scheduler.CycleScheduler
}

func New(args []string) *App {
	cfg := config.Load(args)

	loggerClient := logger.NewWithOptions(logger.Options{
		Level:      cfg.LogLevel,
		Pretty:     cfg.PrettyLog,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})

	// Initialize Redis early - fail fast if unavailable
	loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
	redisClient, err := redis.Connect(context.Background(), redis.OptionsFromConfig(cfg), loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	loggerClient.Info("Redis initialized successfully")

	store := redisstore.NewStore(redisClient, cfg.RedisKey)
	memIndex := index.NewMemoryIndex()

	// Serve the previous report until the first cycle finishes
	syncer := scheduler.NewReportSyncer(cfg.ReportFile, memIndex, loggerClient)
	if err := syncer.Sync(); err != nil {
		loggerClient.Warn("failed to load previous report, starting empty",
			logger.Error(err))
	}

	// Outbound calls: one client for hosts, one for the search engine
	hostClient := fetch.New(fetch.Options{
		Timeout:      cfg.FetchTimeout,
		MaxBodyBytes: cfg.FetchMaxBodyBytes,
		UserAgent:    version.UserAgent(),
	})
	ollamaClient := ollama.NewClient(hostClient, loggerClient)

	bench := benchmark.New(ollamaClient, benchmark.Options{
		Rounds:       cfg.BenchmarkRounds,
		RoundDelay:   cfg.RoundDelay,
		TPSCeiling:   cfg.TPSCeiling,
		DecoyMarkers: cfg.DecoyMarkers,
	}, loggerClient)
	runner := batch.NewRunner(ollamaClient, bench, cfg.ChunkSize, loggerClient)

	sources := buildSources(cfg, loggerClient)

	reconciler := reconcile.New(
		store,
		runner,
		report.NewFileWriter(cfg.ReportFile),
		memIndex,
		loggerClient,
		reconcile.Options{IncludeFailures: cfg.ReportIncludeFailures},
		sources...,
	)

	// Create manual cycle trigger channel
	cycleTrigger := make(chan struct{}, 1)
	cycles := scheduler.NewCycleScheduler(reconciler, loggerClient, cfg.CycleInterval, cycleTrigger)

	d := deps.Deps{
		Logger:             loggerClient,
		StartTime:          time.Now(),
		Version:            version.Version,
		Commit:             version.Commit,
		BuildDate:          version.BuildDate,
		GoVersion:          version.GoVersion,
		TimeNow:            time.Now,
		AllowedHosts:       cfg.AllowedHosts,
		AllowedCIDRS:       cfg.AllowedCIDRS,
		TrustProxy:         cfg.TrustProxy,
		RedisClient:        redisClient,
		Store:              store,
		MemoryIndex:        memIndex,
		Detector:           runner,
		Streamer:           ollamaClient,
		Validate:           validator.New(validator.WithRequiredStructEnabled()),
		DetectCacheTTL:     cfg.DetectCacheTTL,
		RequestTimeout:     cfg.RequestTimeout,
		ProbeTimeout:       cfg.ProbeTimeout,
		RateLimitBurst:     cfg.RateLimitBurst,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		CycleTrigger:       cycleTrigger,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		redisClient: redisClient,
		reconciler:  reconciler,
		scheduler:   cycles,
	}
}

func buildSources(cfg *config.Config, log logger.Logger) []reconcile.Source {
	var sources []reconcile.Source

	if cfg.DiscoveryEnabled {
		var dump *discovery.Dump
		if cfg.DiscoveryDumpFile != "" {
			dump = discovery.NewDump(cfg.DiscoveryDumpFile)
		}
		searchClient := fetch.New(fetch.Options{
			Timeout:      cfg.FetchTimeout,
			MaxBodyBytes: cfg.FetchMaxBodyBytes,
		})
		fofa := discovery.NewFofa(searchClient, cfg.DiscoveryBaseURL, cfg.DiscoveryUserAgent, log, dump)
		sources = append(sources, discovery.NewSource(fofa, cfg.DiscoveryCountries))
		log.Info("discovery enabled",
			logger.String("base_url", cfg.DiscoveryBaseURL),
			logger.Strings("countries", cfg.DiscoveryCountries))
	} else {
		log.Info("discovery disabled, probing stored and seeded hosts only")
	}

	if cfg.SeedFile != "" {
		log.Info("seed file configured", logger.String("file", cfg.SeedFile))
		sources = append(sources, seed.NewLoader(cfg.SeedFile))
	}

	return sources
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting %s", version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.cfg.Once {
		return a.runOnce(ctx)
	}

	a.scheduler.Start(ctx)
	a.logger.Info("cycle scheduler started",
		logger.Duration("interval", a.cfg.CycleInterval))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	// Waits for an in-flight cycle to observe the cancelled context
	a.scheduler.Stop()

	a.closeRedis()
	a.logger.Info("✅ ollamon stopped cleanly")
	return nil
}

func (a *App) runOnce(ctx context.Context) error {
	defer a.closeRedis()

	summary, err := a.reconciler.Cycle(ctx)
	if err != nil {
		return fmt.Errorf("cycle failed: %w", err)
	}
	a.logger.Info("✅ single cycle finished",
		logger.String("cycle_id", summary.CycleID),
		logger.Int("valid", summary.Valid),
		logger.Int("candidates", summary.Candidates))
	return nil
}

func (a *App) closeRedis() {
	if a.redisClient == nil {
		return
	}
	if err := a.redisClient.Close(); err != nil {
		a.logger.Warnf("failed to close redis: %v", err)
	} else {
		a.logger.Info("✅ Redis closed cleanly")
	}
}
