package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aevon-lab/salestrack/internal/compute"
	corecfg "github.com/aevon-lab/salestrack/internal/core/config"
	"github.com/aevon-lab/salestrack/internal/core/storage"
	"github.com/aevon-lab/salestrack/internal/core/storage/local"
	"github.com/aevon-lab/salestrack/internal/core/storage/postgres"
	"github.com/aevon-lab/salestrack/internal/core/storage/redis"
	"github.com/aevon-lab/salestrack/internal/dashboard"
	"github.com/aevon-lab/salestrack/internal/migrations"
	"github.com/aevon-lab/salestrack/internal/refresh"
	"github.com/aevon-lab/salestrack/internal/server"
	"github.com/aevon-lab/salestrack/internal/source"
)

func main() {
	configPath := flag.String("config", "salestrack.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	slog.SetDefault(logger)
	slog.Info("Loaded config",
		"shared_cache", cfg.SharedCache.Type,
		"local_cache", cfg.LocalCache.Path,
		"remote_compute", cfg.RemoteCompute.URL != "",
		"auto_refresh", cfg.Refresh.AutoEnabled,
		"auto_interval", cfg.Refresh.AutoIntervalDuration(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Initialize Cache Tiers
	shared, health, closeShared, err := openSharedCache(ctx, cfg.SharedCache)
	if err != nil {
		slog.Error("Failed to initialize shared cache", "error", err)
		os.Exit(1)
	}
	defer closeShared()

	localStore := local.NewSnapshotStore(cfg.LocalCache.Path)

	// 3. Initialize Sources
	var s3Fetcher source.Fetcher
	s3f, err := source.NewS3Fetcher(ctx, source.S3Options{
		Region:       cfg.Sources.S3.Region,
		Endpoint:     cfg.Sources.S3.Endpoint,
		UsePathStyle: cfg.Sources.S3.UsePathStyle,
	})
	if err != nil {
		slog.Warn("S3 sources disabled", "error", err)
	} else {
		s3Fetcher = s3f
	}
	fetcher := source.NewRouter(source.NewHTTPFetcher(cfg.Sources.FetchTimeoutDuration()), s3Fetcher)
	loader := source.NewLoader(fetcher, cfg.Sources.FetchTimeoutDuration(), cfg.Sources.MaxParallelFetches)

	base := source.Manifest{
		AgreementSource: cfg.Sources.AgreementSource,
		SalesFolder:     cfg.Sources.SalesFolder,
		SalesFiles:      cfg.Sources.SalesFiles,
	}
	var manifests source.ManifestProvider = source.StaticManifest(base)
	if cfg.Sources.ManifestPath != "" {
		manifests = source.FileManifest{Path: cfg.Sources.ManifestPath, Base: base}
	}

	// 4. Initialize Compute Strategies (remote first, in-process fallback)
	localCompute := compute.NewLocal(manifests, loader)
	remoteCompute := compute.NewRemote(cfg.RemoteCompute.URL, cfg.RemoteCompute.TimeoutDuration())

	// 5. Initialize Refresh Coordinator
	coordinator := refresh.NewCoordinator(localStore, shared, remoteCompute, localCompute)

	// 6. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), cfg.Server.Mode, health)
	dashboard.NewService(coordinator, localCompute).RegisterRoutes(srv.Engine)

	// 7. Start Services
	go func() {
		startCtx, cancelStart := context.WithTimeout(ctx, cfg.Refresh.StartupTimeoutDuration())
		defer cancelStart()
		if err := coordinator.Start(startCtx); err != nil {
			slog.Error("Startup refresh failed, serving without a result until the next refresh", "error", err)
		}
	}()

	if cfg.Refresh.AutoEnabled {
		scheduler, err := refresh.NewScheduler(cfg.Refresh.AutoIntervalDuration(), coordinator)
		if err != nil {
			slog.Error("Invalid refresh interval", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := scheduler.Start(ctx); err != nil {
				slog.Error("Scheduler stopped with error", "error", err)
			}
		}()
	} else {
		slog.Info("Periodic refresh disabled by config")
	}

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	coordinator.Wait()
	slog.Info("Shutdown complete")
}

// openSharedCache builds the configured shared tier and the health checks it
// contributes to /health.
func openSharedCache(ctx context.Context, cfg corecfg.SharedCacheConfig) (storage.ResultStore, map[string]server.HealthChecker, func(), error) {
	switch cfg.Type {
	case "postgres":
		db, err := postgres.Open(cfg.DSN, cfg.MaxOpenConns, cfg.MaxIdleConns)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := migrations.RunMigrations(db, cfg.AutoMigrate); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("failed to run database migrations: %w", err)
		}
		adapter, err := postgres.NewResultAdapter(db, cfg.Key)
		if err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		return adapter, map[string]server.HealthChecker{"shared_cache": adapter}, func() { adapter.Close() }, nil

	case "redis":
		client, err := redis.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, nil, err
		}
		store := redis.NewResultStore(client, cfg.Key)
		return store, map[string]server.HealthChecker{"shared_cache": store}, func() { client.Close() }, nil

	default:
		slog.Info("Shared cache disabled, results are kept per client")
		return storage.Nop{}, nil, func() {}, nil
	}
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
