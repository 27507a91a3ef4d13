package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/isolink-io/isolink/pkg/anchor"
	"github.com/isolink-io/isolink/pkg/api"
	"github.com/isolink-io/isolink/pkg/blob"
	"github.com/isolink-io/isolink/pkg/election"
	"github.com/isolink-io/isolink/pkg/linker"
	"github.com/isolink-io/isolink/pkg/manifest"
	"github.com/isolink-io/isolink/pkg/semantic"
	"github.com/isolink-io/isolink/pkg/store"
	redisstore "github.com/isolink-io/isolink/pkg/store/redis"
	"github.com/isolink-io/isolink/pkg/worker"
)

const leaseName = "isolinkd-leader"

func main() {
	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("isolinkd starting", "addr", cfg.Addr, "db", cfg.DBPath, "comparer", cfg.Comparer, "election", cfg.Election)

	st, err := store.NewStore(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open store", "error", err, "path", cfg.DBPath)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	anchors := anchor.NewRegistry()

	var comparer linker.ResidueComparer
	var cosine *semantic.CosineComparer
	if cfg.Comparer == "embedding" {
		embedder, err := semantic.NewEmbedder(ctx, semantic.Options{
			Provider: cfg.EmbedProvider,
			APIKey:   cfg.EmbedAPIKey,
			Model:    cfg.EmbedModel,
			BaseURL:  cfg.EmbedBaseURL,
		})
		if err != nil {
			logger.Error("failed to build embedder", "error", err)
			os.Exit(1)
		}
		cosine = semantic.NewCosineComparer(embedder, cfg.EmbedThreshold)
		if err := semantic.RegisterActivation(anchors, cosine); err != nil {
			logger.Error("failed to register embedding activation", "error", err)
			os.Exit(1)
		}
		comparer = cosine
	}

	engineCfg := linker.Config{
		Capacity:        cfg.Capacity,
		JournalCapacity: cfg.JournalCapacity,
		Comparer:        comparer,
	}

	var linkset *manifest.Linkset
	if cfg.ManifestPath != "" {
		linkset, err = manifest.Load(cfg.ManifestPath)
		if err != nil {
			logger.Error("failed to load manifest", "error", err, "path", cfg.ManifestPath)
			os.Exit(1)
		}
		// Explicit flags and env win over manifest settings.
		if engineCfg.Capacity == 0 {
			engineCfg.Capacity = linkset.Settings.Capacity
		}
		if engineCfg.JournalCapacity == 0 {
			engineCfg.JournalCapacity = linkset.Settings.JournalCapacity
		}
	}

	engine := linker.New(engineCfg)

	if linkset != nil {
		if err := linkset.Apply(engine, anchors); err != nil {
			logger.Error("failed to apply manifest", "error", err, "path", cfg.ManifestPath)
			os.Exit(1)
		}
		logger.Info("manifest applied", "path", cfg.ManifestPath, "components", len(linkset.Components))
	}

	if cosine != nil {
		primeCtx, primeCancel := context.WithTimeout(ctx, 30*time.Second)
		if err := cosine.PrimeViews(primeCtx, engine.Components()); err != nil {
			logger.Warn("anchor priming incomplete, unprimed anchors compare open", "error", err)
		}
		primeCancel()
	}

	instanceID := uuid.NewString()

	var manager *election.Manager
	switch cfg.Election {
	case "sqlite":
		manager = election.NewManager(st, cfg.Advertise, leaseName, cfg.LeaseTTL, nil, nil)
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		manager = election.NewManager(redisstore.NewLeaseStore(client), cfg.Advertise, leaseName, cfg.LeaseTTL, nil, nil)
	}
	if manager != nil {
		manager.Start(ctx)
	}

	var wg sync.WaitGroup
	runWorker := func(run func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(ctx)
		}()
	}

	flusher := worker.NewFlusher(engine.Journal(), st, instanceID, logger)
	runWorker(flusher.Run)

	dispatcher := worker.NewDispatcher(st, logger)
	runWorker(dispatcher.Run)

	var blobs blob.BlobStore
	if cfg.ArchiveDir != "" {
		blobs = blob.NewLocalBlobStore(cfg.ArchiveDir)
	}
	pruner := worker.NewPruner(st, blobs, worker.RetentionConfig{
		Enabled:       cfg.RetentionMaxAge > 0,
		MaxAge:        cfg.RetentionMaxAge,
		CheckInterval: cfg.RetentionInterval,
		Archive:       blobs != nil,
	}, logger)
	runWorker(pruner.Run)

	server := api.NewServer(engine, st, anchors, cfg.Addr)
	server.SetLogger(logger)
	server.SetPruner(pruner)
	if manager != nil {
		server.SetElection(manager)
	}
	if cfg.AuthToken != "" {
		server.SetAuthToken(cfg.AuthToken)
	}
	if cfg.TLSCert != "" {
		server.SetTLS(cfg.TLSCert, cfg.TLSKey)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info("shutdown initiated", "signal", sig.String())
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop api server", "error", err)
	}
	if manager != nil {
		manager.Stop(shutdownCtx)
	}

	// Cancelling the worker context triggers the flusher's final drain.
	cancel()
	wg.Wait()

	if err := st.Close(); err != nil {
		logger.Error("failed to close store", "error", err)
	}
	logger.Info("shutdown complete")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
