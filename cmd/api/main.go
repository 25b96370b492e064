package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	api "appshots/internal/api"
	"appshots/internal/compose"
	"appshots/internal/config"
	"appshots/internal/jobs"
	"appshots/internal/logx"
	"appshots/internal/project"
	"appshots/internal/ratelimit"
	"appshots/internal/storage"
	"appshots/internal/store"
	"appshots/internal/telemetry"
	"appshots/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logx.Setup(logx.FromConfig("api", cfg))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fonts, err := compose.LoadFonts(cfg.FontDir)
	if err != nil {
		log.Fatal().Err(err).Msg("load fonts")
	}
	if missing := fonts.MissingCJK(); len(missing) > 0 {
		log.Warn().Strs("families", missing).Str("font_dir", cfg.FontDir).
			Msg("no CJK font installed; zh/ja/ko captions will not render, set FONT_DIR")
	}
	renderer := compose.New(fonts)

	uploader, err := storage.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init archive storage")
	}

	// Postgres only backs export history; without a DSN the service runs
	// with in-memory jobs alone.
	var (
		recorder worker.Recorder
		history  api.History
	)
	if cfg.PostgresDSN != "" {
		st, err := store.New(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("connect postgres")
		}
		defer st.Close()
		if err := st.RunMigrations(ctx); err != nil {
			log.Fatal().Err(err).Msg("migrations")
		}
		recorder, history = st, st
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	limiter := ratelimit.NewTokenBucket(rdb, cfg.RateLimitCapacity, cfg.RateLimitRefill)
	cooldown := ratelimit.NewCooldown(rdb, cfg.AdvancedCooldown)

	registry := jobs.NewRegistry(jobs.WithTTL(cfg.ExportJobTTL))
	registry.Start(ctx, cfg.JobJanitorInterval)
	defer registry.Stop()

	processor := worker.NewProcessor(worker.Options{
		Registry:      registry,
		Projects:      project.NewDirSource(cfg.ProjectsDir),
		Uploader:      uploader,
		Recorder:      recorder,
		Renderer:      renderer,
		RenderWorkers: cfg.RenderMaxWorkers,
		Logger:        log,
	})
	processorDone := make(chan struct{})
	go func() {
		defer close(processorDone)
		_ = processor.Run(ctx)
	}()

	server := api.New(cfg, api.Deps{
		Registry:  registry,
		Projects:  project.NewDirSource(cfg.ProjectsDir),
		Processor: processor,
		Uploader:  uploader,
		Renderer:  renderer,
		Limiter:   limiter,
		Cooldown:  cooldown,
		History:   history,
		Logger:    log,
	})
	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.MetricsAddr != "" {
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, telemetry.Handler()); err != nil {
				log.Warn().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	log.Info().Str("port", cfg.HTTPPort).Str("env", cfg.Env).Msg("api listening")
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(shutdownCtx)
	<-processorDone
	log.Info().Msg("api stopped")
}
