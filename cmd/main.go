package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"editalwatch/collector-service/internal/api"
	"editalwatch/collector-service/internal/classify"
	"editalwatch/collector-service/internal/config"
	"editalwatch/collector-service/internal/fetch"
	"editalwatch/collector-service/internal/logger"
	"editalwatch/collector-service/internal/pdftext"
	"editalwatch/collector-service/internal/pipeline"
	"editalwatch/collector-service/internal/scheduler"
	"editalwatch/collector-service/internal/store"
)

func main() {
	// Best-effort: in production the environment is already set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		zl.Fatal("store connect failed", zap.Error(err))
	}
	defer st.Close()
	if err := st.Init(ctx); err != nil {
		zl.Fatal("store init failed", zap.Error(err))
	}

	if cfg.RedisURL != "" {
		cache, err := store.NewCache(ctx, cfg.RedisURL)
		if err != nil {
			zl.Warn("fingerprint cache unavailable, continuing without it", zap.Error(err))
		} else {
			defer cache.Close()
			st.UseCache(cache)
			zl.Info("fingerprint cache enabled")
		}
	}

	sources, err := config.Sources(cfg.SourcesFile)
	if err != nil {
		zl.Fatal("crawl plan load failed", zap.Error(err))
	}
	zl.Info("crawl plan loaded", zap.Int("sources", len(sources)))

	client := fetch.New(cfg.RequestTimeout, cfg.ProbeTimeout, cfg.UserAgent)
	collector := pipeline.New(sources, client, pdftext.Extractor{}, st, pipeline.Options{
		MaxPerSource: cfg.MaxPerSource,
		MaxPages:     cfg.MaxPages,
		Pacing:       cfg.Pacing,
		Thresholds:   classify.Thresholds{MinWords: cfg.MinWords, MinScore: cfg.MinScore},
	}, zl)

	sched := scheduler.New(collector, cfg.CollectHour, zl)
	if err := sched.Start(ctx); err != nil {
		zl.Warn("scheduler disabled", zap.Error(err))
	} else {
		defer sched.Stop()
	}

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: api.New(st, collector, client, zl).Handler(),
	}

	go func() {
		zl.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zl.Warn("http shutdown incomplete", zap.Error(err))
	}
}
