package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"scribe-server/internal/config"
	"scribe-server/internal/domain/intake"
	"scribe-server/internal/domain/model"
	"scribe-server/internal/infrastructure/crontab"
	"scribe-server/internal/infrastructure/docstore"
	"scribe-server/internal/infrastructure/llmclient"
	"scribe-server/internal/infrastructure/logger"
	"scribe-server/internal/infrastructure/observability"
	"scribe-server/internal/interfaces/httpserver"
	"scribe-server/internal/interfaces/httpserver/handlers"
	middleware "scribe-server/internal/interfaces/httpserver/middlewares"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.GetLogger()
		fallbackLog.Fatal().Err(err).Msg("load config")
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fallbackLog := logger.GetLogger()
		fallbackLog.Fatal().Err(err).Msg("configure logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("initialize observability")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := otelShutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("shutdown telemetry")
			}
		}()
	}

	catalog, err := model.LoadCatalog(cfg.ModelCatalogFile)
	if err != nil {
		log.Fatal().Err(err).Msg("load model catalog")
	}
	registry := model.NewRegistry(catalog, cfg)
	selector := model.NewSelector(registry, cfg, cfg.DefaultTextModel, cfg.DefaultMultimodalModel, cfg.StrictVision)

	store := docstore.NewGateway(docstore.NewClient(docstore.Config{
		BaseURL:     cfg.DocstoreBaseURL,
		Token:       cfg.DocstoreToken,
		Version:     cfg.DocstoreVersion,
		Timeout:     cfg.DocstoreTimeout,
		BulkTimeout: cfg.DocstoreBulkTimeout,
		MaxRetries:  cfg.DocstoreMaxRetries,
	}))

	llm := llmclient.NewClient(cfg, registry, cfg.LLMTimeout, cfg.LLMMaxRetries, log)
	svc := intake.NewService(store, llm, selector, log)

	limiter := middleware.NewRollingLimiter(cfg.RateLimitGlobalPerHour)
	handler := handlers.NewHandler(svc, store, registry, cfg, log)
	server := httpserver.NewHTTPServer(handler, limiter, cfg, log)
	jobs := crontab.NewCrontab(limiter)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metricsServer.Shutdown(shutdownCtx) //nolint:errcheck
		}()
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		return jobs.Run(ctx)
	})
	eg.Go(func() error {
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("http shutdown")
			}
		}()
		log.Info().Int("port", cfg.HTTPPort).Msg("http server listening")
		return server.Run()
	})

	if err := eg.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("shutdown complete")
}
