package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/musicgen/internal/config"
	"github.com/snappy-loop/musicgen/internal/handlers"
	"github.com/snappy-loop/musicgen/internal/kafka"
	"github.com/snappy-loop/musicgen/internal/music"
	"github.com/snappy-loop/musicgen/internal/retrieval"
	"github.com/snappy-loop/musicgen/internal/storage"
	"github.com/snappy-loop/musicgen/internal/webhook"
	"golang.org/x/sync/errgroup"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().Msg("Starting Music Generator API")

	var sinks music.Publishers
	if cfg.EventsEnabled() {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicEvents)
		defer producer.Close()
		sinks = append(sinks, producer)
	}
	if cfg.WebhookURL != "" {
		notifier := webhook.NewNotifier(webhook.Options{
			URL:            cfg.WebhookURL,
			Secret:         cfg.WebhookSecret,
			MaxRetries:     cfg.WebhookMaxRetries,
			RetryBaseDelay: cfg.WebhookRetryBaseDelay,
			RetryMaxDelay:  cfg.WebhookRetryMaxDelay,
		})
		defer notifier.Close()
		sinks = append(sinks, notifier)
	}
	var events music.EventPublisher
	if len(sinks) > 0 {
		events = sinks
	}

	store := storage.NewDisk(cfg.SaveDir)
	fetcher := retrieval.NewFetcher(cfg.DownloadTimeout, cfg.MaxDownloadBytes)
	gen := music.NewGenerator(music.AgentRunnerFactory(cfg), fetcher, store, events)
	defer gen.Close()

	h := handlers.NewHandler(gen, store, cfg.DefaultPrompt)

	// No write timeout: a generation blocks the request for the whole agent run.
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().
			Str("addr", cfg.HTTPAddr).
			Str("save_dir", store.Dir()).
			Str("llm_provider", cfg.LLMProvider).
			Int("event_sinks", len(sinks)).
			Msg("API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down API...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server error")
	}
	log.Info().Msg("API exited")
}
