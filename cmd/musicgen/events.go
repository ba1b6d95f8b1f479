package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/musicgen/internal/kafka"
	"github.com/snappy-loop/musicgen/internal/models"
	"github.com/spf13/cobra"
)

var (
	eventsGroup string

	eventsCmd = &cobra.Command{
		Use:   "events",
		Short: "Tail generation events from Kafka",
		Args:  cobra.NoArgs,
		RunE:  runEvents,
	}
)

func init() {
	eventsCmd.Flags().StringVar(&eventsGroup, "group", "musicgen-events-cli", "Kafka consumer group ID")
}

func runEvents(cmd *cobra.Command, _ []string) error {
	if !cfg.EventsEnabled() {
		return errors.New("KAFKA_BROKERS is not set")
	}

	out := cmd.OutOrStdout()
	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopicEvents, eventsGroup,
		kafka.EventHandlerFunc(func(ctx context.Context, e *models.GenerationEvent) error {
			ts := e.OccurredAt.Local().Format(time.DateTime)
			if e.ErrorCode != "" {
				fmt.Fprintf(out, "%s  %-22s %s (%.1fs)\n", ts, e.Event, e.ErrorCode, e.Duration)
				return nil
			}
			fmt.Fprintf(out, "%s  %-22s %s %s (%.1fs)\n", ts, e.Event, e.Filename, humanize.Bytes(uint64(e.SizeBytes)), e.Duration)
			return nil
		}))
	defer consumer.Close()

	err := consumer.Start(cmd.Context())
	if errors.Is(err, context.Canceled) {
		log.Info().Msg("Stopped tailing events")
		return nil
	}
	return err
}
