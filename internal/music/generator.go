package music

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/musicgen/internal/models"
)

// Runner invokes the hosted agent for one request.
type Runner interface {
	Run(ctx context.Context, req *models.GenerationRequest) (*models.RunOutput, error)
}

// RunnerFactory builds a Runner bound to the caller's credentials.
type RunnerFactory func(ctx context.Context, creds models.Credentials) (Runner, error)

// AudioFetcher downloads and validates the audio at a URL.
type AudioFetcher interface {
	Fetch(ctx context.Context, url string) (*models.GenerationResult, error)
}

// AudioStore persists fetched audio.
type AudioStore interface {
	Save(data []byte, contentType string) (*models.PersistedAudio, error)
}

// EventPublisher publishes generation outcomes (e.g. to Kafka). May be nil to skip publishing.
type EventPublisher interface {
	PublishGeneration(ctx context.Context, event *models.GenerationEvent) error
}

// Result is a successful generation
type Result struct {
	Audio     *models.PersistedAudio
	SourceURL string
	Content   string
}

// publishTimeout bounds one event delivery across all sinks.
const publishTimeout = 10 * time.Second

// Generator runs the credential gate, request builder, agent call and retrieval in sequence.
type Generator struct {
	newRunner RunnerFactory
	fetcher   AudioFetcher
	store     AudioStore
	events    EventPublisher
	pending   sync.WaitGroup
}

// NewGenerator creates a Generator. events may be nil.
func NewGenerator(newRunner RunnerFactory, fetcher AudioFetcher, store AudioStore, events EventPublisher) *Generator {
	return &Generator{
		newRunner: newRunner,
		fetcher:   fetcher,
		store:     store,
		events:    events,
	}
}

// Generate produces one MP3. No network call is made unless both keys and a
// non-blank prompt are present, and no file is written unless the download
// succeeded with an audio content type. Nothing is retried.
func (g *Generator) Generate(ctx context.Context, creds models.Credentials, prompt string) (*Result, error) {
	if !creds.Ready() {
		return nil, ErrMissingCredentials
	}
	req, err := Build(prompt)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := g.generate(ctx, creds, req)
	g.publish(ctx, res, err, time.Since(start))
	if err != nil {
		log.Error().
			Err(err).
			Str("code", Code(err)).
			Msg("Music generator failure")
		return nil, err
	}
	return res, nil
}

func (g *Generator) generate(ctx context.Context, creds models.Credentials, req *models.GenerationRequest) (*Result, error) {
	runner, err := g.newRunner(ctx, creds)
	if err != nil {
		return nil, &GenerationError{Err: err}
	}

	out, err := runner.Run(ctx, req)
	if err != nil {
		return nil, &GenerationError{Err: err}
	}
	if out == nil || len(out.Audio) == 0 || out.Audio[0].URL == "" {
		return nil, ErrNoAudioReturned
	}
	if len(out.Audio) > 1 {
		log.Debug().Int("ignored", len(out.Audio)-1).Msg("Using first audio reference only")
	}
	url := out.Audio[0].URL

	fetched, err := g.fetcher.Fetch(ctx, url)
	if err != nil {
		if errors.Is(err, ErrDownloadFailed) || errors.Is(err, ErrInvalidContentType) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	saved, err := g.store.Save(fetched.RawBytes, fetched.ContentType)
	if err != nil {
		return nil, &GenerationError{Err: err}
	}

	log.Info().
		Str("filename", saved.Filename).
		Int64("size_bytes", saved.SizeBytes).
		Msg("Music generated successfully")

	return &Result{Audio: saved, SourceURL: url, Content: out.Content}, nil
}

// Close waits for in-flight event deliveries to finish.
func (g *Generator) Close() {
	g.pending.Wait()
}

// publish delivers the outcome event in the background so a slow sink never
// holds back the caller. The delivery keeps ctx values but not its cancellation.
func (g *Generator) publish(ctx context.Context, res *Result, genErr error, elapsed time.Duration) {
	if g.events == nil {
		return
	}
	event := &models.GenerationEvent{
		ID:         uuid.New(),
		Event:      "generation_succeeded",
		Duration:   elapsed.Seconds(),
		OccurredAt: time.Now().UTC(),
	}
	if genErr != nil {
		event.Event = "generation_failed"
		event.ErrorCode = Code(genErr)
	} else if res != nil && res.Audio != nil {
		event.Filename = res.Audio.Filename
		event.SizeBytes = res.Audio.SizeBytes
	}

	g.pending.Add(1)
	go func() {
		defer g.pending.Done()
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := g.events.PublishGeneration(pubCtx, event); err != nil {
			log.Warn().Err(err).Str("event", event.Event).Msg("Failed to publish generation event")
		}
	}()
}
