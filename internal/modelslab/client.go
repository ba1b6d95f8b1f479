package modelslab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/musicgen/internal/models"
)

// DefaultBaseURL is the public ModelsLab API host.
const DefaultBaseURL = "https://modelslab.com"

const (
	statusSuccess    = "success"
	statusProcessing = "processing"
	statusError      = "error"
)

// ErrGeneration is returned when ModelsLab reports status "error".
var ErrGeneration = errors.New("modelslab generation error")

// endpoints maps file types to generate and fetch paths.
var endpoints = map[models.FileType]struct{ generate, fetch string }{
	models.FileTypeMP3: {"/api/v6/voice/music_gen", "/api/v6/voice/fetch"},
	models.FileTypeWAV: {"/api/v6/voice/music_gen", "/api/v6/voice/fetch"},
	models.FileTypeMP4: {"/api/v6/video/text2video", "/api/v6/video/fetch"},
	models.FileTypeGIF: {"/api/v6/video/text2video", "/api/v6/video/fetch"},
}

// Options configures the media tool binding
type Options struct {
	BaseURL           string
	FileType          models.FileType
	WaitForCompletion bool
	AddToETA          time.Duration
	MaxWait           time.Duration
	PollInterval      time.Duration
	HTTPClient        *http.Client
}

// Client submits text-to-media jobs to ModelsLab and optionally waits for them.
type Client struct {
	apiKey     string
	opts       Options
	httpClient *http.Client
}

// Media is the outcome of one generate_media call
type Media struct {
	ID     string
	Status string
	ETA    time.Duration
	URLs   []string
	Ready  bool
}

type generateResponse struct {
	Status      string      `json:"status"`
	ID          json.Number `json:"id"`
	ETA         float64     `json:"eta"`
	Output      []string    `json:"output"`
	FutureLinks []string    `json:"future_links"`
	Message     string      `json:"message"`
}

// NewClient creates a ModelsLab client. Zero-valued options get the defaults.
func NewClient(apiKey string, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	opts.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	if opts.FileType == "" {
		opts.FileType = models.FileTypeMP3
	}
	if opts.AddToETA == 0 {
		opts.AddToETA = 15 * time.Second
	}
	if opts.MaxWait == 0 {
		opts.MaxWait = 60 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{apiKey: apiKey, opts: opts, httpClient: httpClient}
}

// FileType returns the configured output format.
func (c *Client) FileType() models.FileType {
	return c.opts.FileType
}

// GenerateMedia submits the prompt. With WaitForCompletion it polls the fetch endpoint
// until the job succeeds, fails, or min(eta+AddToETA, MaxWait) elapses.
func (c *Client) GenerateMedia(ctx context.Context, prompt string) (*Media, error) {
	ep, ok := endpoints[c.opts.FileType]
	if !ok {
		return nil, fmt.Errorf("unsupported file type: %s", c.opts.FileType)
	}

	payload := map[string]interface{}{
		"key":      c.apiKey,
		"prompt":   prompt,
		"webhook":  nil,
		"track_id": nil,
	}
	switch c.opts.FileType {
	case models.FileTypeMP3, models.FileTypeWAV:
		payload["base64"] = false
		payload["temp"] = false
		payload["output_type"] = string(c.opts.FileType)
	default:
		payload["height"] = 512
		payload["width"] = 512
		payload["num_frames"] = 25
		payload["output_type"] = string(c.opts.FileType)
	}

	var resp generateResponse
	if err := c.postJSON(ctx, c.opts.BaseURL+ep.generate, payload, &resp); err != nil {
		return nil, err
	}
	if resp.Status == statusError {
		return nil, fmt.Errorf("%w: %s", ErrGeneration, resp.Message)
	}

	media := &Media{
		ID:     resp.ID.String(),
		Status: resp.Status,
		ETA:    time.Duration(resp.ETA * float64(time.Second)),
		URLs:   pickURLs(resp),
		Ready:  resp.Status == statusSuccess,
	}

	log.Info().
		Str("media_id", media.ID).
		Str("status", media.Status).
		Dur("eta", media.ETA).
		Int("links", len(media.URLs)).
		Msg("ModelsLab job submitted")

	if media.Ready || !c.opts.WaitForCompletion || media.ID == "" {
		return media, nil
	}

	if err := c.waitForMedia(ctx, ep.fetch, media); err != nil {
		return nil, err
	}
	return media, nil
}

func (c *Client) waitForMedia(ctx context.Context, fetchPath string, media *Media) error {
	budget := media.ETA + c.opts.AddToETA
	if budget > c.opts.MaxWait {
		budget = c.opts.MaxWait
	}
	deadline := time.Now().Add(budget)
	url := c.opts.BaseURL + fetchPath + "/" + media.ID

	for {
		var resp generateResponse
		if err := c.postJSON(ctx, url, map[string]string{"key": c.apiKey}, &resp); err != nil {
			return err
		}
		switch resp.Status {
		case statusSuccess:
			if urls := pickURLs(resp); len(urls) > 0 {
				media.URLs = urls
			}
			media.Status = statusSuccess
			media.Ready = true
			log.Info().Str("media_id", media.ID).Msg("ModelsLab media ready")
			return nil
		case statusError:
			return fmt.Errorf("%w: %s", ErrGeneration, resp.Message)
		}

		if !time.Now().Before(deadline) {
			log.Warn().
				Str("media_id", media.ID).
				Dur("waited", budget).
				Msg("ModelsLab media not ready within max wait")
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.opts.PollInterval):
		}
	}
}

func (c *Client) postJSON(ctx context.Context, url string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal modelslab request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build modelslab request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("modelslab request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read modelslab response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("modelslab returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode modelslab response: %w", err)
	}
	return nil
}

// pickURLs prefers final output links and falls back to future links while processing.
func pickURLs(resp generateResponse) []string {
	if len(resp.Output) > 0 {
		return resp.Output
	}
	return resp.FutureLinks
}
