package retrieval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/musicgen/internal/models"
)

var (
	// ErrDownloadFailed matches any *StatusError.
	ErrDownloadFailed = errors.New("download failed")
	// ErrInvalidContentType matches any *ContentTypeError.
	ErrInvalidContentType = errors.New("invalid file type returned")
	// ErrTooLarge is returned when the payload exceeds the configured limit.
	ErrTooLarge = errors.New("audio payload too large")
)

// StatusError is returned when the audio URL answers with a non-2xx status
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("download failed: HTTP %d", e.StatusCode)
}

func (e *StatusError) Is(target error) bool { return target == ErrDownloadFailed }

// ContentTypeError is returned when the payload is not audio
type ContentTypeError struct {
	ContentType string
	URL         string
}

func (e *ContentTypeError) Error() string {
	return fmt.Sprintf("invalid file type returned: %q", e.ContentType)
}

func (e *ContentTypeError) Is(target error) bool { return target == ErrInvalidContentType }

// Fetcher downloads finished audio from the URL returned by the media tool.
type Fetcher struct {
	httpClient *http.Client
	maxBytes   int64
}

// NewFetcher creates a fetcher. maxBytes <= 0 disables the size cap.
func NewFetcher(timeout time.Duration, maxBytes int64) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		maxBytes:   maxBytes,
	}
}

// NewFetcherWithClient creates a fetcher that uses the given HTTP client.
func NewFetcherWithClient(client *http.Client, maxBytes int64) *Fetcher {
	return &Fetcher{httpClient: client, maxBytes: maxBytes}
}

// Fetch issues one GET (no retries), requires a 2xx status and a Content-Type containing "audio".
func (f *Fetcher) Fetch(ctx context.Context, url string) (*models.GenerationResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: url}
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "audio") {
		return nil, &ContentTypeError{ContentType: contentType, URL: url}
	}

	var body io.Reader = resp.Body
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read audio payload: %w", err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%w: over %d bytes", ErrTooLarge, f.maxBytes)
	}

	log.Debug().
		Str("content_type", contentType).
		Int("size", len(data)).
		Msg("Audio downloaded")

	return &models.GenerationResult{
		AudioURL:    url,
		RawBytes:    data,
		ContentType: contentType,
	}, nil
}
