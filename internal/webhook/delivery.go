package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/musicgen/internal/models"
)

// Options configures a Notifier.
type Options struct {
	URL            string
	Secret         string
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	HTTPClient     *http.Client
}

// Notifier POSTs generation events to a single configured URL. One attempt is
// made inline; transient failures are retried in the background with
// exponential backoff.
type Notifier struct {
	opts       Options
	httpClient *http.Client
	wg         sync.WaitGroup
	stop       chan struct{}
	stopOnce   sync.Once
}

// DeliveryError wraps webhook delivery errors with HTTP status code
type DeliveryError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *DeliveryError) Error() string {
	return e.Message
}

// IsRetryable reports whether the failed delivery should be attempted again.
func (e *DeliveryError) IsRetryable() bool {
	if e.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return e.StatusCode >= 500 || e.StatusCode < 400
}

// NewNotifier creates a Notifier for opts.URL.
func NewNotifier(opts Options) *Notifier {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 2 * time.Second
	}
	if opts.RetryMaxDelay < opts.RetryBaseDelay {
		opts.RetryMaxDelay = opts.RetryBaseDelay
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	log.Info().
		Str("url", opts.URL).
		Bool("signed", opts.Secret != "").
		Int("max_retries", opts.MaxRetries).
		Msg("Webhook notifier initialized")

	return &Notifier{
		opts:       opts,
		httpClient: client,
		stop:       make(chan struct{}),
	}
}

// PublishGeneration delivers event. A permanent failure is returned; a
// transient one is scheduled for retry and nil is returned.
func (n *Notifier) PublishGeneration(ctx context.Context, event *models.GenerationEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = n.send(ctx, body)
	if err == nil {
		log.Debug().Str("event_id", event.ID.String()).Msg("Webhook delivered")
		return nil
	}

	var deliveryErr *DeliveryError
	if errors.As(err, &deliveryErr) && !deliveryErr.IsRetryable() {
		return err
	}
	if n.opts.MaxRetries == 0 {
		return err
	}

	log.Warn().
		Err(err).
		Str("event_id", event.ID.String()).
		Msg("Webhook delivery failed on first attempt - scheduled for retry")

	n.wg.Add(1)
	go n.retry(event.ID.String(), body)
	return nil
}

// retry runs attempts 2..MaxRetries+1 until one succeeds, a permanent error
// occurs, or the notifier is closed.
func (n *Notifier) retry(eventID string, body []byte) {
	defer n.wg.Done()

	for attempt := 1; attempt <= n.opts.MaxRetries; attempt++ {
		select {
		case <-n.stop:
			log.Warn().Str("event_id", eventID).Msg("Webhook retries abandoned on shutdown")
			return
		case <-time.After(n.backoff(attempt)):
		}

		ctx, cancel := context.WithTimeout(context.Background(), n.httpClient.Timeout+time.Second)
		err := n.send(ctx, body)
		cancel()
		if err == nil {
			log.Info().Str("event_id", eventID).Int("attempts", attempt+1).Msg("Webhook delivered after retry")
			return
		}

		var deliveryErr *DeliveryError
		if errors.As(err, &deliveryErr) && !deliveryErr.IsRetryable() {
			log.Error().Err(err).Str("event_id", eventID).Int("status_code", deliveryErr.StatusCode).
				Msg("Webhook delivery failed with permanent error - not retrying")
			return
		}
		log.Warn().Err(err).Str("event_id", eventID).Int("attempt", attempt+1).Msg("Webhook retry failed")
	}

	log.Error().Str("event_id", eventID).Int("max_retries", n.opts.MaxRetries).
		Msg("Webhook delivery failed permanently after max retries")
}

// backoff is base * 2^(attempt-1), capped at RetryMaxDelay.
func (n *Notifier) backoff(attempt int) time.Duration {
	d := n.opts.RetryBaseDelay * time.Duration(1<<uint(attempt-1))
	if d > n.opts.RetryMaxDelay || d <= 0 {
		d = n.opts.RetryMaxDelay
	}
	return d
}

func (n *Notifier) send(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.opts.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Musicgen-Webhook/1.0")
	req.Header.Set("X-Musicgen-Timestamp", fmt.Sprintf("%d", time.Now().Unix()))
	if n.opts.Secret != "" {
		req.Header.Set("X-Musicgen-Signature", generateSignature(body, n.opts.Secret))
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &DeliveryError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("webhook returned status %d", resp.StatusCode),
			Body:       string(respBody),
		}
	}
	return nil
}

// Close cancels pending retries and waits for in-flight ones to return.
func (n *Notifier) Close() error {
	n.stopOnce.Do(func() { close(n.stop) })
	n.wg.Wait()
	return nil
}

// generateSignature generates HMAC-SHA256 signature for the payload
func generateSignature(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
