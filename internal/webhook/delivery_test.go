package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/snappy-loop/musicgen/internal/models"
)

func testEvent() *models.GenerationEvent {
	return &models.GenerationEvent{
		ID:         uuid.New(),
		Event:      "generation_succeeded",
		Filename:   "music_0123456789abcdef0123456789abcdef.mp3",
		SizeBytes:  4096,
		OccurredAt: time.Now().UTC(),
	}
}

func TestPublishGeneration_SignsPayload(t *testing.T) {
	var gotSig string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Musicgen-Signature")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewNotifier(Options{URL: srv.URL, Secret: "s3cret"})
	defer n.Close()

	event := testEvent()
	if err := n.PublishGeneration(context.Background(), event); err != nil {
		t.Fatalf("PublishGeneration: %v", err)
	}
	if gotSig != generateSignature(gotBody, "s3cret") {
		t.Errorf("signature mismatch: %q", gotSig)
	}
	var decoded models.GenerationEvent
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.ID != event.ID || decoded.Filename != event.Filename {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestPublishGeneration_PermanentError(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	n := NewNotifier(Options{URL: srv.URL, MaxRetries: 3, RetryBaseDelay: time.Millisecond})
	err := n.PublishGeneration(context.Background(), testEvent())
	n.Close()

	var de *DeliveryError
	if !errors.As(err, &de) || de.StatusCode != http.StatusBadRequest {
		t.Fatalf("err = %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("hits = %d, want 1", got)
	}
}

func TestPublishGeneration_RetriesTransientFailure(t *testing.T) {
	var hits int32
	delivered := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		close(delivered)
	}))
	defer srv.Close()

	n := NewNotifier(Options{URL: srv.URL, MaxRetries: 3, RetryBaseDelay: time.Millisecond, RetryMaxDelay: 5 * time.Millisecond})
	defer n.Close()

	if err := n.PublishGeneration(context.Background(), testEvent()); err != nil {
		t.Fatalf("transient failure should be scheduled, got %v", err)
	}
	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatalf("not delivered after retries, hits = %d", atomic.LoadInt32(&hits))
	}
}

func TestDeliveryError_IsRetryable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusTooManyRequests, true},
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
		{http.StatusMovedPermanently, true},
	}
	for _, tt := range tests {
		if got := (&DeliveryError{StatusCode: tt.status}).IsRetryable(); got != tt.want {
			t.Errorf("IsRetryable(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestBackoff(t *testing.T) {
	n := &Notifier{opts: Options{RetryBaseDelay: time.Second, RetryMaxDelay: 5 * time.Second}}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := n.backoff(i + 1); got != w {
			t.Errorf("backoff(%d) = %s, want %s", i+1, got, w)
		}
	}
}
