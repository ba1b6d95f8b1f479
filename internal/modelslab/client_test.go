package modelslab

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/snappy-loop/musicgen/internal/models"
)

func newTestClient(srv *httptest.Server, wait bool) *Client {
	return NewClient("media-key", Options{
		BaseURL:           srv.URL,
		FileType:          models.FileTypeMP3,
		WaitForCompletion: wait,
		AddToETA:          50 * time.Millisecond,
		MaxWait:           200 * time.Millisecond,
		PollInterval:      time.Millisecond,
		HTTPClient:        srv.Client(),
	})
}

func TestGenerateMedia_ImmediateSuccess(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v6/voice/music_gen" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Write([]byte(`{"status":"success","id":42,"eta":0,"output":["https://cdn.example/a.mp3"]}`))
	}))
	defer srv.Close()

	media, err := newTestClient(srv, true).GenerateMedia(context.Background(), "calm piano")
	if err != nil {
		t.Fatalf("GenerateMedia: %v", err)
	}
	if !media.Ready || media.ID != "42" {
		t.Errorf("media = %+v", media)
	}
	if len(media.URLs) != 1 || media.URLs[0] != "https://cdn.example/a.mp3" {
		t.Errorf("urls = %v", media.URLs)
	}
	if body["key"] != "media-key" || body["prompt"] != "calm piano" || body["output_type"] != "mp3" {
		t.Errorf("payload = %v", body)
	}
}

func TestGenerateMedia_PollsUntilSuccess(t *testing.T) {
	var fetches int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v6/voice/music_gen":
			w.Write([]byte(`{"status":"processing","id":7,"eta":0,"future_links":["https://cdn.example/future.mp3"]}`))
		case "/api/v6/voice/fetch/7":
			if atomic.AddInt32(&fetches, 1) < 3 {
				w.Write([]byte(`{"status":"processing"}`))
				return
			}
			w.Write([]byte(`{"status":"success","output":["https://cdn.example/final.mp3"]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	media, err := newTestClient(srv, true).GenerateMedia(context.Background(), "jazz")
	if err != nil {
		t.Fatalf("GenerateMedia: %v", err)
	}
	if !media.Ready {
		t.Fatal("expected media to be ready")
	}
	if media.URLs[0] != "https://cdn.example/final.mp3" {
		t.Errorf("urls = %v", media.URLs)
	}
	if got := atomic.LoadInt32(&fetches); got != 3 {
		t.Errorf("fetches = %d, want 3", got)
	}
}

func TestGenerateMedia_NoWaitReturnsFutureLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v6/voice/music_gen" {
			t.Errorf("should not poll, got %s", r.URL.Path)
		}
		w.Write([]byte(`{"status":"processing","id":9,"eta":20,"future_links":["https://cdn.example/f.mp3"]}`))
	}))
	defer srv.Close()

	media, err := newTestClient(srv, false).GenerateMedia(context.Background(), "rock")
	if err != nil {
		t.Fatalf("GenerateMedia: %v", err)
	}
	if media.Ready {
		t.Error("expected not ready")
	}
	if media.ETA != 20*time.Second {
		t.Errorf("eta = %s", media.ETA)
	}
	if media.URLs[0] != "https://cdn.example/f.mp3" {
		t.Errorf("urls = %v", media.URLs)
	}
}

func TestGenerateMedia_GiveUpAfterMaxWait(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v6/voice/music_gen" {
			w.Write([]byte(`{"status":"processing","id":1,"eta":0,"future_links":["https://cdn.example/late.mp3"]}`))
			return
		}
		w.Write([]byte(`{"status":"processing"}`))
	}))
	defer srv.Close()

	media, err := newTestClient(srv, true).GenerateMedia(context.Background(), "ambient")
	if err != nil {
		t.Fatalf("GenerateMedia: %v", err)
	}
	if media.Ready {
		t.Error("expected media to stay not ready")
	}
	if len(media.URLs) != 1 {
		t.Errorf("urls = %v", media.URLs)
	}
}

func TestGenerateMedia_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error","message":"Invalid API key"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv, true).GenerateMedia(context.Background(), "x")
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
}

func TestGenerateMedia_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv, true).GenerateMedia(context.Background(), "x")
	if err == nil {
		t.Fatal("expected error")
	}
}
