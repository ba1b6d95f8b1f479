package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SaveDir != "audio_generations" {
		t.Errorf("SaveDir = %q", cfg.SaveDir)
	}
	if cfg.LLMProvider != "openai" {
		t.Errorf("LLMProvider = %q", cfg.LLMProvider)
	}
	if !cfg.ModelsLabWait {
		t.Error("expected wait_for_completion to default to true")
	}
	if cfg.ModelsLabMaxWait != 60*time.Second {
		t.Errorf("ModelsLabMaxWait = %s", cfg.ModelsLabMaxWait)
	}
	if cfg.DefaultPrompt != DefaultPrompt {
		t.Errorf("DefaultPrompt = %q", cfg.DefaultPrompt)
	}
	if cfg.EventsEnabled() {
		t.Error("events should be disabled without brokers")
	}
	if cfg.WebhookURL != "" || cfg.WebhookMaxRetries != 3 {
		t.Errorf("webhook defaults = %q, %d", cfg.WebhookURL, cfg.WebhookMaxRetries)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SAVE_DIR", "/tmp/music")
	t.Setenv("LLM_PROVIDER", "googleai")
	t.Setenv("AGENT_MAX_TOOL_ROUNDS", "0")
	t.Setenv("MODELSLAB_ADD_TO_ETA", "5s")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("WEBHOOK_MAX_RETRIES", "-2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SaveDir != "/tmp/music" {
		t.Errorf("SaveDir = %q", cfg.SaveDir)
	}
	if cfg.LLMProvider != "googleai" {
		t.Errorf("LLMProvider = %q", cfg.LLMProvider)
	}
	if cfg.AgentMaxToolRuns != 1 {
		t.Errorf("AgentMaxToolRuns = %d, want clamped to 1", cfg.AgentMaxToolRuns)
	}
	if cfg.ModelsLabAddToETA != 5*time.Second {
		t.Errorf("ModelsLabAddToETA = %s", cfg.ModelsLabAddToETA)
	}
	if len(cfg.KafkaBrokers) != 2 || !cfg.EventsEnabled() {
		t.Errorf("KafkaBrokers = %v", cfg.KafkaBrokers)
	}
	if cfg.WebhookMaxRetries != 0 {
		t.Errorf("WebhookMaxRetries = %d, want clamped to 0", cfg.WebhookMaxRetries)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("DOWNLOAD_TIMEOUT", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}
