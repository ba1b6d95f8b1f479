package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// DefaultPrompt is the prompt pre-filled in the UI and used by the CLI when none is given.
const DefaultPrompt = "Generate a 30 second classical instrumental music piece"

// Config holds application configuration
type Config struct {
	// Server
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Persisted audio (flat files, never cleaned up)
	SaveDir string `env:"SAVE_DIR" envDefault:"audio_generations"`

	// Hosted agent
	LLMProvider      string `env:"LLM_PROVIDER" envDefault:"openai"` // openai, googleai, genai
	LLMModel         string `env:"LLM_MODEL"`                        // defaults per provider (gpt-4o for openai)
	LLMBaseURL       string `env:"LLM_BASE_URL"`                     // if set, overrides the provider's default API base URL
	AgentMaxToolRuns int    `env:"AGENT_MAX_TOOL_ROUNDS" envDefault:"4"`

	// ModelsLab media tool
	ModelsLabBaseURL      string        `env:"MODELSLAB_BASE_URL" envDefault:"https://modelslab.com"`
	ModelsLabWait         bool          `env:"MODELSLAB_WAIT_FOR_COMPLETION" envDefault:"true"`
	ModelsLabAddToETA     time.Duration `env:"MODELSLAB_ADD_TO_ETA" envDefault:"15s"`
	ModelsLabMaxWait      time.Duration `env:"MODELSLAB_MAX_WAIT" envDefault:"60s"`
	ModelsLabPollInterval time.Duration `env:"MODELSLAB_POLL_INTERVAL" envDefault:"1s"`

	// Audio download
	DownloadTimeout  time.Duration `env:"DOWNLOAD_TIMEOUT" envDefault:"2m"`
	MaxDownloadBytes int64         `env:"MAX_DOWNLOAD_BYTES" envDefault:"52428800"` // 50MB

	// UI
	DefaultPrompt string `env:"DEFAULT_PROMPT"`

	// Kafka (optional; events are disabled when no brokers are set)
	KafkaBrokers     []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopicEvents string   `env:"KAFKA_TOPIC_EVENTS" envDefault:"musicgen.events.v1"`

	// Webhook (optional; disabled when WEBHOOK_URL is empty)
	WebhookURL            string        `env:"WEBHOOK_URL"`
	WebhookSecret         string        `env:"WEBHOOK_SECRET"`
	WebhookMaxRetries     int           `env:"WEBHOOK_MAX_RETRIES" envDefault:"3"`
	WebhookRetryBaseDelay time.Duration `env:"WEBHOOK_RETRY_BASE_DELAY" envDefault:"2s"`
	WebhookRetryMaxDelay  time.Duration `env:"WEBHOOK_RETRY_MAX_DELAY" envDefault:"30s"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.DefaultPrompt == "" {
		cfg.DefaultPrompt = DefaultPrompt
	}
	cfg.AgentMaxToolRuns = clampMin(cfg.AgentMaxToolRuns, 1)
	cfg.WebhookMaxRetries = clampMin(cfg.WebhookMaxRetries, 0)
	if cfg.ModelsLabPollInterval <= 0 {
		cfg.ModelsLabPollInterval = time.Second
	}
	return &cfg, nil
}

// EventsEnabled reports whether generation events should be published to Kafka.
func (c *Config) EventsEnabled() bool {
	return len(c.KafkaBrokers) > 0 && c.KafkaBrokers[0] != ""
}

// clampMin returns v if v >= min, otherwise min. Used to ensure config values are in valid range.
func clampMin(v, min int) int {
	if v < min {
		return min
	}
	return v
}
