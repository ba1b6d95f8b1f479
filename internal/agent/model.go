package agent

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"
)

// Supported providers.
const (
	ProviderOpenAI   = "openai"
	ProviderGoogleAI = "googleai"
	ProviderGenAI    = "genai"
)

// ModelConfig selects and configures the hosted model for one run.
type ModelConfig struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string // optional API base URL override
}

// DefaultModel returns the model id used when none is configured.
func DefaultModel(provider string) string {
	switch provider {
	case ProviderGoogleAI, ProviderGenAI:
		return "gemini-2.5-flash"
	default:
		return "gpt-4o"
	}
}

// NewModel builds an llms.Model for the configured provider.
func NewModel(ctx context.Context, cfg ModelConfig) (llms.Model, error) {
	if cfg.Provider == "" {
		cfg.Provider = ProviderOpenAI
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel(cfg.Provider)
	}

	log.Debug().
		Str("provider", cfg.Provider).
		Str("model", cfg.Model).
		Str("base_url", cfg.BaseURL).
		Msg("Initializing LLM")

	switch cfg.Provider {
	case ProviderOpenAI:
		opts := []openai.Option{openai.WithToken(cfg.APIKey), openai.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		m, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai model: %w", err)
		}
		return m, nil
	case ProviderGoogleAI:
		opts := []googleai.Option{googleai.WithAPIKey(cfg.APIKey), googleai.WithDefaultModel(cfg.Model)}
		if cfg.BaseURL != "" {
			if hc := httpClientForEndpoint(cfg.BaseURL); hc != nil {
				opts = append(opts, googleai.WithHTTPClient(hc))
			}
		}
		m, err := googleai.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize googleai model: %w", err)
		}
		return m, nil
	case ProviderGenAI:
		return NewGenAIModel(ctx, cfg.APIKey, cfg.Model, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// httpClientForEndpoint returns an http.Client that rewrites request URLs to the given base endpoint.
func httpClientForEndpoint(baseEndpoint string) *http.Client {
	base, err := url.Parse(baseEndpoint)
	if err != nil || base.Host == "" {
		log.Warn().Err(err).Str("endpoint", baseEndpoint).Msg("Invalid LLM_BASE_URL, using default")
		return nil
	}
	base.Path = strings.TrimSuffix(base.Path, "/")
	return &http.Client{
		Transport: &endpointRoundTripper{base: base, next: http.DefaultTransport},
	}
}

// endpointRoundTripper rewrites request URLs to a custom base (scheme, host, path prefix).
type endpointRoundTripper struct {
	base *url.URL
	next http.RoundTripper
}

func (e *endpointRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req2 := req.Clone(req.Context())
	req2.URL.Scheme = e.base.Scheme
	req2.URL.Host = e.base.Host
	req2.URL.Path = path.Join("/", e.base.Path, strings.TrimPrefix(req.URL.Path, "/"))
	req2.Host = e.base.Host
	return e.next.RoundTrip(req2)
}
