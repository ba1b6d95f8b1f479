// Package main provides the musicgen command line client.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/musicgen/internal/config"
	"github.com/snappy-loop/musicgen/internal/models"
	"github.com/snappy-loop/musicgen/internal/music"
	"github.com/snappy-loop/musicgen/internal/retrieval"
	"github.com/snappy-loop/musicgen/internal/storage"
	"github.com/spf13/cobra"
)

var (
	// Version as provided by the release build.
	Version = ""

	cfg *config.Config

	verbose  bool
	prompt   string
	llmKey   string
	mediaKey string
	saveDir  string
	provider string

	rootCmd = &cobra.Command{
		Use:           "musicgen",
		Short:         "Generate instrumental music from a text prompt",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := zerolog.InfoLevel
			if verbose {
				level = zerolog.DebugLevel
			} else if l, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
				level = l
			}
			zerolog.SetGlobalLevel(level)
			return nil
		},
	}

	generateCmd = &cobra.Command{
		Use:   "generate",
		Short: "Generate one MP3 and save it under the save directory",
		Args:  cobra.NoArgs,
		RunE:  runGenerate,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			v := Version
			if v == "" {
				v = "dev"
			}
			fmt.Fprintln(cmd.OutOrStdout(), "musicgen", v)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	generateCmd.Flags().StringVarP(&prompt, "prompt", "p", "", "music generation prompt (defaults to $DEFAULT_PROMPT or a classical piece)")
	generateCmd.Flags().StringVar(&llmKey, "llm-key", "", "LLM API key (defaults to $OPENAI_API_KEY, or $GEMINI_API_KEY for Google providers)")
	generateCmd.Flags().StringVar(&mediaKey, "media-key", "", "ModelsLab API key (defaults to $MODELSLAB_API_KEY)")
	generateCmd.Flags().StringVar(&saveDir, "save-dir", "", "directory for generated files (defaults to $SAVE_DIR)")
	generateCmd.Flags().StringVar(&provider, "provider", "", "LLM provider: openai, googleai or genai (defaults to $LLM_PROVIDER)")

	rootCmd.AddCommand(generateCmd, eventsCmd, versionCmd)
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var err error
	cfg, err = config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	if provider != "" {
		cfg.LLMProvider = provider
	}
	if saveDir != "" {
		cfg.SaveDir = saveDir
	}
	if prompt == "" {
		prompt = cfg.DefaultPrompt
	}
	creds := models.Credentials{
		LLMAPIKey:   firstNonEmpty(llmKey, defaultLLMKey(cfg.LLMProvider)),
		MediaAPIKey: firstNonEmpty(mediaKey, os.Getenv("MODELSLAB_API_KEY")),
	}

	store := storage.NewDisk(cfg.SaveDir)
	fetcher := retrieval.NewFetcher(cfg.DownloadTimeout, cfg.MaxDownloadBytes)
	gen := music.NewGenerator(music.AgentRunnerFactory(cfg), fetcher, store, nil)
	defer gen.Close()

	log.Info().Str("provider", cfg.LLMProvider).Msg("Generating music... Please wait")
	res, err := gen.Generate(cmd.Context(), creds, prompt)
	if err != nil {
		return describe(err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Music generated successfully!")
	fmt.Fprintf(out, "  file:   %s\n", res.Audio.Path)
	fmt.Fprintf(out, "  size:   %s\n", humanize.Bytes(uint64(res.Audio.SizeBytes)))
	fmt.Fprintf(out, "  source: %s\n", res.SourceURL)
	return nil
}

// describe turns a generation error into the message shown to the user.
func describe(err error) error {
	var se *retrieval.StatusError
	var cte *retrieval.ContentTypeError
	switch {
	case errors.Is(err, music.ErrMissingCredentials):
		return errors.New("please provide BOTH the LLM and ModelsLab API keys (--llm-key/--media-key or environment)")
	case errors.Is(err, music.ErrEmptyPrompt):
		return errors.New("please enter a prompt first")
	case errors.Is(err, music.ErrNoAudioReturned):
		return errors.New("no audio was returned from ModelsLab")
	case errors.As(err, &se):
		return fmt.Errorf("download failed: HTTP %d", se.StatusCode)
	case errors.As(err, &cte):
		return fmt.Errorf("invalid file type returned: content-type %q from %s", cte.ContentType, cte.URL)
	default:
		return fmt.Errorf("%s: %w", music.Code(err), err)
	}
}

func defaultLLMKey(provider string) string {
	switch provider {
	case "googleai", "genai":
		return os.Getenv("GEMINI_API_KEY")
	default:
		return os.Getenv("OPENAI_API_KEY")
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
