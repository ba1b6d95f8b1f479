package music

import (
	"errors"

	"github.com/snappy-loop/musicgen/internal/retrieval"
)

// Error codes surfaced in API responses, events and logs.
const (
	CodeMissingCredentials = "missing_credentials"
	CodeEmptyPrompt        = "empty_prompt"
	CodeNoAudioReturned    = "no_audio_returned"
	CodeGenerationFailed   = "generation_failed"
	CodeDownloadFailed     = "download_failed"
	CodeInvalidContentType = "invalid_content_type"
)

var (
	ErrMissingCredentials = errors.New("please enter both the LLM and media API keys")
	ErrEmptyPrompt        = errors.New("please enter a prompt first")
	ErrNoAudioReturned    = errors.New("no audio was returned from the media tool")
	ErrGenerationFailed   = errors.New("generation failed")
	ErrDownloadFailed     = retrieval.ErrDownloadFailed
	ErrInvalidContentType = retrieval.ErrInvalidContentType
)

// GenerationError carries the underlying failure verbatim while matching ErrGenerationFailed.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return e.Err.Error() }

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool { return target == ErrGenerationFailed }

// Code maps an error returned by Generate to its stable code.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingCredentials):
		return CodeMissingCredentials
	case errors.Is(err, ErrEmptyPrompt):
		return CodeEmptyPrompt
	case errors.Is(err, ErrNoAudioReturned):
		return CodeNoAudioReturned
	case errors.Is(err, ErrDownloadFailed):
		return CodeDownloadFailed
	case errors.Is(err, ErrInvalidContentType):
		return CodeInvalidContentType
	default:
		return CodeGenerationFailed
	}
}
