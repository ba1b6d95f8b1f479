package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// FileType is the media output format requested from the generation tool
type FileType string

const (
	FileTypeMP3 FileType = "mp3"
	FileTypeWAV FileType = "wav"
	FileTypeMP4 FileType = "mp4"
	FileTypeGIF FileType = "gif"
)

// DownloadName is the fixed user-facing filename offered for downloads.
const DownloadName = "generated_music.mp3"

// PlaybackMimeType is the MIME type used for inline playback and downloads.
const PlaybackMimeType = "audio/mp3"

// Credentials holds the two secrets needed for one generation. Never logged or persisted.
type Credentials struct {
	LLMAPIKey   string `json:"llm_api_key"`
	MediaAPIKey string `json:"media_api_key"`
}

// Ready reports whether both keys are present after trimming.
func (c Credentials) Ready() bool {
	return strings.TrimSpace(c.LLMAPIKey) != "" && strings.TrimSpace(c.MediaAPIKey) != ""
}

// GenerationRequest is built fresh for every generate action
type GenerationRequest struct {
	Prompt       string   `json:"prompt"`
	Description  string   `json:"description"`
	Instructions []string `json:"instructions"`
	OutputFormat FileType `json:"output_format"`
}

// SystemInstruction joins the agent description and instruction list into one message.
func (r *GenerationRequest) SystemInstruction() string {
	var b strings.Builder
	b.WriteString(r.Description)
	if len(r.Instructions) > 0 {
		b.WriteString("\n\n<instructions>\n")
		for _, in := range r.Instructions {
			b.WriteString(in)
			b.WriteString("\n")
		}
		b.WriteString("</instructions>")
	}
	return b.String()
}

// AudioArtifact is one audio reference produced by the media tool
type AudioArtifact struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// RunOutput is the result of one agent run
type RunOutput struct {
	Content string          `json:"content"`
	Audio   []AudioArtifact `json:"audio,omitempty"`
}

// GenerationResult holds the fetched audio payload before it is persisted
type GenerationResult struct {
	AudioURL    string `json:"audio_url"`
	RawBytes    []byte `json:"-"`
	ContentType string `json:"content_type"`
}

// PersistedAudio is a generated MP3 written under the save directory
type PersistedAudio struct {
	Path         string    `json:"-"`
	Filename     string    `json:"filename"`
	DownloadName string    `json:"download_name"`
	ContentType  string    `json:"content_type"`
	SizeBytes    int64     `json:"size_bytes"`
	Bytes        []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// GenerateRequest is the body of POST /v1/generations
type GenerateRequest struct {
	Credentials
	Prompt string `json:"prompt"`
}

// GenerateResponse is returned after a successful generation
type GenerateResponse struct {
	Filename     string `json:"filename"`
	DownloadName string `json:"download_name"`
	AudioURL     string `json:"audio_url"`
	DownloadURL  string `json:"download_url"`
	SourceURL    string `json:"source_url"`
	ContentType  string `json:"content_type"`
	SizeBytes    int64  `json:"size_bytes"`
	Size         string `json:"size"`
	Message      string `json:"message"`
}

// ErrorResponse is returned when a generation fails
type ErrorResponse struct {
	Error       string `json:"error"`
	Code        string `json:"code"`
	Detail      string `json:"detail,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	AudioURL    string `json:"audio_url,omitempty"`
}

// GenerationEvent is published after each generation attempt
type GenerationEvent struct {
	ID         uuid.UUID `json:"id"`
	Event      string    `json:"event"` // generation_succeeded, generation_failed
	Filename   string    `json:"filename,omitempty"`
	SizeBytes  int64     `json:"size_bytes,omitempty"`
	ErrorCode  string    `json:"error_code,omitempty"`
	Duration   float64   `json:"duration_seconds"`
	OccurredAt time.Time `json:"occurred_at"`
}
