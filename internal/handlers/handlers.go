package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/musicgen/internal/models"
	"github.com/snappy-loop/musicgen/internal/music"
	"github.com/snappy-loop/musicgen/internal/retrieval"
	"github.com/snappy-loop/musicgen/internal/storage"
)

// maxGenerationRequestBytes caps the JSON body of POST /v1/generations.
const maxGenerationRequestBytes = 64 << 10

// generator is the subset of music.Generator used by handlers.
type generator interface {
	Generate(ctx context.Context, creds models.Credentials, prompt string) (*music.Result, error)
}

// audioStore is the subset of storage.Disk used by handlers.
type audioStore interface {
	Open(filename string) (io.ReadSeekCloser, os.FileInfo, error)
}

// Handler contains all HTTP handlers
type Handler struct {
	generator     generator
	store         audioStore
	defaultPrompt string
}

// NewHandler creates a new handler
func NewHandler(gen generator, store audioStore, defaultPrompt string) *Handler {
	return &Handler{
		generator:     gen,
		store:         store,
		defaultPrompt: defaultPrompt,
	}
}

// Router registers all routes on a new mux router.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", h.Index).Methods("GET")
	r.HandleFunc("/healthz", h.Health).Methods("GET")
	r.HandleFunc("/audio/{filename}", h.Audio).Methods("GET")
	r.HandleFunc("/audio/{filename}/download", h.DownloadAudio).Methods("GET")

	api := r.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/generations", h.CreateGeneration).Methods("POST")
	api.HandleFunc("/generations/ws", h.GenerationsWS).Methods("GET")
	return r
}

// Index serves GET /, the generator page.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct{ DefaultPrompt string }{DefaultPrompt: h.defaultPrompt}
	if err := executeTemplate(w, "index", data); err != nil {
		log.Error().Err(err).Msg("Failed to render index")
	}
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateGeneration handles POST /v1/generations
func (h *Handler) CreateGeneration(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxGenerationRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, errResp := h.generate(r.Context(), &req)
	if errResp != nil {
		writeJSON(w, statusForCode(errResp.Code), errResp)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// generate runs one generation and shapes the outcome for JSON and WebSocket clients.
func (h *Handler) generate(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, *models.ErrorResponse) {
	res, err := h.generator.Generate(ctx, req.Credentials, req.Prompt)
	if err != nil {
		return nil, errorResponse(err)
	}
	a := res.Audio
	return &models.GenerateResponse{
		Filename:     a.Filename,
		DownloadName: a.DownloadName,
		AudioURL:     "/audio/" + a.Filename,
		DownloadURL:  "/audio/" + a.Filename + "/download",
		SourceURL:    res.SourceURL,
		ContentType:  a.ContentType,
		SizeBytes:    a.SizeBytes,
		Size:         humanize.Bytes(uint64(a.SizeBytes)),
		Message:      "Music generated successfully!",
	}, nil
}

// Audio handles GET /audio/{filename} for inline playback
func (h *Handler) Audio(w http.ResponseWriter, r *http.Request) {
	h.serveAudio(w, r, false)
}

// DownloadAudio handles GET /audio/{filename}/download
func (h *Handler) DownloadAudio(w http.ResponseWriter, r *http.Request) {
	h.serveAudio(w, r, true)
}

func (h *Handler) serveAudio(w http.ResponseWriter, r *http.Request, attachment bool) {
	filename := mux.Vars(r)["filename"]
	f, info, err := h.store.Open(filename)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "audio not found")
			return
		}
		log.Error().Err(err).Str("filename", filename).Msg("Failed to open audio")
		writeJSONError(w, http.StatusInternalServerError, "failed to open audio")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", models.PlaybackMimeType)
	if attachment {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", models.DownloadName))
	}
	http.ServeContent(w, r, filename, info.ModTime(), f)
}

func errorResponse(err error) *models.ErrorResponse {
	code := music.Code(err)
	resp := &models.ErrorResponse{Code: code, Error: userMessage(code)}
	switch code {
	case music.CodeGenerationFailed:
		resp.Detail = err.Error()
	case music.CodeDownloadFailed:
		var se *retrieval.StatusError
		if errors.As(err, &se) {
			resp.Error = fmt.Sprintf("Download failed: HTTP %d", se.StatusCode)
		} else {
			resp.Detail = err.Error()
		}
	case music.CodeInvalidContentType:
		var cte *retrieval.ContentTypeError
		if errors.As(err, &cte) {
			resp.ContentType = cte.ContentType
			resp.AudioURL = cte.URL
		}
	}
	return resp
}

func userMessage(code string) string {
	switch code {
	case music.CodeMissingCredentials:
		return "Please enter BOTH the LLM and ModelsLab API keys to use the app."
	case music.CodeEmptyPrompt:
		return "Please enter a prompt first."
	case music.CodeNoAudioReturned:
		return "No audio was returned from ModelsLab."
	case music.CodeDownloadFailed:
		return "Download failed."
	case music.CodeInvalidContentType:
		return "Invalid file type returned."
	default:
		return "An unexpected error occurred."
	}
}

func statusForCode(code string) int {
	switch code {
	case music.CodeMissingCredentials, music.CodeEmptyPrompt:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
