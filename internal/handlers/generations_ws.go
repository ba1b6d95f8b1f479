package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/musicgen/internal/models"
)

const (
	generationsWSReadLimit = 64 << 10
	generationsWSIdle      = 60 * time.Minute
	generationsWSQueue     = 8
)

var generationsWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// generationsWSInMessage is the JSON shape sent from the client.
type generationsWSInMessage struct {
	Type        string `json:"type"`
	LLMAPIKey   string `json:"llm_api_key"`
	MediaAPIKey string `json:"media_api_key"`
	Prompt      string `json:"prompt"`
}

// generationsWSOutMessage is the JSON shape sent to the client.
type generationsWSOutMessage struct {
	Type   string                   `json:"type"`             // status, result
	Status string                   `json:"status,omitempty"` // generating
	Result *models.GenerateResponse `json:"result,omitempty"`
	Error  *models.ErrorResponse    `json:"error,omitempty"`
}

// GenerationsWS handles GET /v1/generations/ws: one blocking generation per "generate"
// message, with a status frame sent before the call starts. A separate reader
// keeps watching the connection so a client disconnect cancels the running generation.
func (h *Handler) GenerationsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := generationsWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("generations ws upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(generationsWSReadLimit)
	conn.SetReadDeadline(time.Now().Add(generationsWSIdle))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(generationsWSIdle))
		return nil
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbox := make(chan []byte, generationsWSQueue)
	go func() {
		defer close(inbox)
		defer cancel()
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Debug().Err(err).Msg("generations ws read")
				}
				return
			}
			conn.SetReadDeadline(time.Now().Add(generationsWSIdle))
			select {
			case inbox <- raw:
			default:
				log.Warn().Msg("generations ws queue full, dropping message")
			}
		}
	}()

	for raw := range inbox {
		var in generationsWSInMessage
		if err := json.Unmarshal(raw, &in); err != nil {
			_ = writeWSJSON(conn, generationsWSOutMessage{Type: "result", Error: &models.ErrorResponse{Error: "invalid JSON: " + err.Error(), Code: "invalid_request"}})
			continue
		}
		if in.Type != "generate" {
			_ = writeWSJSON(conn, generationsWSOutMessage{Type: "result", Error: &models.ErrorResponse{Error: "expected type: generate", Code: "invalid_request"}})
			continue
		}

		req := &models.GenerateRequest{
			Credentials: models.Credentials{LLMAPIKey: in.LLMAPIKey, MediaAPIKey: in.MediaAPIKey},
			Prompt:      in.Prompt,
		}
		if req.Credentials.Ready() && strings.TrimSpace(req.Prompt) != "" {
			if err := writeWSJSON(conn, generationsWSOutMessage{Type: "status", Status: "generating"}); err != nil {
				log.Debug().Err(err).Msg("generations ws write")
				return
			}
		}

		resp, errResp := h.generate(ctx, req)
		if ctx.Err() != nil {
			log.Info().Msg("generations ws client gone, generation cancelled")
			return
		}
		if err := writeWSJSON(conn, generationsWSOutMessage{Type: "result", Result: resp, Error: errResp}); err != nil {
			log.Debug().Err(err).Msg("generations ws write")
			return
		}
	}
}

func writeWSJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
	return conn.WriteJSON(v)
}
