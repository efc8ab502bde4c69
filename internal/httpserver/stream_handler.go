package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lumenchat/lumenchat/internal/chat"
	"github.com/lumenchat/lumenchat/internal/modelmeta"
	"github.com/lumenchat/lumenchat/internal/provider/registry"
	"github.com/lumenchat/lumenchat/internal/stream"
)

// streamErrorCode is the fixed code carried by every wire-level error event.
const streamErrorCode = "STREAM_ERROR"

// Bounds applied to the tunable generation parameters.
const (
	maxMaxTokens   = 32000
	maxTemperature = 2.0
)

// streamRequest is the JSON body of POST /api/v1/chats/stream.
type streamRequest struct {
	ChatID          string  `json:"chatId,omitempty"`
	PromptID        string  `json:"promptId,omitempty"`
	Message         string  `json:"message"`
	Model           string  `json:"model"`
	MaxTokens       int     `json:"maxTokens"`
	Temperature     float64 `json:"temperature"`
	Provider        string  `json:"provider"`
	FileKey         string  `json:"fileKey,omitempty"`
	WebSearch       bool    `json:"webSearch"`
	ImageGeneration bool    `json:"imageGeneration"`
}

// wireEvent is the SSE payload shape: {"type": ..., "data": ...}.
type wireEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type doneData struct {
	ChatID       string `json:"chatId"`
	InputTokens  int    `json:"inputTokens"`
	OutputTokens int    `json:"outputTokens"`
	Title        string `json:"title,omitempty"`
	ImageURL     string `json:"imageUrl,omitempty"`
}

type errorData struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// handleStream runs one streaming turn. Resolution failures surface as plain
// HTTP errors; once the stream headers are committed every outcome arrives as
// a wire event and the response always ends with exactly one terminal event.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		writeJSONError(w, http.StatusUnauthorized, "missing "+userIDHeader+" header")
		return
	}

	var body streamRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Message == "" {
		writeJSONError(w, http.StatusBadRequest, "message is required")
		return
	}
	if body.ChatID != "" && body.PromptID != "" {
		writeJSONError(w, http.StatusBadRequest, "chatId and promptId are mutually exclusive")
		return
	}
	if body.ChatID == "" && body.Model == "" {
		writeJSONError(w, http.StatusBadRequest, "model is required for a new chat")
		return
	}
	if body.Provider == "" {
		writeJSONError(w, http.StatusBadRequest, "provider is required")
		return
	}
	if body.MaxTokens < 0 || body.MaxTokens > maxMaxTokens {
		writeJSONError(w, http.StatusBadRequest, "maxTokens out of range")
		return
	}
	if body.Temperature < 0 || body.Temperature > maxTemperature {
		writeJSONError(w, http.StatusBadRequest, "temperature out of range")
		return
	}
	if body.WebSearch && body.ImageGeneration {
		writeJSONError(w, http.StatusBadRequest, "webSearch and imageGeneration are mutually exclusive")
		return
	}

	turn, err := s.orch.Prepare(r.Context(), stream.Request{
		UserID:          userID,
		ChatID:          body.ChatID,
		PromptID:        body.PromptID,
		Text:            body.Message,
		Model:           body.Model,
		MaxTokens:       body.MaxTokens,
		Temperature:     body.Temperature,
		Provider:        body.Provider,
		FileKey:         body.FileKey,
		WebSearch:       body.WebSearch,
		ImageGeneration: body.ImageGeneration,
	})
	if err != nil {
		s.logf("stream prepare: %v", err)
		switch {
		case errors.Is(err, chat.ErrNotFound),
			errors.Is(err, chat.ErrPromptNotFound),
			errors.Is(err, modelmeta.ErrUnknownModel),
			errors.Is(err, registry.ErrNotFound):
			writeJSONError(w, http.StatusNotFound, err.Error())
		default:
			writeJSONError(w, http.StatusInternalServerError, "failed to start stream")
		}
		return
	}

	enc := newSSEEncoder(w)
	enc.open()

	if s.isDebug() {
		s.logf("stream start chat=%s provider=%s", turn.ChatID(), body.Provider)
	}

	ch := make(chan stream.Event, 16)
	go turn.Run(r.Context(), ch)

	for ev := range ch {
		switch ev := ev.(type) {
		case stream.Delta:
			enc.write(wireEvent{Type: "delta", Data: ev.Text})
		case stream.Done:
			enc.write(wireEvent{Type: "done", Data: doneData{
				ChatID:       ev.ChatID,
				InputTokens:  ev.InputTokens,
				OutputTokens: ev.OutputTokens,
				Title:        ev.Title,
				ImageURL:     ev.ImageURL,
			}})
		case stream.Failure:
			s.logf("stream failed chat=%s: %v", turn.ChatID(), ev.Err)
			msg := "stream failed"
			if ev.Err != nil {
				msg = ev.Err.Error()
			}
			enc.write(wireEvent{Type: "error", Data: errorData{Message: msg, Code: streamErrorCode}})
		}
	}
}

// sseEncoder owns one outbound event stream: response headers, per-event
// serialization, and eager flushing so the client sees bytes immediately.
type sseEncoder struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEEncoder(w http.ResponseWriter) *sseEncoder {
	flusher, _ := w.(http.Flusher)
	return &sseEncoder{w: w, flusher: flusher}
}

// open commits the stream headers and flushes them before any event is
// produced, confirming the connection to the client.
func (e *sseEncoder) open() {
	h := e.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	e.w.WriteHeader(http.StatusOK)
	e.flush()
}

// write serializes one event as a single JSON line terminated by a blank line.
func (e *sseEncoder) write(ev wireEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_, _ = e.w.Write(append(b, '\n', '\n'))
	e.flush()
}

func (e *sseEncoder) flush() {
	if e.flusher != nil {
		e.flusher.Flush()
	}
}
