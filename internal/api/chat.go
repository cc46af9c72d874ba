package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/parleyhq/parley/internal/turn"
)

// maxChatBodyBytes caps the request body to keep a single request from
// holding the server's memory hostage.
const maxChatBodyBytes = 64 * 1024

// chatRequest is the wire shape of a chat turn request.
type chatRequest struct {
	Message string `json:"message"`
}

// promptRequest is the wire shape of a direct-prompt request.
type promptRequest struct {
	Prompt string `json:"prompt"`
}

// chatHandler serves the turn boundary over HTTP.
type chatHandler struct {
	orchestrator *turn.Orchestrator
	logger       *slog.Logger
}

// send handles POST /api/chat.
//
// Transport-level problems (wrong content type, unreadable body) get
// structured 4xx errors. Turn-level outcomes, including the empty-message
// rejection and the generic internal-failure string, always ride in a 200
// body as {response} or {error}, matching the client contract.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	result := h.orchestrator.Send(r.Context(), req.Message)
	writeJSON(w, http.StatusOK, result, h.logger)
}

// sendPrompt handles POST /api/prompt: one toolless generation round,
// with the same transport and body contracts as send.
func (h *chatHandler) sendPrompt(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	result := h.orchestrator.SendDirect(r.Context(), req.Prompt)
	writeJSON(w, http.StatusOK, result, h.logger)
}

// decodeBody enforces the JSON transport contract and decodes the request
// body into dst. It writes the error response and returns false on failure.
func (h *chatHandler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			writeError(w, http.StatusUnsupportedMediaType, "unsupported_media_type",
				"Content-Type must be application/json", h.logger)
			return false
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large",
				"request body too large", h.logger)
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid_body",
			"invalid request body", h.logger)
		return false
	}
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, r.Body)

	return true
}
