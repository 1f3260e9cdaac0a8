package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rensmac/sparq-chat/internal/api/middleware"
	"github.com/rensmac/sparq-chat/internal/api/response"
	"github.com/rensmac/sparq-chat/internal/chat"
	"github.com/rensmac/sparq-chat/internal/domain"
	"github.com/rs/zerolog/log"
)

// ChatHandler serves the streaming turn endpoints. Replies travel as a
// plain text chunk stream; failures after the stream opened are reported
// in-band with the ERROR_SERVER prefix.
type ChatHandler struct {
	engine *chat.Engine
}

// NewChatHandler creates a new chat handler
func NewChatHandler(engine *chat.Engine) *ChatHandler {
	return &ChatHandler{engine: engine}
}

// Send handles a new chat message
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	h.stream(w, r, func(id chat.Identity, sink chat.Sink) error {
		return h.engine.Send(r.Context(), id, input.Message, sink)
	})
}

// Regenerate redoes the most recent exchange
func (h *ChatHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, func(id chat.Identity, sink chat.Sink) error {
		return h.engine.Regenerate(r.Context(), id, sink)
	})
}

// EditMessage rewrites an earlier user message and regenerates from there
func (h *ChatHandler) EditMessage(w http.ResponseWriter, r *http.Request) {
	var input struct {
		MessageIndex int    `json:"message_index"`
		NewText      string `json:"new_text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	h.stream(w, r, func(id chat.Identity, sink chat.Sink) error {
		return h.engine.EditAndResend(r.Context(), id, input.MessageIndex, input.NewText, sink)
	})
}

// stream runs a turn protocol, relaying chunks to the response as they
// arrive. The response is a continuous text stream, so the status is
// always 200 and errors are delivered as a single sentinel fragment.
func (h *ChatHandler) stream(w http.ResponseWriter, r *http.Request, run func(chat.Identity, chat.Sink) error) {
	id, ok := middleware.GetIdentity(r.Context())
	if !ok {
		response.InternalError(w, "identity not resolved")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		response.InternalError(w, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")

	wrote := false
	sink := func(chunk string) error {
		if _, err := io.WriteString(w, chunk); err != nil {
			return err
		}
		flusher.Flush()
		wrote = true
		return nil
	}

	if err := run(id, sink); err != nil {
		// The engine emits its own sentinel for mid-stream failures; only
		// precondition rejections reach here with nothing written yet.
		if !wrote {
			io.WriteString(w, chat.ErrorFragment(err))
		}
		log.Debug().Err(err).Str("session", id.Key).Msg("Turn failed")
	}
}

// SyncHistory replaces the live session history with a client-restored
// conversation, e.g. when the user reopens a persisted chat.
func (h *ChatHandler) SyncHistory(w http.ResponseWriter, r *http.Request) {
	var input struct {
		History []domain.Turn `json:"history"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	id, ok := middleware.GetIdentity(r.Context())
	if !ok {
		response.InternalError(w, "identity not resolved")
		return
	}

	h.engine.RestoreHistory(id, input.History)
	response.OK(w, map[string]string{"status": "synced"})
}

// Status reports the caller's identity class and remaining daily quota
func (h *ChatHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.GetIdentity(r.Context())
	if !ok {
		response.InternalError(w, "identity not resolved")
		return
	}

	remaining, err := h.engine.Remaining(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			response.Unauthorized(w, "account no longer exists")
			return
		}
		response.InternalError(w, "failed to read quota")
		return
	}

	data := map[string]any{
		"daily_limit": id.Ceiling,
		"remaining":   remaining,
	}
	if userID, authed := middleware.GetUserID(r.Context()); authed {
		username, _ := middleware.GetUsername(r.Context())
		data["authenticated"] = true
		data["user"] = map[string]any{
			"id":          userID,
			"username":    username,
			"is_verified": middleware.GetVerified(r.Context()),
		}
	} else {
		data["authenticated"] = false
	}

	response.OK(w, data)
}
