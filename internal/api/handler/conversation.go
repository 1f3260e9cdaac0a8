package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rensmac/sparq-chat/internal/api/middleware"
	"github.com/rensmac/sparq-chat/internal/api/response"
	"github.com/rensmac/sparq-chat/internal/domain"
	"github.com/rensmac/sparq-chat/internal/service"
)

// ConversationHandler serves persisted conversation snapshots
type ConversationHandler struct {
	convService *service.ConversationService
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(convService *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{convService: convService}
}

// List returns the authenticated user's conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	convs, err := h.convService.List(r.Context(), userID)
	if err != nil {
		response.InternalError(w, "failed to list conversations")
		return
	}
	if convs == nil {
		convs = []domain.Conversation{}
	}

	response.OK(w, map[string]any{"conversations": convs})
}

// Save upserts a conversation snapshot. Guests may save too; their
// snapshots stay ownerless until migrated into an account.
func (h *ConversationHandler) Save(w http.ResponseWriter, r *http.Request) {
	var input service.ConversationSave
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, validationMessages(err))
		return
	}

	var owner *uuid.UUID
	if userID, ok := middleware.GetUserID(r.Context()); ok {
		owner = &userID
	}

	if err := h.convService.Save(r.Context(), input, owner); err != nil {
		response.InternalError(w, "failed to save conversation")
		return
	}

	response.OK(w, map[string]string{"message": "saved"})
}

// Migrate adopts guest-era conversations into the authenticated account
func (h *ConversationHandler) Migrate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var input struct {
		Conversations []service.ConversationSave `json:"conversations"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	migrated, err := h.convService.Migrate(r.Context(), userID, input.Conversations)
	if err != nil {
		response.InternalError(w, "failed to migrate conversations")
		return
	}

	response.OK(w, map[string]any{"migrated": migrated})
}

// Delete removes a conversation snapshot
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")
	if id == "" {
		response.BadRequest(w, "missing conversation ID")
		return
	}

	if err := h.convService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrConversationNotFound) {
			response.NotFound(w, "conversation not found")
			return
		}
		response.InternalError(w, "failed to delete conversation")
		return
	}

	response.OK(w, map[string]string{"message": "deleted"})
}
