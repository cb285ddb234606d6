package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/chat-wrapper/internal/apperror"
	"github.com/sakif/chat-wrapper/internal/auth"
	"github.com/sakif/chat-wrapper/internal/model"
	"github.com/sakif/chat-wrapper/internal/service"
)

// ChatHandler serves the chat turn plus the history and usage views.
// Routes are mounted behind auth.RequireAuth.
type ChatHandler struct {
	chat   *service.ChatService
	logger *slog.Logger
}

func NewChatHandler(chat *service.ChatService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, logger: logger}
}

type chatRequest struct {
	Message string `json:"message"`
}

// HandleChat runs one chat turn.
//
// HTTP: POST /api/chat
// REQUEST BODY: {"message": "hello"}
// RESPONSE: {"reply": "...", "usage": {...}, "estimatedCostUsd": 0.000045}
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized("Not authenticated"))
		return
	}

	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	reply, err := h.chat.Send(r.Context(), user, req.Message)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

type historyResponse struct {
	UserID   string              `json:"userId"`
	Messages []model.ChatMessage `json:"messages"`
}

// HandleHistory returns the most recent messages, oldest first.
//
// HTTP: GET /api/history
func (h *ChatHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized("Not authenticated"))
		return
	}

	messages, err := h.chat.History(r.Context(), user.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{UserID: user.ID, Messages: messages})
}

type usageResponse struct {
	UserID  string           `json:"userId"`
	Summary []model.UsageDay `json:"summary"`
}

// HandleUsage returns per-day token and cost totals, newest first.
//
// HTTP: GET /api/usage
func (h *ChatHandler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized("Not authenticated"))
		return
	}

	summary, err := h.chat.UsageSummary(r.Context(), user.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, usageResponse{UserID: user.ID, Summary: summary})
}
