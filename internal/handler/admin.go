package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/chat-wrapper/internal/apperror"
	"github.com/sakif/chat-wrapper/internal/auth"
	"github.com/sakif/chat-wrapper/internal/service"
)

// AdminHandler manages user accounts. Routes are mounted behind
// auth.RequireAdmin.
type AdminHandler struct {
	admin  *service.AdminService
	logger *slog.Logger
}

func NewAdminHandler(admin *service.AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, logger: logger}
}

type usersResponse struct {
	Users []userResponse `json:"users"`
}

// HandleListUsers returns every account.
//
// HTTP: GET /api/admin/users
func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.admin.ListUsers(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]userResponse, 0, len(users))
	for i := range users {
		out = append(out, toUserResponse(&users[i]))
	}
	writeJSON(w, http.StatusOK, usersResponse{Users: out})
}

type createUserRequest struct {
	ID          string `json:"id"`
	LoginName   string `json:"loginName"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
	IsAdmin     bool   `json:"isAdmin"`
}

// HandleCreateUser adds an account.
//
// HTTP: POST /api/admin/users
// REQUEST BODY: {"loginName": "bob", "displayName": "Bob", "password": "...", "isAdmin": false}
// RESPONSE: 201 {"user": {...}}
func (h *AdminHandler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.LoginName == "" {
		req.LoginName = req.Username
	}

	user, err := h.admin.CreateUser(r.Context(), service.CreateUserInput{
		ID:          req.ID,
		LoginName:   req.LoginName,
		DisplayName: req.DisplayName,
		Password:    req.Password,
		IsAdmin:     req.IsAdmin,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, userEnvelope{User: toUserResponse(user)})
}

// HandleDeleteUser removes an account and its sessions.
//
// HTTP: DELETE /api/admin/users/{id}
func (h *AdminHandler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized("Not authenticated"))
		return
	}

	if err := h.admin.DeleteUser(r.Context(), actor.ID, r.PathValue("id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
