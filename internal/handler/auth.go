package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/chat-wrapper/internal/apperror"
	"github.com/sakif/chat-wrapper/internal/auth"
	"github.com/sakif/chat-wrapper/internal/middleware"
	"github.com/sakif/chat-wrapper/internal/service"
)

// AuthHandler serves login, logout, the current-user lookup and password
// changes.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLogin          → check credentials, set the session cookie
//   - HandleLogout         → revoke the session, clear the cookie
//   - HandleMe             → return the logged-in user
//   - HandleChangePassword → rotate the password and reissue the cookie
type AuthHandler struct {
	auth    *service.AuthService
	cookies auth.CookieSettings
	logger  *slog.Logger
}

func NewAuthHandler(authSvc *service.AuthService, cookies auth.CookieSettings, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: authSvc, cookies: cookies, logger: logger}
}

type loginRequest struct {
	LoginName string `json:"loginName"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

// HandleLogin authenticates with login name and password.
//
// HTTP: POST /api/auth/login
// REQUEST BODY: {"loginName": "alice", "password": "..."}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.LoginName == "" {
		req.LoginName = req.Username
	}

	res, err := h.auth.Login(r.Context(), req.LoginName, req.Password, middleware.ClientIP(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	auth.SetSessionCookie(w, h.cookies, res.Session.Token)
	writeJSON(w, http.StatusOK, userEnvelope{User: toUserResponse(res.User)})
}

// HandleLogout revokes the caller's session and clears the cookie.
//
// HTTP: POST /api/auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), auth.TokenFromRequest(r)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	auth.ClearSessionCookie(w, h.cookies)
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// HandleMe returns the logged-in user.
//
// HTTP: GET /api/auth/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized("Not authenticated"))
		return
	}
	writeJSON(w, http.StatusOK, userEnvelope{User: toUserResponse(user)})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// HandleChangePassword verifies the current password and sets a new one.
// Every other session of the user is revoked; this request gets a fresh
// cookie so the caller stays logged in.
//
// HTTP: POST /api/auth/password
// REQUEST BODY: {"currentPassword": "...", "newPassword": "..."}
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized("Not authenticated"))
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.auth.ChangePassword(r.Context(), user.ID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	auth.SetSessionCookie(w, h.cookies, res.Session.Token)
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
