package handler

import (
	"net/http"

	"github.com/wifigate/wifigate/internal/audit"
	"github.com/wifigate/wifigate/internal/auth"
	"github.com/wifigate/wifigate/internal/model"
	"github.com/wifigate/wifigate/internal/server/middleware"
)

// AuthHandler serves the session lifecycle: login, refresh, logout, and the
// current-identity probe.
type AuthHandler struct {
	tokens   *auth.TokenService
	recorder *audit.Recorder
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(tokens *auth.TokenService, recorder *audit.Recorder) *AuthHandler {
	return &AuthHandler{tokens: tokens, recorder: recorder}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	*auth.TokenPair
	User adminView `json:"user"`
}

// Login authenticates an admin and returns a token pair.
// POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, model.CodeInvalidRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, model.CodeInvalidRequest, "Username and password are required")
		return
	}

	admin, err := h.tokens.VerifyCredentials(r.Context(), req.Username, req.Password)
	if err != nil {
		// One message for unknown user, bad password, and disabled account:
		// login failures must not leak which part was wrong.
		writeError(w, http.StatusUnauthorized, model.CodeAuthFailed, "Invalid username or password")
		return
	}

	pair, err := h.tokens.Issue(r.Context(), admin)
	if err != nil {
		writeError(w, http.StatusInternalServerError, model.CodeInternalError, "Failed to issue tokens")
		return
	}

	h.recorder.Record(model.AuditEntry{
		ActorID:   admin.ID,
		Action:    "auth.login",
		Outcome:   "ok",
		RequestID: middleware.GetRequestID(r.Context()),
	})

	writeJSON(w, http.StatusOK, loginResponse{TokenPair: pair, User: toAdminView(admin)})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh rotates a refresh token into a fresh pair.
// POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := readJSON(r, &req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, model.CodeInvalidRequest, "refresh_token is required")
		return
	}

	pair, err := h.tokens.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		// Every refresh failure, expiry included, answers INVALID_TOKEN: the
		// client's only recourse is a fresh login, and distinguishing the
		// cases would leak token state. TOKEN_EXPIRED is reserved for access
		// tokens, where it drives the silent refresh path.
		writeError(w, http.StatusUnauthorized, model.CodeInvalidToken, "Invalid refresh token")
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Logout revokes the presented refresh token. It always answers 200: the
// client clears local state regardless, and an unknown token has nothing
// left to revoke.
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := readJSON(r, &req); err == nil && req.RefreshToken != "" {
		_ = h.tokens.Revoke(r.Context(), req.RefreshToken)
	}

	if claims := middleware.GetClaims(r.Context()); claims != nil {
		h.recorder.Record(model.AuditEntry{
			ActorID:   claims.UserID,
			Action:    "auth.logout",
			Outcome:   "ok",
			RequestID: middleware.GetRequestID(r.Context()),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Session ended",
	})
}

// Me returns the token payload of the authenticated caller.
// GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, model.CodeAuthRequired, "Authentication required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"userId":   claims.UserID,
		"username": claims.Username,
		"email":    claims.Email,
		"role":     claims.Role,
	})
}
