package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wifigate/wifigate/internal/audit"
	"github.com/wifigate/wifigate/internal/auth"
	"github.com/wifigate/wifigate/internal/model"
	"github.com/wifigate/wifigate/internal/server/middleware"
	"github.com/wifigate/wifigate/internal/store"
)

// AdminHandler manages admin accounts.
type AdminHandler struct {
	store    *store.Store
	tokens   *auth.TokenService
	recorder *audit.Recorder
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(st *store.Store, tokens *auth.TokenService, recorder *audit.Recorder) *AdminHandler {
	return &AdminHandler{store: st, tokens: tokens, recorder: recorder}
}

// adminView is the serialized form of an admin account. The password hash
// never leaves the server.
type adminView struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Role        model.Role `json:"role"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toAdminView(a *model.AdminUser) adminView {
	return adminView{
		ID:          a.ID,
		Username:    a.Username,
		Email:       a.Email,
		Role:        a.Role,
		IsActive:    a.IsActive,
		LastLoginAt: a.LastLoginAt,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

// List returns all admin accounts.
// GET /api/v1/admins
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	admins, err := h.store.ListAdmins(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, model.CodeInternalError, "Failed to list admins")
		return
	}

	resources := make([]adminView, 0, len(admins))
	for i := range admins {
		resources = append(resources, toAdminView(&admins[i]))
	}
	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: resources,
		Meta:     &model.ResponseMeta{Count: len(resources)},
	})
}

type createAdminRequest struct {
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
}

// Create adds a new admin account.
// POST /api/v1/admins
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAdminRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, model.CodeInvalidRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Username == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, model.CodeInvalidRequest, "Username and email are required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, model.CodeInvalidRequest, "Password must be at least 8 characters")
		return
	}
	if req.Role == "" {
		req.Role = model.RoleAdmin
	}
	if !req.Role.Valid() {
		writeError(w, http.StatusBadRequest, model.CodeInvalidRequest, "Unknown role: "+string(req.Role))
		return
	}

	if _, err := h.store.GetAdminByUsername(r.Context(), req.Username); err == nil {
		writeError(w, http.StatusConflict, model.CodeConflict, "Username already exists: "+req.Username)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, model.CodeInternalError, "Failed to hash password")
		return
	}

	admin := &model.AdminUser{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
		IsActive:     true,
	}
	if err := h.store.CreateAdmin(r.Context(), admin); err != nil {
		writeError(w, http.StatusInternalServerError, model.CodeInternalError, "Failed to create admin")
		return
	}

	h.audit(r, model.ActionCreateAdmin, admin.ID, "ok")
	writeJSON(w, http.StatusCreated, toAdminView(admin))
}

// Get returns a single admin account by ID.
// GET /api/v1/admins/{id}
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	admin, err := h.store.GetAdmin(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, model.CodeNotFound, "Admin not found")
			return
		}
		writeError(w, http.StatusInternalServerError, model.CodeInternalError, "Failed to get admin")
		return
	}
	writeJSON(w, http.StatusOK, toAdminView(admin))
}

type updateAdminRequest struct {
	Email    *string     `json:"email"`
	Password *string     `json:"password"`
	Role     *model.Role `json:"role"`
	IsActive *bool       `json:"is_active"`
}

// Update modifies an admin account. Any admin may update their own email
// and password through the ownership path; changing role or active status
// stays a super_admin action even on one's own account.
// PUT /api/v1/admins/{id}
func (h *AdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, model.CodeAuthRequired, "Authentication required")
		return
	}

	existing, err := h.store.GetAdmin(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, model.CodeNotFound, "Admin not found")
			return
		}
		writeError(w, http.StatusInternalServerError, model.CodeInternalError, "Failed to get admin")
		return
	}

	var req updateAdminRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, model.CodeInvalidRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Role != nil && *req.Role != existing.Role {
		if !auth.HasPermission(claims.Role, model.RoleSuperAdmin) {
			writeJSON(w, http.StatusForbidden, model.ErrorResponse{Error: model.ErrorDetail{
				Message:  "Only a super admin can change roles",
				Code:     model.CodeActionNotPermitted,
				Action:   model.ActionChangeRole,
				UserRole: claims.Role,
			}})
			return
		}
		if !req.Role.Valid() {
			writeError(w, http.StatusBadRequest, model.CodeInvalidRequest, "Unknown role: "+string(*req.Role))
			return
		}
		existing.Role = *req.Role
	}
	if req.IsActive != nil && *req.IsActive != existing.IsActive {
		if !auth.HasPermission(claims.Role, model.RoleSuperAdmin) {
			writeJSON(w, http.StatusForbidden, model.ErrorResponse{Error: model.ErrorDetail{
				Message:  "Only a super admin can change account status",
				Code:     model.CodeActionNotPermitted,
				Action:   model.ActionUpdateAdmin,
				UserRole: claims.Role,
			}})
			return
		}
		existing.IsActive = *req.IsActive
	}
	if req.Email != nil {
		existing.Email = *req.Email
	}
	if req.Password != nil {
		if len(*req.Password) < 8 {
			writeError(w, http.StatusBadRequest, model.CodeInvalidRequest, "Password must be at least 8 characters")
			return
		}
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			writeError(w, http.StatusInternalServerError, model.CodeInternalError, "Failed to hash password")
			return
		}
		existing.PasswordHash = hash
	}

	if err := h.store.UpdateAdmin(r.Context(), existing); err != nil {
		writeError(w, http.StatusInternalServerError, model.CodeInternalError, "Failed to update admin")
		return
	}

	h.audit(r, model.ActionUpdateAdmin, existing.ID, "ok")
	writeJSON(w, http.StatusOK, toAdminView(existing))
}

// Deactivate disables an admin account and revokes its refresh tokens so
// sessions end at the next access-token expiry.
// DELETE /api/v1/admins/{id}
func (h *AdminHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if claims := middleware.GetClaims(r.Context()); claims != nil && claims.UserID == id {
		writeError(w, http.StatusBadRequest, model.CodeInvalidRequest, "You cannot deactivate your own account")
		return
	}

	if err := h.store.DeactivateAdmin(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, model.CodeNotFound, "Admin not found")
			return
		}
		writeError(w, http.StatusInternalServerError, model.CodeInternalError, "Failed to deactivate admin")
		return
	}
	if err := h.tokens.RevokeAllForAdmin(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, model.CodeInternalError, "Failed to revoke sessions")
		return
	}

	h.audit(r, model.ActionDeactivateAdmin, id, "ok")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Admin deactivated",
	})
}

func (h *AdminHandler) audit(r *http.Request, action model.Action, targetID int64, outcome string) {
	var actorID int64
	if claims := middleware.GetClaims(r.Context()); claims != nil {
		actorID = claims.UserID
	}
	h.recorder.Record(model.AuditEntry{
		ActorID:    actorID,
		Action:     string(action),
		TargetType: "admin",
		TargetID:   strconv.FormatInt(targetID, 10),
		Outcome:    outcome,
		RequestID:  middleware.GetRequestID(r.Context()),
	})
}

// pathID parses the {id} URL parameter, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, model.CodeInvalidRequest, "Invalid ID: "+idStr)
		return 0, false
	}
	return id, true
}
