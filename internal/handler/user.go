package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/wifigate/wifigate/internal/audit"
	"github.com/wifigate/wifigate/internal/model"
	"github.com/wifigate/wifigate/internal/server/middleware"
	"github.com/wifigate/wifigate/internal/store"
)

// UserHandler manages hotspot user accounts, the customers who buy access.
type UserHandler struct {
	store    *store.Store
	recorder *audit.Recorder
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(st *store.Store, recorder *audit.Recorder) *UserHandler {
	return &UserHandler{store: st, recorder: recorder}
}

// List returns hotspot users with limit/offset pagination.
// GET /api/v1/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := clampInt(queryInt(r, "limit", 50), 1, 500)
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	users, err := h.store.ListUsers(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, model.CodeInternalError, "Failed to list users")
		return
	}
	total, err := h.store.CountUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, model.CodeInternalError, "Failed to count users")
		return
	}

	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: users,
		Meta: &model.ResponseMeta{
			Count:  len(users),
			Total:  &total,
			Limit:  limit,
			Offset: offset,
		},
	})
}

type createUserRequest struct {
	Username  string     `json:"username"`
	FullName  string     `json:"full_name"`
	Phone     string     `json:"phone"`
	Profile   string     `json:"profile"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Create adds a new hotspot user.
// POST /api/v1/users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, model.CodeInvalidRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, model.CodeInvalidRequest, "Username is required")
		return
	}
	if req.Profile == "" {
		writeError(w, http.StatusBadRequest, model.CodeInvalidRequest, "Profile is required")
		return
	}

	if _, err := h.store.GetUserByUsername(r.Context(), req.Username); err == nil {
		writeError(w, http.StatusConflict, model.CodeConflict, "Username already exists: "+req.Username)
		return
	}

	user := &model.HotspotUser{
		Username:  req.Username,
		FullName:  req.FullName,
		Phone:     req.Phone,
		Profile:   req.Profile,
		IsActive:  true,
		ExpiresAt: req.ExpiresAt,
	}
	if err := h.store.CreateUser(r.Context(), user); err != nil {
		writeError(w, http.StatusInternalServerError, model.CodeInternalError, "Failed to create user")
		return
	}

	h.audit(r, user.ID, "ok")
	writeJSON(w, http.StatusCreated, user)
}

// Get returns a single hotspot user by ID.
// GET /api/v1/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	user, err := h.store.GetUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, model.CodeNotFound, "User not found")
			return
		}
		writeError(w, http.StatusInternalServerError, model.CodeInternalError, "Failed to get user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type updateUserRequest struct {
	FullName  *string    `json:"full_name"`
	Phone     *string    `json:"phone"`
	Profile   *string    `json:"profile"`
	IsActive  *bool      `json:"is_active"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// Update modifies a hotspot user.
// PUT /api/v1/users/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	existing, err := h.store.GetUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, model.CodeNotFound, "User not found")
			return
		}
		writeError(w, http.StatusInternalServerError, model.CodeInternalError, "Failed to get user")
		return
	}

	var req updateUserRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, model.CodeInvalidRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.FullName != nil {
		existing.FullName = *req.FullName
	}
	if req.Phone != nil {
		existing.Phone = *req.Phone
	}
	if req.Profile != nil {
		existing.Profile = *req.Profile
	}
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}
	if req.ExpiresAt != nil {
		existing.ExpiresAt = req.ExpiresAt
	}

	if err := h.store.UpdateUser(r.Context(), existing); err != nil {
		writeError(w, http.StatusInternalServerError, model.CodeInternalError, "Failed to update user")
		return
	}

	h.audit(r, existing.ID, "ok")
	writeJSON(w, http.StatusOK, existing)
}

// Delete removes a hotspot user.
// DELETE /api/v1/users/{id}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteUser(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, model.CodeNotFound, "User not found")
			return
		}
		writeError(w, http.StatusInternalServerError, model.CodeInternalError, "Failed to delete user")
		return
	}

	h.audit(r, id, "ok")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "User deleted",
	})
}

func (h *UserHandler) audit(r *http.Request, targetID int64, outcome string) {
	var actorID int64
	if claims := middleware.GetClaims(r.Context()); claims != nil {
		actorID = claims.UserID
	}
	h.recorder.Record(model.AuditEntry{
		ActorID:    actorID,
		Action:     string(model.ActionManageUsers),
		TargetType: "hotspot_user",
		TargetID:   strconv.FormatInt(targetID, 10),
		Outcome:    outcome,
		RequestID:  middleware.GetRequestID(r.Context()),
	})
}
