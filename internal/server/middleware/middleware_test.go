package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wifigate/wifigate/internal/auth"
	"github.com/wifigate/wifigate/internal/model"
	"github.com/wifigate/wifigate/internal/store"
)

func newTestTokens(t *testing.T, accessTTL time.Duration) (*auth.TokenService, *model.AdminUser) {
	t.Helper()
	st, err := store.Open(store.DriverSQLite, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	admin := &model.AdminUser{
		Username:     "staff",
		Email:        "staff@example.com",
		PasswordHash: "$2a$10$fakehash",
		Role:         model.RoleAdmin,
		IsActive:     true,
	}
	if err := st.CreateAdmin(context.Background(), admin); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	return auth.NewTokenService(st, "test-secret", accessTTL, time.Hour), admin
}

func issueAccessToken(t *testing.T, tokens *auth.TokenService, admin *model.AdminUser) string {
	t.Helper()
	pair, err := tokens.Issue(context.Background(), admin)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return pair.AccessToken
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) model.ErrorDetail {
	t.Helper()
	var resp model.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", rr.Body.String(), err)
	}
	return resp.Error
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// ---------------------------------------------------------------------------
// Authenticate middleware tests
// ---------------------------------------------------------------------------

func TestAuthenticateScenarios(t *testing.T) {
	tokens, admin := newTestTokens(t, 15*time.Minute)
	expiredTokens, _ := newTestTokens(t, -time.Minute)
	validToken := issueAccessToken(t, tokens, admin)

	tests := []struct {
		name     string
		header   string
		wantCode string
	}{
		{"no header", "", model.CodeMissingAuthHeader},
		{"bearer with empty token", "Bearer ", model.CodeMissingToken},
		{"bare bearer keyword", "Bearer", model.CodeMissingToken},
		{"wrong scheme", "Basic dXNlcjpwYXNz", model.CodeMissingToken},
		{"no space after scheme", "Bearerfoo", model.CodeMissingToken},
		{"garbage token", "Bearer not-a-token", model.CodeInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Authenticate(tokens)(okHandler())
			req := httptest.NewRequest("GET", "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rr.Code)
			}
			if got := decodeError(t, rr).Code; got != tt.wantCode {
				t.Errorf("code: got %q, want %q", got, tt.wantCode)
			}
		})
	}

	t.Run("expired token", func(t *testing.T) {
		expired := issueAccessToken(t, expiredTokens, admin)
		// Verify through the service that issued with the same secret.
		handler := Authenticate(tokens)(okHandler())
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+expired)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rr.Code)
		}
		if got := decodeError(t, rr).Code; got != model.CodeTokenExpired {
			t.Errorf("code: got %q, want %q", got, model.CodeTokenExpired)
		}
	})

	t.Run("valid token attaches claims", func(t *testing.T) {
		handler := Authenticate(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())
			if claims == nil {
				t.Fatal("expected claims in context")
			}
			if claims.UserID != admin.ID {
				t.Errorf("UserID: got %d, want %d", claims.UserID, admin.ID)
			}
			w.WriteHeader(http.StatusOK)
		}))
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+validToken)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rr.Code)
		}
	})
}

// ---------------------------------------------------------------------------
// OptionalAuth middleware tests
// ---------------------------------------------------------------------------

func TestOptionalAuthNeverRejects(t *testing.T) {
	tokens, admin := newTestTokens(t, 15*time.Minute)
	validToken := issueAccessToken(t, tokens, admin)

	headers := map[string]string{
		"no header":     "",
		"invalid token": "Bearer garbage",
		"empty bearer":  "Bearer ",
		"wrong scheme":  "Basic dXNlcjpwYXNz",
	}
	for name, header := range headers {
		t.Run(name, func(t *testing.T) {
			handler := OptionalAuth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if GetClaims(r.Context()) != nil {
					t.Error("expected anonymous pass-through")
				}
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest("GET", "/open", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != http.StatusOK {
				t.Errorf("expected 200, got %d", rr.Code)
			}
		})
	}

	t.Run("valid token still attaches claims", func(t *testing.T) {
		handler := OptionalAuth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetClaims(r.Context()) == nil {
				t.Error("expected claims for valid token")
			}
			w.WriteHeader(http.StatusOK)
		}))
		req := httptest.NewRequest("GET", "/open", nil)
		req.Header.Set("Authorization", "Bearer "+validToken)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rr.Code)
		}
	})
}

// ---------------------------------------------------------------------------
// RequireRole / RequirePermission middleware tests
// ---------------------------------------------------------------------------

func requestWithClaims(claims *auth.Claims) *http.Request {
	req := httptest.NewRequest("GET", "/admin", nil)
	if claims != nil {
		req = req.WithContext(context.WithValue(req.Context(), AuthClaimsKey, claims))
	}
	return req
}

func TestRequireRoleInsufficient(t *testing.T) {
	handler := RequireRole(model.RoleSuperAdmin)(okHandler())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, requestWithClaims(&auth.Claims{UserID: 1, Role: model.RoleAdmin}))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	detail := decodeError(t, rr)
	if detail.Code != model.CodeInsufficientPermissions {
		t.Errorf("code: got %q", detail.Code)
	}
	if detail.Required != model.RoleSuperAdmin {
		t.Errorf("required: got %q", detail.Required)
	}
	if detail.Current != model.RoleAdmin {
		t.Errorf("current: got %q", detail.Current)
	}
}

func TestRequireRoleAllowsSufficient(t *testing.T) {
	handler := RequireRole(model.RoleAdmin)(okHandler())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, requestWithClaims(&auth.Claims{UserID: 1, Role: model.RoleSuperAdmin}))
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
}

func TestRequireRoleUnauthenticated(t *testing.T) {
	handler := RequireRole(model.RoleAdmin)(okHandler())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, requestWithClaims(nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if got := decodeError(t, rr).Code; got != model.CodeAuthRequired {
		t.Errorf("code: got %q, want %q", got, model.CodeAuthRequired)
	}
}

func TestRequirePermissionDenied(t *testing.T) {
	handler := RequirePermission(model.ActionCreateAdmin)(okHandler())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, requestWithClaims(&auth.Claims{UserID: 1, Role: model.RoleAdmin}))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	detail := decodeError(t, rr)
	if detail.Code != model.CodeActionNotPermitted {
		t.Errorf("code: got %q", detail.Code)
	}
	if detail.Action != model.ActionCreateAdmin {
		t.Errorf("action: got %q", detail.Action)
	}
	if detail.UserRole != model.RoleAdmin {
		t.Errorf("userRole: got %q", detail.UserRole)
	}
}

func TestRequirePermissionAllowed(t *testing.T) {
	handler := RequirePermission(model.ActionManageUsers)(okHandler())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, requestWithClaims(&auth.Claims{UserID: 1, Role: model.RoleAdmin}))
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
}

// ---------------------------------------------------------------------------
// RequireOwnershipOrRole middleware tests
// ---------------------------------------------------------------------------

func TestRequireOwnershipOrRole(t *testing.T) {
	router := chi.NewRouter()
	router.With(RequireOwnershipOrRole("id", model.RoleSuperAdmin)).
		Get("/admins/{id}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

	do := func(path string, claims *auth.Claims) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", path, nil)
		if claims != nil {
			req = req.WithContext(context.WithValue(req.Context(), AuthClaimsKey, claims))
		}
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	if rr := do("/admins/7", &auth.Claims{UserID: 7, Role: model.RoleAdmin}); rr.Code != http.StatusOK {
		t.Errorf("own account: expected 200, got %d", rr.Code)
	}
	if rr := do("/admins/8", &auth.Claims{UserID: 7, Role: model.RoleSuperAdmin}); rr.Code != http.StatusOK {
		t.Errorf("super_admin on other account: expected 200, got %d", rr.Code)
	}

	rr := do("/admins/8", &auth.Claims{UserID: 7, Role: model.RoleAdmin})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("admin on other account: expected 403, got %d", rr.Code)
	}
	if got := decodeError(t, rr).Code; got != model.CodeOwnershipRequired {
		t.Errorf("code: got %q, want %q", got, model.CodeOwnershipRequired)
	}

	if rr := do("/admins/8", nil); rr.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated: expected 401, got %d", rr.Code)
	}
}

// ---------------------------------------------------------------------------
// RequestID middleware tests
// ---------------------------------------------------------------------------

func TestRequestIDGeneratesUUID(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetRequestID(r.Context()) == "" {
			t.Error("expected non-empty request ID in context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	respID := rr.Header().Get("X-Request-ID")
	if respID == "" {
		t.Error("expected X-Request-ID in response header")
	}
	// UUID v7 format check: 36 chars with dashes
	if len(respID) != 36 {
		t.Errorf("expected UUID-length request ID, got %q (len=%d)", respID, len(respID))
	}
}

func TestRequestIDPreservesClientID(t *testing.T) {
	clientID := "my-custom-trace-id-123"

	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := GetRequestID(r.Context()); id != clientID {
			t.Errorf("expected context ID %q, got %q", clientID, id)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", clientID)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if respID := rr.Header().Get("X-Request-ID"); respID != clientID {
		t.Errorf("expected response X-Request-ID %q, got %q", clientID, respID)
	}
}

func TestRequestIDReplacesOverlongClientID(t *testing.T) {
	handler := RequestID(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", 200))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	respID := rr.Header().Get("X-Request-ID")
	if len(respID) != 36 {
		t.Errorf("expected a generated UUID, got %q (len=%d)", respID, len(respID))
	}
}

func TestGetRequestIDEmptyContext(t *testing.T) {
	if id := GetRequestID(context.Background()); id != "" {
		t.Errorf("expected empty string from bare context, got %q", id)
	}
}

// ---------------------------------------------------------------------------
// Logger middleware tests
// ---------------------------------------------------------------------------

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil)) // info and above

	router := chi.NewRouter()
	router.Use(Logger(logger))
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/healthz", nil))
	if buf.Len() != 0 {
		t.Errorf("health probe should log at debug only, got %q", buf.String())
	}

	buf.Reset()
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/boom", nil))
	line := buf.String()
	if !strings.Contains(line, "level=ERROR") {
		t.Errorf("5xx should log at error level, got %q", line)
	}
	if !strings.Contains(line, "status=500") {
		t.Errorf("expected status field in log line, got %q", line)
	}
}
