package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wifigate/wifigate/internal/auth"
	"github.com/wifigate/wifigate/internal/model"
)

type contextKeyAuth string

// AuthClaimsKey is the context key for the authenticated token payload.
const AuthClaimsKey contextKeyAuth = "auth_claims"

// Authenticate returns an HTTP middleware that validates the Bearer access
// token in the Authorization header. On success the token payload is
// attached to the request context; on failure a 401 JSON error with a
// machine-readable code is returned:
//
//	MISSING_AUTH_HEADER  no Authorization header at all
//	MISSING_TOKEN        Bearer scheme with an empty token segment
//	TOKEN_EXPIRED        valid token past its expiry
//	INVALID_TOKEN        anything else (bad signature, truncated, wrong alg)
//
// The expired/invalid distinction matters to clients: only TOKEN_EXPIRED
// triggers the silent refresh path.
func Authenticate(tokens *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeAuthError(w, http.StatusUnauthorized, model.ErrorDetail{
					Message: "Authorization header required",
					Code:    model.CodeMissingAuthHeader,
				})
				return
			}

			token := bearerToken(header)
			if token == "" {
				writeAuthError(w, http.StatusUnauthorized, model.ErrorDetail{
					Message: "Bearer token required",
					Code:    model.CodeMissingToken,
				})
				return
			}

			claims, err := tokens.VerifyAccessToken(token)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrTokenExpired):
					writeAuthError(w, http.StatusUnauthorized, model.ErrorDetail{
						Message: "Access token has expired",
						Code:    model.CodeTokenExpired,
					})
				case errors.Is(err, auth.ErrInvalidToken):
					writeAuthError(w, http.StatusUnauthorized, model.ErrorDetail{
						Message: "Invalid access token",
						Code:    model.CodeInvalidToken,
					})
				default:
					writeAuthError(w, http.StatusUnauthorized, model.ErrorDetail{
						Message: "Authentication failed",
						Code:    model.CodeAuthFailed,
					})
				}
				return
			}

			ctx := context.WithValue(r.Context(), AuthClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth is like Authenticate but never rejects: any defect in the
// header or token just passes the request through anonymously.
func OptionalAuth(tokens *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))
			if token != "" {
				if claims, err := tokens.VerifyAccessToken(token); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), AuthClaimsKey, claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole returns a middleware that enforces a minimum role. It must
// run after Authenticate; without a payload it answers 401 AUTH_REQUIRED.
func RequireRole(required model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())
			if claims == nil {
				writeAuthRequired(w)
				return
			}
			if !auth.HasPermission(claims.Role, required) {
				writeAuthError(w, http.StatusForbidden, model.ErrorDetail{
					Message:  "Insufficient permissions",
					Code:     model.CodeInsufficientPermissions,
					Required: required,
					Current:  claims.Role,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission returns a middleware that enforces an action through
// the authorization policy. It must run after Authenticate.
func RequirePermission(action model.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())
			if claims == nil {
				writeAuthRequired(w)
				return
			}
			if !auth.CanPerformAction(claims.Role, action, 0, claims.UserID) {
				writeAuthError(w, http.StatusForbidden, model.ErrorDetail{
					Message:  "You do not have permission to perform this action",
					Code:     model.CodeActionNotPermitted,
					Action:   action,
					UserRole: claims.Role,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireOwnershipOrRole returns a middleware that allows the request when
// the URL parameter param names the caller's own account, or when the
// caller holds at least the given role. It must run after Authenticate.
func RequireOwnershipOrRole(param string, role model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())
			if claims == nil {
				writeAuthRequired(w)
				return
			}
			targetID, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
			if err == nil && targetID == claims.UserID {
				next.ServeHTTP(w, r)
				return
			}
			if auth.HasPermission(claims.Role, role) {
				next.ServeHTTP(w, r)
				return
			}
			writeAuthError(w, http.StatusForbidden, model.ErrorDetail{
				Message: "You can only access your own account",
				Code:    model.CodeOwnershipRequired,
			})
		})
	}
}

// bearerToken extracts the token from an Authorization header value. Only
// the Bearer scheme is accepted; anything else ("Basic ...", a missing
// space, a bare "Bearer") yields the empty string.
func bearerToken(header string) string {
	scheme, rest, _ := strings.Cut(header, " ")
	if scheme != "Bearer" {
		return ""
	}
	return strings.TrimSpace(rest)
}

// GetClaims extracts the authenticated token payload from the context.
// Returns nil for unauthenticated requests.
func GetClaims(ctx context.Context) *auth.Claims {
	if claims, ok := ctx.Value(AuthClaimsKey).(*auth.Claims); ok {
		return claims
	}
	return nil
}

func writeAuthRequired(w http.ResponseWriter) {
	writeAuthError(w, http.StatusUnauthorized, model.ErrorDetail{
		Message: "Authentication required",
		Code:    model.CodeAuthRequired,
	})
}

func writeAuthError(w http.ResponseWriter, status int, detail model.ErrorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.ErrorResponse{Error: detail}) //nolint:errcheck
}
