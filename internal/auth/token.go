package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wifigate/wifigate/internal/model"
	"github.com/wifigate/wifigate/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenRevoked       = errors.New("token revoked")
)

// Claims is the access-token payload. The role claim is authoritative for
// authorization decisions for the token's whole lifetime; role changes take
// effect at the next refresh.
type Claims struct {
	UserID   int64      `json:"user_id"`
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Role     model.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenPair is the result of a login or refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// TokenService issues and verifies access tokens and manages the refresh
// token rotation lifecycle. Verification is a pure function of
// (token, current time, signing secret); the only state it touches is the
// refresh-token table.
type TokenService struct {
	store      *store.Store
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenService creates a TokenService. A zero TTL falls back to 15
// minutes for access tokens and 7 days for refresh tokens. Negative TTLs
// are kept as given: they mint already-expired tokens, which tests use to
// exercise the expiry paths.
func NewTokenService(st *store.Store, secret string, accessTTL, refreshTTL time.Duration) *TokenService {
	if accessTTL == 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL == 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &TokenService{
		store:      st,
		secret:     []byte(secret),
		issuer:     "wifigate",
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// AccessTTL returns the configured access-token lifetime.
func (s *TokenService) AccessTTL() time.Duration {
	return s.accessTTL
}

// Issue mints a token pair for the given admin: a signed access token and
// an opaque refresh token whose hash is persisted in a fresh family.
func (s *TokenService) Issue(ctx context.Context, admin *model.AdminUser) (*TokenPair, error) {
	access, err := s.signAccessToken(admin)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	raw, err := GenerateOpaqueToken(32)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	record := &model.RefreshToken{
		AdminID:   admin.ID,
		TokenHash: HashToken(raw),
		ExpiresAt: time.Now().Add(s.refreshTTL).UTC(),
	}
	if err := s.store.CreateRefreshToken(ctx, record); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: raw,
		TokenType:    "bearer",
		ExpiresIn:    int(s.accessTTL.Seconds()),
	}, nil
}

func (s *TokenService) signAccessToken(admin *model.AdminUser) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   admin.ID,
		Username: admin.Username,
		Email:    admin.Email,
		Role:     admin.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// VerifyAccessToken validates the signature and expiry of an access token
// and returns its payload. Expired tokens fail with ErrTokenExpired; any
// other defect fails with ErrInvalidToken.
func (s *TokenService) VerifyAccessToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Refresh exchanges a valid refresh token for a freshly minted pair. The
// presented token is single-use: rotation revokes it atomically, and
// presenting an already-consumed token revokes its entire family, cutting
// off a stolen copy.
func (s *TokenService) Refresh(ctx context.Context, rawRefresh string) (*TokenPair, error) {
	record, err := s.store.GetRefreshTokenByHash(ctx, HashToken(rawRefresh))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}

	if record.Revoked {
		// Reuse of a consumed token means either a very stale client or a
		// stolen copy. Revoke the family so neither keeps working.
		_ = s.store.RevokeTokenFamily(ctx, record.FamilyID)
		return nil, ErrTokenRevoked
	}
	if time.Now().After(record.ExpiresAt) {
		return nil, ErrInvalidToken
	}

	admin, err := s.store.GetAdmin(ctx, record.AdminID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if !admin.IsActive {
		return nil, ErrInvalidToken
	}

	access, err := s.signAccessToken(admin)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	raw, err := GenerateOpaqueToken(32)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	next := &model.RefreshToken{
		AdminID:   admin.ID,
		FamilyID:  record.FamilyID,
		TokenHash: HashToken(raw),
		ExpiresAt: time.Now().Add(s.refreshTTL).UTC(),
	}
	if err := s.store.RotateRefreshToken(ctx, record.ID, next); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Lost a concurrent-refresh race; the other caller's pair wins.
			return nil, ErrTokenRevoked
		}
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: raw,
		TokenType:    "bearer",
		ExpiresIn:    int(s.accessTTL.Seconds()),
	}, nil
}

// Revoke invalidates a refresh token on logout. Unknown tokens are a no-op:
// logout must always succeed locally.
func (s *TokenService) Revoke(ctx context.Context, rawRefresh string) error {
	record, err := s.store.GetRefreshTokenByHash(ctx, HashToken(rawRefresh))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup refresh token: %w", err)
	}
	return s.store.RevokeRefreshToken(ctx, record.ID)
}

// RevokeAllForAdmin invalidates every refresh token for an admin, used when
// an account is deactivated.
func (s *TokenService) RevokeAllForAdmin(ctx context.Context, adminID int64) error {
	return s.store.RevokeTokensForAdmin(ctx, adminID)
}

// VerifyCredentials checks a username/password pair against the credential
// store and returns the admin on success. Inactive accounts are rejected.
// The last-login timestamp is updated fire-and-forget.
func (s *TokenService) VerifyCredentials(ctx context.Context, username, password string) (*model.AdminUser, error) {
	admin, err := s.store.GetAdminByUsername(ctx, username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !admin.IsActive {
		return nil, ErrInvalidCredentials
	}
	if !CheckPassword(admin.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	go s.store.UpdateAdminLastLogin(context.Background(), admin.ID) //nolint:errcheck

	return admin, nil
}
