// Package middleware provides HTTP middleware for the marketplace API.
package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/R3E-Network/ordzaar/internal/errors"
	"github.com/R3E-Network/ordzaar/internal/httputil"
	"github.com/R3E-Network/ordzaar/pkg/logger"
)

// Roles carried in tokens.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// DevUserID identifies requests when authentication is disabled.
const DevUserID = "dev"

// Claims represents JWT claims
type Claims struct {
	UserID  string `json:"user_id"`
	Address string `json:"address,omitempty"`
	Role    string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for the given identity. A zero ttl issues a
// token without expiry.
func IssueToken(secret []byte, userID, address, role string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.Internal("JWT secret is not configured", nil)
	}
	if role == "" {
		role = RoleUser
	}
	now := time.Now()
	claims := &Claims{
		UserID:  userID,
		Address: address,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			Subject:  userID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// AuthMiddleware provides JWT authentication
type AuthMiddleware struct {
	secret []byte
	logger *logger.Logger
}

// NewAuthMiddleware creates a new authentication middleware. An empty secret
// disables verification: every request is treated as an admin so local
// development works without tokens.
func NewAuthMiddleware(secret []byte, log *logger.Logger) *AuthMiddleware {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	if len(secret) == 0 {
		log.Warn("JWT_SECRET not set; authentication is disabled")
	}
	return &AuthMiddleware{secret: secret, logger: log}
}

// Enabled reports whether tokens are verified.
func (m *AuthMiddleware) Enabled() bool {
	return len(m.secret) > 0
}

// Handler requires a valid bearer token.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Enabled() {
			next.ServeHTTP(w, m.devRequest(r))
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.respondError(w, r, errors.Unauthorized("Missing Authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			m.respondError(w, r, errors.Unauthorized("Invalid Authorization header format"))
			return
		}

		claims, err := m.validateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			m.respondError(w, r, err)
			return
		}

		ctx := logger.WithUserID(r.Context(), claims.UserID)
		ctx = logger.WithRole(ctx, claims.Role)
		ctx = logger.WithAddress(ctx, claims.Address)

		m.logger.WithContext(ctx).WithField("role", claims.Role).Debug("Authentication successful")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects authenticated callers without the admin role. It must
// run after Handler.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if logger.GetRole(r.Context()) != RoleAdmin {
			m.respondError(w, r, errors.Forbidden("Admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *AuthMiddleware) devRequest(r *http.Request) *http.Request {
	ctx := logger.WithUserID(r.Context(), DevUserID)
	ctx = logger.WithRole(ctx, RoleAdmin)
	return r.WithContext(ctx)
}

// validateToken validates a JWT token and returns claims
func (m *AuthMiddleware) validateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.InvalidToken(nil).WithDetails("method", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, errors.InvalidToken(err)
	}
	if !token.Valid {
		return nil, errors.InvalidToken(nil)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.UserID == "" {
		return nil, errors.InvalidToken(nil).WithDetails("reason", "invalid claims")
	}
	if claims.Role == "" {
		claims.Role = RoleUser
	}
	return claims, nil
}

func (m *AuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	serviceErr := errors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = errors.Internal("Authentication failed", err)
	}

	httputil.WriteErrorResponse(w, serviceErr.HTTPStatus, string(serviceErr.Code), serviceErr.Message, serviceErr.Details)

	m.logger.WithContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
		"status": serviceErr.HTTPStatus,
	}).Warn("Authentication failed")
}
