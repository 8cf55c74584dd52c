package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/R3E-Network/ordzaar/internal/httputil"
	"github.com/R3E-Network/ordzaar/pkg/logger"
)

var testSecret = []byte("test-secret")

func echoIdentity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteSuccess(w, http.StatusOK, map[string]string{
			"user":    logger.GetUserID(r.Context()),
			"role":    logger.GetRole(r.Context()),
			"address": logger.GetAddress(r.Context()),
		})
	})
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) httputil.Envelope {
	t.Helper()
	var env httputil.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	m := NewAuthMiddleware(testSecret, nil)
	token, err := IssueToken(testSecret, "u1", "bc1qalice", RoleUser, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	m.Handler(echoIdentity()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	data := decodeEnvelope(t, rec).Data.(map[string]interface{})
	if data["user"] != "u1" || data["address"] != "bc1qalice" || data["role"] != RoleUser {
		t.Fatalf("unexpected identity %v", data)
	}
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	m := NewAuthMiddleware(testSecret, nil)
	expired, err := IssueToken(testSecret, "u1", "", RoleUser, -time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	foreign, err := IssueToken([]byte("other-secret"), "u1", "", RoleUser, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "u1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"bad-format", "Token abc"},
		{"expired", "Bearer " + expired},
		{"wrong-secret", "Bearer " + foreign},
		{"alg-none", "Bearer " + none},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			m.Handler(echoIdentity()).ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			if env := decodeEnvelope(t, rec); env.Success || env.Error == "" {
				t.Fatalf("unexpected envelope %+v", env)
			}
		})
	}
}

func TestAuthMiddleware_RequireAdmin(t *testing.T) {
	m := NewAuthMiddleware(testSecret, nil)
	handler := m.Handler(m.RequireAdmin(echoIdentity()))

	userToken, _ := IssueToken(testSecret, "u1", "", RoleUser, time.Hour)
	adminToken, _ := IssueToken(testSecret, "root", "", RoleAdmin, time.Hour)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("user status = %d, want 403", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin status = %d, want 200", rec.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	m := NewAuthMiddleware(nil, nil)
	if m.Enabled() {
		t.Fatalf("expected auth to be disabled without a secret")
	}
	rec := httptest.NewRecorder()
	m.Handler(m.RequireAdmin(echoIdentity())).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	data := decodeEnvelope(t, rec).Data.(map[string]interface{})
	if data["user"] != DevUserID || data["role"] != RoleAdmin {
		t.Fatalf("unexpected identity %v", data)
	}

	if _, err := IssueToken(nil, "u1", "", "", time.Hour); err == nil {
		t.Fatalf("expected IssueToken to fail without a secret")
	}
}
