package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func protected(t *testing.T, cfg AuthConfig) http.Handler {
	t.Helper()
	auth := NewAuthenticator(cfg, nil)
	return auth.Middleware(ScopeAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, _ := r.Context().Value(ContextKeySubject).(string)
		_, _ = w.Write([]byte(subject))
	}))
}

func call(handler http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/admin/swap", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestAuthenticatorAcceptsScopedToken(t *testing.T) {
	cfg := AuthConfig{HMACSecret: "top-secret", Issuer: "reflectctl", Audience: "reflect-gateway"}
	token, err := IssueToken(cfg, "operator", []string{"ledger:read", ScopeAdmin}, time.Minute)
	require.NoError(t, err)

	res := call(protected(t, cfg), token)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "operator", res.Body.String())
}

func TestAuthenticatorRejections(t *testing.T) {
	cfg := AuthConfig{HMACSecret: "top-secret", Issuer: "reflectctl"}
	handler := protected(t, cfg)

	require.Equal(t, http.StatusUnauthorized, call(handler, "").Code)

	wrongSecret, err := IssueToken(AuthConfig{HMACSecret: "other", Issuer: "reflectctl"}, "x", []string{ScopeAdmin}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, call(handler, wrongSecret).Code)

	wrongIssuer, err := IssueToken(AuthConfig{HMACSecret: "top-secret", Issuer: "elsewhere"}, "x", []string{ScopeAdmin}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, call(handler, wrongIssuer).Code)

	expired, err := IssueToken(cfg, "x", []string{ScopeAdmin}, -time.Hour)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, call(handler, expired).Code)

	readOnly, err := IssueToken(cfg, "x", []string{"ledger:read"}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, call(handler, readOnly).Code)
}

func TestAuthenticatorDisabledWithoutSecret(t *testing.T) {
	handler := protected(t, AuthConfig{})
	require.Equal(t, http.StatusForbidden, call(handler, "anything").Code)

	_, err := IssueToken(AuthConfig{}, "x", nil, time.Minute)
	require.Error(t, err)
}
