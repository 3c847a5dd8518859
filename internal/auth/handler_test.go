package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthServer(t *testing.T) (*httptest.Server, *Service) {
	t.Helper()

	service, _, _ := newTestService(t)
	handler := NewHandler(service)
	guard := NewGuard(service.access, service.accounts, nopLogger{})

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", handler.Register)
	mux.HandleFunc("POST /auth/login", handler.Login)
	mux.HandleFunc("POST /auth/refresh", handler.Refresh)
	mux.HandleFunc("POST /auth/logout", handler.Logout)
	mux.Handle("POST /auth/revoke-all", guard.Middleware(http.HandlerFunc(handler.RevokeAll)))
	mux.Handle("GET /whoami", guard.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, _ := AccountFrom(r.Context())
		writeJSON(w, http.StatusOK, account)
	})))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server, service
}

func postJSON(t *testing.T, url string, body any, bearer string) *http.Response {
	t.Helper()

	encoded, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(encoded))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestAuthFlowEndToEnd(t *testing.T) {
	t.Parallel()

	server, _ := newAuthServer(t)

	// Register.
	resp := postJSON(t, server.URL+"/auth/register", map[string]string{
		"username": "alice",
		"password": "Str0ng!Pass",
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created Account
	decodeBody(t, resp, &created)
	assert.Equal(t, "alice", created.Username)

	// The digest must never appear in a response.
	assert.Empty(t, created.PasswordHash)

	// Login.
	resp = postJSON(t, server.URL+"/auth/login", map[string]string{
		"username": "alice",
		"password": "Str0ng!Pass",
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var pair TokenPair
	decodeBody(t, resp, &pair)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	// Protected route with the access token.
	req, err := http.NewRequest(http.MethodGet, server.URL+"/whoami", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	whoami, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer whoami.Body.Close()
	require.Equal(t, http.StatusOK, whoami.StatusCode)

	var identity Account
	require.NoError(t, json.NewDecoder(whoami.Body).Decode(&identity))
	assert.Equal(t, created.ID, identity.ID)

	// Protected route without a header.
	bare, err := http.Get(server.URL + "/whoami")
	require.NoError(t, err)
	bare.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, bare.StatusCode)

	// Refresh yields a fresh access token.
	resp = postJSON(t, server.URL+"/auth/refresh", map[string]string{
		"refresh_token": pair.RefreshToken,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var refreshed map[string]string
	decodeBody(t, resp, &refreshed)
	assert.NotEmpty(t, refreshed["access_token"])

	// Logout, then the same refresh token is rejected.
	resp = postJSON(t, server.URL+"/auth/logout", map[string]string{
		"refresh_token": pair.RefreshToken,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, server.URL+"/auth/refresh", map[string]string{
		"refresh_token": pair.RefreshToken,
	}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()

	server, _ := newAuthServer(t)

	cases := []struct {
		name string
		body map[string]string
	}{
		{"short username", map[string]string{"username": "al", "password": "Str0ng!Pass"}},
		{"non-ascii username", map[string]string{"username": "ąlice", "password": "Str0ng!Pass"}},
		{"short password", map[string]string{"username": "alice", "password": "a1"}},
		{"digitless password", map[string]string{"username": "alice", "password": "onlyletters"}},
	}

	for _, tc := range cases {
		resp := postJSON(t, server.URL+"/auth/register", tc.body, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, tc.name)
	}
}

func TestRegisterConflict(t *testing.T) {
	t.Parallel()

	server, _ := newAuthServer(t)

	resp := postJSON(t, server.URL+"/auth/register", map[string]string{
		"username": "alice", "password": "Str0ng!Pass",
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, server.URL+"/auth/register", map[string]string{
		"username": "alice", "password": "0therPassw0rd",
	}, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestLoginInvalidCredentialsIndistinguishable(t *testing.T) {
	t.Parallel()

	server, _ := newAuthServer(t)

	resp := postJSON(t, server.URL+"/auth/register", map[string]string{
		"username": "alice", "password": "Str0ng!Pass",
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	wrongPassword := postJSON(t, server.URL+"/auth/login", map[string]string{
		"username": "alice", "password": "WrongPass1",
	}, "")
	unknownUser := postJSON(t, server.URL+"/auth/login", map[string]string{
		"username": "charlie1", "password": "WrongPass1",
	}, "")

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.StatusCode)
	assert.Equal(t, http.StatusUnauthorized, unknownUser.StatusCode)

	var first, second map[string]string
	decodeBody(t, wrongPassword, &first)
	decodeBody(t, unknownUser, &second)
	assert.Equal(t, first, second)
}

func TestRevokeAllEndpoint(t *testing.T) {
	t.Parallel()

	server, _ := newAuthServer(t)

	resp := postJSON(t, server.URL+"/auth/register", map[string]string{
		"username": "alice", "password": "Str0ng!Pass",
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	login := func() TokenPair {
		resp := postJSON(t, server.URL+"/auth/login", map[string]string{
			"username": "alice", "password": "Str0ng!Pass",
		}, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var pair TokenPair
		decodeBody(t, resp, &pair)
		return pair
	}

	first := login()
	second := login()

	// Wrong password revokes nothing.
	resp = postJSON(t, server.URL+"/auth/revoke-all", map[string]string{
		"password": "WrongPass1",
	}, first.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = postJSON(t, server.URL+"/auth/revoke-all", map[string]string{
		"password": "Str0ng!Pass",
	}, first.AccessToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]int64
	decodeBody(t, resp, &result)
	assert.Equal(t, int64(2), result["revoked_count"])

	// Both refresh tokens are now dead.
	for _, pair := range []TokenPair{first, second} {
		resp := postJSON(t, server.URL+"/auth/refresh", map[string]string{
			"refresh_token": pair.RefreshToken,
		}, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
}

func TestLoginRateLimiter(t *testing.T) {
	t.Parallel()

	limiter := NewLoginRateLimiter(3, time.Minute)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// A different client is unaffected.
	req = httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginRateLimiterWindowReset(t *testing.T) {
	t.Parallel()

	limiter := NewLoginRateLimiter(2, time.Minute)
	start := time.Now().UTC()

	for i := 0; i < 2; i++ {
		allowed, _ := limiter.allow("10.0.0.1", start)
		require.True(t, allowed)
	}

	allowed, retryAfter := limiter.allow("10.0.0.1", start.Add(time.Second))
	require.False(t, allowed)
	assert.Greater(t, retryAfter, time.Duration(0))

	// Once the window lapses the counter starts over.
	allowed, _ = limiter.allow("10.0.0.1", start.Add(time.Minute))
	assert.True(t, allowed)
}
