package account

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wedkarz02/cube-chrono/internal/auth"
)

type fixture struct {
	handler  *Handler
	service  *auth.Service
	accounts *auth.MemoryAccountStore
	refresh  *auth.MemoryRefreshTokenStore
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	accounts := auth.NewMemoryAccountStore()
	refresh := auth.NewMemoryRefreshTokenStore()
	service := auth.NewService(accounts, refresh, auth.NewCodec("access"), auth.NewCodec("refresh"))

	return fixture{
		handler:  NewHandler(accounts, service),
		service:  service,
		accounts: accounts,
		refresh:  refresh,
	}
}

func (f fixture) register(t *testing.T, username, password string, roles ...auth.Role) auth.Account {
	t.Helper()

	if len(roles) == 0 {
		roles = []auth.Role{auth.UserRole()}
	}
	account, err := f.service.Register(context.Background(), username, password, roles)
	require.NoError(t, err)

	return account
}

func authedRequest(method, target string, body any, account auth.Account) *http.Request {
	var encoded []byte
	if body != nil {
		encoded, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(encoded))
	return req.WithContext(auth.ContextWithAccount(req.Context(), account))
}

func TestLoggedReturnsCallerWithoutDigest(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	alice := f.register(t, "alice", "Str0ng!Pass")

	rec := httptest.NewRecorder()
	f.handler.Logged(rec, authedRequest(http.MethodGet, "/accounts/logged", nil, alice))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Contains(t, rec.Body.String(), "alice")
	assert.NotContains(t, rec.Body.String(), alice.PasswordHash)
}

func TestChangeUsername(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	alice := f.register(t, "alice", "Str0ng!Pass")
	f.register(t, "bob", "B0bPassword")

	// Taken name conflicts.
	rec := httptest.NewRecorder()
	f.handler.ChangeUsername(rec, authedRequest(http.MethodPut, "/accounts/logged/username", map[string]string{"username": "bob"}, alice))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	f.handler.ChangeUsername(rec, authedRequest(http.MethodPut, "/accounts/logged/username", map[string]string{"username": "alice2"}, alice))
	require.Equal(t, http.StatusOK, rec.Code)

	updated, err := f.accounts.FindByID(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice2", updated.Username)
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t)
	alice := f.register(t, "alice", "Str0ng!Pass")

	_, err := f.service.Login(ctx, "alice", "Str0ng!Pass")
	require.NoError(t, err)
	pair, err := f.service.Login(ctx, "alice", "Str0ng!Pass")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	f.handler.ChangePassword(rec, authedRequest(http.MethodPut, "/accounts/logged/password", map[string]string{
		"old_password": "Str0ng!Pass",
		"new_password": "N3wPassword",
	}, alice))
	require.Equal(t, http.StatusOK, rec.Code)

	// Old refresh tokens are gone.
	_, err = f.refresh.FindByToken(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrNotFound)

	// Only the new password logs in.
	_, err = f.service.Login(ctx, "alice", "Str0ng!Pass")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = f.service.Login(ctx, "alice", "N3wPassword")
	assert.NoError(t, err)
}

func TestChangePasswordEnforcesPasswordPolicy(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	alice := f.register(t, "alice", "Str0ng!Pass")

	// Letter-only and digit-only passwords pass a pure length check but can
	// never log in; the change must be refused up front.
	for _, password := range []string{"onlyletters", "12345678", "short1"} {
		rec := httptest.NewRecorder()
		f.handler.ChangePassword(rec, authedRequest(http.MethodPut, "/accounts/logged/password", map[string]string{
			"old_password": "Str0ng!Pass",
			"new_password": password,
		}, alice))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "password %q", password)
	}

	_, err := f.service.Login(context.Background(), "alice", "Str0ng!Pass")
	assert.NoError(t, err)
}

type failingUpdateStore struct {
	auth.AccountStore
}

func (failingUpdateStore) Update(context.Context, auth.Account) error {
	return errors.New("update rejected")
}

func TestChangePasswordUpdateFailureKeepsOldPassword(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t)
	alice := f.register(t, "alice", "Str0ng!Pass")

	pair, err := f.service.Login(ctx, "alice", "Str0ng!Pass")
	require.NoError(t, err)

	broken := NewHandler(failingUpdateStore{AccountStore: f.accounts}, f.service)

	rec := httptest.NewRecorder()
	broken.ChangePassword(rec, authedRequest(http.MethodPut, "/accounts/logged/password", map[string]string{
		"old_password": "Str0ng!Pass",
		"new_password": "N3wPassword",
	}, alice))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	// Failure lands on the safe side: sessions revoked, old password intact.
	_, err = f.refresh.FindByToken(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrNotFound)
	_, err = f.service.Login(ctx, "alice", "Str0ng!Pass")
	assert.NoError(t, err)
	_, err = f.service.Login(ctx, "alice", "N3wPassword")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestChangePasswordWrongOldPassword(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	alice := f.register(t, "alice", "Str0ng!Pass")

	rec := httptest.NewRecorder()
	f.handler.ChangePassword(rec, authedRequest(http.MethodPut, "/accounts/logged/password", map[string]string{
		"old_password": "WrongPass1",
		"new_password": "N3wPassword",
	}, alice))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Password unchanged.
	_, err := f.service.Login(context.Background(), "alice", "Str0ng!Pass")
	assert.NoError(t, err)
}

func TestDeleteRequiresAdmin(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	alice := f.register(t, "alice", "Str0ng!Pass")
	bob := f.register(t, "bob", "B0bPassword")
	admin := f.register(t, "root", "R00tPassword", auth.UserRole(), auth.AdminRole())

	del := func(caller auth.Account, id uuid.UUID) *httptest.ResponseRecorder {
		req := authedRequest(http.MethodDelete, "/accounts/"+id.String(), nil, caller)
		req.SetPathValue("id", id.String())
		rec := httptest.NewRecorder()
		f.handler.Delete(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusForbidden, del(alice, bob.ID).Code)

	rec := del(admin, bob.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"deleted_count":1`)

	// Deleting an absent account reports zero, not an error.
	rec = del(admin, bob.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"deleted_count":0`)
}
