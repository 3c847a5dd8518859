package event

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wedkarz02/cube-chrono/internal/auth"
)

func account(roles ...auth.Role) auth.Account {
	if len(roles) == 0 {
		roles = []auth.Role{auth.UserRole()}
	}
	return auth.Account{ID: uuid.New(), Username: "someone", Roles: roles}
}

func authedRequest(method, target string, body any, acc auth.Account) *http.Request {
	var encoded []byte
	if body != nil {
		encoded, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(encoded))
	return req.WithContext(auth.ContextWithAccount(req.Context(), acc))
}

func createEvent(t *testing.T, handler *Handler, creator auth.Account, private bool) Event {
	t.Helper()

	rec := httptest.NewRecorder()
	handler.Create(rec, authedRequest(http.MethodPost, "/events", map[string]any{
		"title":          "Weekly 3x3",
		"description":    "Casual comp",
		"date_timestamp": time.Now().Add(48 * time.Hour).Unix(),
		"is_private":     private,
	}, creator))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created Event
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	return created
}

func TestCreateEventMakesCreatorModerator(t *testing.T) {
	t.Parallel()

	handler := NewHandler(NewMemoryStore())
	creator := account()

	created := createEvent(t, handler, creator, false)
	assert.Equal(t, creator.ID, created.CreatorID)
	assert.True(t, created.IsModerator(creator.ID))
}

func TestListPublicSkipsPrivate(t *testing.T) {
	t.Parallel()

	handler := NewHandler(NewMemoryStore())
	creator := account()

	createEvent(t, handler, creator, false)
	createEvent(t, handler, creator, true)

	rec := httptest.NewRecorder()
	handler.ListPublic(rec, httptest.NewRequest(http.MethodGet, "/events", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var events []Event
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&events))
	assert.Len(t, events, 1)
	assert.False(t, events[0].IsPrivate)
}

func TestPrivateEventAccess(t *testing.T) {
	t.Parallel()

	handler := NewHandler(NewMemoryStore())
	creator := account()
	created := createEvent(t, handler, creator, true)

	get := func(acc auth.Account) int {
		req := authedRequest(http.MethodGet, "/events/"+created.ID.String(), nil, acc)
		req.SetPathValue("id", created.ID.String())
		rec := httptest.NewRecorder()
		handler.Get(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, get(creator))
	assert.Equal(t, http.StatusForbidden, get(account()))
	assert.Equal(t, http.StatusOK, get(account(auth.AdminRole())))

	// A moderator scoped to this event by role gets in too.
	moderator := account(auth.UserRole(), auth.EventModeratorRole(created.ID))
	assert.Equal(t, http.StatusOK, get(moderator))
}

func TestDeleteEventPermissions(t *testing.T) {
	t.Parallel()

	handler := NewHandler(NewMemoryStore())
	creator := account()
	created := createEvent(t, handler, creator, false)

	del := func(acc auth.Account) int {
		req := authedRequest(http.MethodDelete, "/events/"+created.ID.String(), nil, acc)
		req.SetPathValue("id", created.ID.String())
		rec := httptest.NewRecorder()
		handler.Delete(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusForbidden, del(account()))
	assert.Equal(t, http.StatusNoContent, del(creator))
	assert.Equal(t, http.StatusNotFound, del(creator))
}

func TestCreateEventValidation(t *testing.T) {
	t.Parallel()

	handler := NewHandler(NewMemoryStore())

	rec := httptest.NewRecorder()
	handler.Create(rec, authedRequest(http.MethodPost, "/events", map[string]any{
		"title": "",
	}, account()))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
