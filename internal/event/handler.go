package event

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"github.com/wedkarz02/cube-chrono/internal/auth"
)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

type createRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        int64  `json:"date_timestamp"`
	IsPrivate   bool   `json:"is_private"`
}

func (h *Handler) ListPublic(w http.ResponseWriter, r *http.Request) {
	events, err := h.store.FindPublic(r.Context())
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	writeJSON(w, http.StatusOK, events)
}

// Get returns a public event to anyone; a private one only to its creator,
// its moderators or an admin.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	account, ok := auth.AccountFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	e, err := h.store.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return
	}

	if e.IsPrivate && !canModerate(account, e) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	account, ok := auth.AccountFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body createRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	body.Title = strings.TrimSpace(body.Title)
	body.Description = strings.TrimSpace(body.Description)
	if body.Title == "" || len(body.Title) > 150 {
		writeError(w, http.StatusBadRequest, "title length must be in range 1..=150")
		return
	}
	if len(body.Description) > 1000 {
		writeError(w, http.StatusBadRequest, "description is too long")
		return
	}

	id, err := uuid.NewV7()
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to create event")
		return
	}

	e := Event{
		ID:           id,
		CreatorID:    account.ID,
		Title:        body.Title,
		Description:  body.Description,
		Date:         time.Unix(body.Date, 0).UTC(),
		IsPrivate:    body.IsPrivate,
		Moderators:   []uuid.UUID{account.ID},
		Participants: []uuid.UUID{},
		CreatedAt:    time.Now().UTC(),
	}

	if err := h.store.Insert(r.Context(), e); err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to create event")
		return
	}

	writeJSON(w, http.StatusCreated, e)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	account, ok := auth.AccountFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	e, err := h.store.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to delete event")
		return
	}

	if e.CreatorID != account.ID && !account.HasRole(auth.RoleAdmin) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	if _, err := h.store.DeleteByID(r.Context(), id); err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to delete event")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func canModerate(account auth.Account, e Event) bool {
	if account.HasRole(auth.RoleAdmin) || e.CreatorID == account.ID {
		return true
	}
	return e.IsModerator(account.ID) || account.IsEventModerator(e.ID)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
