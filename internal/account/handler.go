package account

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"github.com/wedkarz02/cube-chrono/internal/auth"
)

var usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_.-]{4,32}$`)

const maxJSONBodyBytes = 1 << 20

// Handler manages the authenticated caller's own account plus the
// admin-only delete. All routes sit behind the auth guard.
type Handler struct {
	accounts auth.AccountStore
	service  *auth.Service
}

func NewHandler(accounts auth.AccountStore, service *auth.Service) *Handler {
	return &Handler{accounts: accounts, service: service}
}

type changeUsernameRequest struct {
	Username string `json:"username"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (h *Handler) Logged(w http.ResponseWriter, r *http.Request) {
	account, ok := auth.AccountFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	writeJSON(w, http.StatusOK, account)
}

func (h *Handler) ChangeUsername(w http.ResponseWriter, r *http.Request) {
	account, ok := auth.AccountFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body changeUsernameRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	body.Username = strings.TrimSpace(body.Username)
	if !usernameRegex.MatchString(body.Username) {
		writeError(w, http.StatusBadRequest, "username format is invalid")
		return
	}

	if _, err := h.accounts.FindByUsername(r.Context(), body.Username); err == nil {
		writeError(w, http.StatusConflict, "username already taken")
		return
	} else if !errors.Is(err, auth.ErrNotFound) {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to change username")
		return
	}

	account.Username = body.Username
	if err := h.accounts.Update(r.Context(), account); err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to change username")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "username updated"})
}

// ChangePassword revokes every outstanding session of the caller (which
// verifies the old password) and then swaps the digest. Revocation comes
// first on purpose: if the update fails afterwards the caller is left with
// revoked sessions and the old password, never with live sessions under a
// half-applied change.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	account, ok := auth.AccountFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body changePasswordRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	// Same policy as registration; a laxer check here would accept a
	// password that login then rejects.
	if !auth.ValidPassword(body.NewPassword) {
		writeError(w, http.StatusBadRequest, "password format is invalid")
		return
	}

	revoked, err := h.service.RevokeAll(r.Context(), account, body.OldPassword)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to change password")
		return
	}

	hash, err := auth.HashPassword(body.NewPassword)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to change password")
		return
	}

	account.PasswordHash = hash
	if err := h.accounts.Update(r.Context(), account); err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to change password")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":          "password updated, all sessions revoked",
		"revoked_sessions": revoked,
	})
}

// Delete removes an account by id. Admin only; outstanding access tokens of
// the deleted account stay valid until they expire naturally.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.AccountFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if !caller.HasRole(auth.RoleAdmin) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	deleted, err := h.accounts.DeleteByID(r.Context(), id)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to delete account")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"deleted_count": deleted})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
