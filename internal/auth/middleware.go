package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

type contextKey struct{}

var accountContextKey contextKey

// AccountFrom returns the account the guard attached to the request context.
func AccountFrom(ctx context.Context) (Account, bool) {
	account, ok := ctx.Value(accountContextKey).(Account)
	return account, ok
}

// ContextWithAccount attaches an account the way the guard does. Handlers
// downstream of the guard read it back with AccountFrom.
func ContextWithAccount(ctx context.Context, account Account) context.Context {
	return context.WithValue(ctx, accountContextKey, account)
}

// Guard gates protected routes: it resolves a bearer access token to an
// account and injects it into the request context, or short-circuits with
// 401 without invoking the downstream handler.
type Guard struct {
	codec    *Codec
	accounts AccountStore
	logger   RequestLogger
}

// RequestLogger is the subset of the observability logger the guard needs.
type RequestLogger interface {
	Info(message string, fields map[string]any)
	Error(message string, fields map[string]any)
}

func NewGuard(accessCodec *Codec, accounts AccountStore, logger RequestLogger) *Guard {
	return &Guard{codec: accessCodec, accounts: accounts, logger: logger}
}

func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		claims, err := g.codec.Decode(tokenString)
		if err != nil {
			// Both are 401 to the caller; the distinction stays in the logs.
			if errors.Is(err, ErrTokenExpired) {
				g.logger.Info("access_token_expired", map[string]any{"path": r.URL.Path})
				writeError(w, http.StatusUnauthorized, "token has expired")
				return
			}
			g.logger.Info("access_token_invalid", map[string]any{"path": r.URL.Path})
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		subject, err := claims.AccountID()
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		account, err := g.accounts.FindByID(r.Context(), subject)
		if err != nil {
			// The account may have been deleted after the token was issued.
			if errors.Is(err, ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "invalid credentials")
				return
			}
			g.logger.Error("guard_account_lookup_failed", map[string]any{"error": err.Error()})
			writeError(w, http.StatusInternalServerError, "something went wrong")
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithAccount(r.Context(), account)))
	})
}
