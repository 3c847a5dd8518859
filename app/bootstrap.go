package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/wedkarz02/cube-chrono/internal/account"
	"github.com/wedkarz02/cube-chrono/internal/auth"
	"github.com/wedkarz02/cube-chrono/internal/db"
	"github.com/wedkarz02/cube-chrono/internal/event"
	"github.com/wedkarz02/cube-chrono/internal/maintenance"
	"github.com/wedkarz02/cube-chrono/internal/observability"
	"github.com/wedkarz02/cube-chrono/internal/scramble"
	"github.com/wedkarz02/cube-chrono/internal/session"
)

type Runtime struct {
	Handler http.Handler
	Close   func() error
}

// Build wires the whole service from an already-loaded Config and returns
// the root handler plus a close func for shutdown.
func Build(cfg Config, logger *observability.Logger) (*Runtime, error) {
	if err := observability.InitSentry(cfg.SentryDSN, cfg.Environment); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(cfg.DBMaxOpenConns)
	database.SetMaxIdleConns(cfg.DBMaxIdleConns)
	database.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	database.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := db.RunMigrations(database); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	accounts := auth.NewPostgresAccountStore(database)
	refreshTokens := auth.NewPostgresRefreshTokenStore(database)

	accessCodec := auth.NewCodec(cfg.JWTAccessSecret)
	refreshCodec := auth.NewCodec(cfg.JWTRefreshSecret)

	authService := auth.NewService(accounts, refreshTokens, accessCodec, refreshCodec).
		WithTTL(cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	authHandler := auth.NewHandler(authService)
	guard := auth.NewGuard(accessCodec, accounts, logger)

	if err := authService.EnsureAdmin(context.Background(), cfg.AdminUsername, cfg.AdminPassword); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}

	accountHandler := account.NewHandler(accounts, authService)
	sessionHandler := session.NewHandler(session.NewPostgresStore(database))
	eventHandler := event.NewHandler(event.NewPostgresStore(database))
	cleanupHandler := maintenance.NewCleanupHandler(refreshTokens, logger, cfg.CronSecret, cfg.CleanupBatchSize)

	loginLimiter := auth.NewLoginRateLimiter(cfg.LoginRateLimitMax, cfg.LoginRateLimitWindow)

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/auth/register", authHandler.Register)
	mux.Handle("POST /api/v1/auth/login", loginLimiter.Middleware(http.HandlerFunc(authHandler.Login)))
	mux.HandleFunc("POST /api/v1/auth/refresh", authHandler.Refresh)
	mux.HandleFunc("POST /api/v1/auth/logout", authHandler.Logout)
	mux.Handle("POST /api/v1/auth/revoke-all", guard.Middleware(http.HandlerFunc(authHandler.RevokeAll)))

	mux.Handle("GET /api/v1/accounts/logged", guard.Middleware(http.HandlerFunc(accountHandler.Logged)))
	mux.Handle("PUT /api/v1/accounts/logged/username", guard.Middleware(http.HandlerFunc(accountHandler.ChangeUsername)))
	mux.Handle("PUT /api/v1/accounts/logged/password", guard.Middleware(http.HandlerFunc(accountHandler.ChangePassword)))
	mux.Handle("DELETE /api/v1/accounts/{id}", guard.Middleware(http.HandlerFunc(accountHandler.Delete)))

	mux.Handle("GET /api/v1/sessions", guard.Middleware(http.HandlerFunc(sessionHandler.List)))
	mux.Handle("GET /api/v1/sessions/{id}", guard.Middleware(http.HandlerFunc(sessionHandler.Get)))
	mux.Handle("POST /api/v1/sessions", guard.Middleware(http.HandlerFunc(sessionHandler.Create)))
	mux.Handle("POST /api/v1/sessions/{id}/times", guard.Middleware(http.HandlerFunc(sessionHandler.AddTime)))
	mux.Handle("DELETE /api/v1/sessions/{id}", guard.Middleware(http.HandlerFunc(sessionHandler.Delete)))

	mux.HandleFunc("GET /api/v1/events", eventHandler.ListPublic)
	mux.Handle("GET /api/v1/events/{id}", guard.Middleware(http.HandlerFunc(eventHandler.Get)))
	mux.Handle("POST /api/v1/events", guard.Middleware(http.HandlerFunc(eventHandler.Create)))
	mux.Handle("DELETE /api/v1/events/{id}", guard.Middleware(http.HandlerFunc(eventHandler.Delete)))

	mux.HandleFunc("GET /api/v1/scrambles", scramble.Generate)

	mux.HandleFunc("GET /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("POST /internal/maintenance/cleanup", cleanupHandler.Handle)

	mux.HandleFunc("GET /health", healthHandler(database))

	handler := observability.Recover(logger, observability.RequestLogging(logger, mux))

	return &Runtime{
		Handler: handler,
		Close: func() error {
			observability.FlushSentry()
			return database.Close()
		},
	}, nil
}

func healthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
