// Package agentapi implements the HTTP evaluation API of the Heimdall agent.
// Applications that cannot embed the SDK ask the agent to evaluate flags for
// a user; the agent keeps the config fresh on their behalf.
package agentapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/rafaeljc/heimdall-sdk/internal/client"
	"github.com/rafaeljc/heimdall-sdk/internal/logger"
	"github.com/rafaeljc/heimdall-sdk/internal/model"
	"github.com/rafaeljc/heimdall-sdk/internal/user"
	"github.com/rafaeljc/heimdall-sdk/internal/validation"
)

// Evaluator is the part of *client.Client the API depends on.
type Evaluator interface {
	GetValueDetails(ctx context.Context, key string, def model.Value, u *user.User) client.Details[model.Value]
	GetAllValueDetails(ctx context.Context, u *user.User) []client.Details[model.Value]
	GetAllKeys(ctx context.Context) []string
	Refresh(ctx context.Context) error
}

// API holds the router and its dependencies.
type API struct {
	// Router is the Chi multiplexer that handles HTTP requests.
	Router *chi.Mux

	evaluator Evaluator
	logger    *slog.Logger

	// apiKeyHash is the SHA-256 hex digest of the accepted API key.
	apiKeyHash string
	skipAuth   bool
}

// NewAPI creates the API with authentication enabled.
// Panics if apiKeyHash is empty.
func NewAPI(eval Evaluator, log *slog.Logger, apiKeyHash string) *API {
	return NewAPIWithConfig(eval, log, apiKeyHash, false)
}

// NewAPIWithConfig creates the API with explicit control over
// authentication. skipAuth is meant for development and tests.
func NewAPIWithConfig(eval Evaluator, log *slog.Logger, apiKeyHash string, skipAuth bool) *API {
	validation.AssertPresent(eval, "evaluator")
	if !skipAuth && apiKeyHash == "" {
		panic("agentapi: apiKeyHash cannot be empty when authentication is enabled")
	}

	a := &API{
		Router:     chi.NewRouter(),
		evaluator:  eval,
		logger:     logger.OrDefault(log),
		apiKeyHash: apiKeyHash,
		skipAuth:   skipAuth,
	}
	a.configureRoutes()
	return a
}

func (a *API) configureRoutes() {
	a.Router.Use(RequestID(a.logger))
	a.Router.Use(middleware.RealIP)
	a.Router.Use(RequestLogger)
	a.Router.Use(Metrics)
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(render.SetContentType(render.ContentTypeJSON))

	a.Router.Get("/health", a.handleHealthCheck)

	a.Router.Route("/api/v1", func(r chi.Router) {
		r.Use(a.authenticateAPIKey)

		r.Get("/keys", a.handleListKeys)
		r.Post("/evaluate", a.handleEvaluate)
		r.Post("/evaluate-all", a.handleEvaluateAll)
		r.Post("/refresh", a.handleRefresh)
	})
}

// handleHealthCheck only reports that the HTTP server is serving. Config
// availability is covered by the readiness probe.
func (a *API) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"status": "ok"})
}
