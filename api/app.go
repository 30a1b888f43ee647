// Package api exposes the assembler over HTTP. Studies are created by
// posting a dataset (inline or by server path) with variable roles and
// an optional configuration, then fetched back as JSON, a rendered
// report, or summaries.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gomediate/app"
	"gomediate/domain/mediation"
	"gomediate/internal"
	"gomediate/internal/report"
	"gomediate/ports"
)

// App represents the HTTP application
type App struct {
	router   *chi.Mux
	studies  *app.StudyService
	reader   ports.DatasetReader
	report   *report.Builder
	defaults mediation.Config
	logger   *internal.Logger
}

// NewApp creates the HTTP application around the study service. Requests
// that omit a configuration get defaults applied.
func NewApp(studies *app.StudyService, reader ports.DatasetReader, defaults mediation.Config, logger *internal.Logger) *App {
	if logger == nil {
		logger = internal.DefaultLogger.Named("api")
	}
	a := &App{
		router:   chi.NewRouter(),
		studies:  studies,
		reader:   reader,
		report:   report.NewBuilder(),
		defaults: defaults,
		logger:   logger,
	}

	a.setupMiddleware()
	a.setupRoutes()

	return a
}

// setupMiddleware configures HTTP middleware
func (a *App) setupMiddleware() {
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
}

// setupRoutes configures the application routes
func (a *App) setupRoutes() {
	a.router.Get("/health", a.handleHealth)

	// Study endpoints
	a.router.Post("/api/studies/simple", a.handleRunSimple)
	a.router.Post("/api/studies/exposure-interaction", a.handleRunExposureInteraction)
	a.router.Post("/api/studies/mediator-interaction", a.handleRunMediatorInteraction)
	a.router.Get("/api/studies", a.handleListStudies)
	a.router.Get("/api/studies/{id}", a.handleGetStudy)
	a.router.Get("/api/studies/{id}/report", a.handleStudyReport)
}

// Router exposes the handler tree, mainly for tests.
func (a *App) Router() http.Handler {
	return a.router
}

// Start starts the HTTP server
func (a *App) Start(addr string) error {
	a.logger.Info("starting mediate API server on %s", addr)
	return http.ListenAndServe(addr, a.router)
}
