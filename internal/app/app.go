// Package app provides application-level wiring: it turns a loaded
// configuration into a data source, executor, optional history store and
// scheduler, and the HTTP router.
package app

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"sheetql/internal/api"
	"sheetql/internal/config"
	"sheetql/internal/domain"
	"sheetql/internal/history"
	"sheetql/internal/middleware"
	"sheetql/internal/query"
	"sheetql/internal/schedule"
	"sheetql/internal/source"
)

// Deps holds the external dependencies that main() must provide.
type Deps struct {
	Cfg    *config.Config
	Logger *slog.Logger
}

// App holds the fully-wired application.
type App struct {
	Source   domain.DataSource
	Executor *query.Executor
	History  *history.Store    // nil when history is disabled
	Schedule *schedule.Runner  // nil when no schedules file is configured
	Logger   *slog.Logger
}

// New wires the data source, executor, history store, and scheduler from
// the provided deps.
func New(deps Deps) (*App, error) {
	cfg := deps.Cfg
	log := deps.Logger

	src, err := NewSource(cfg)
	if err != nil {
		return nil, err
	}

	var hist *history.Store
	if cfg.HistoryDBPath != "" {
		hist, err = history.Open(cfg.HistoryDBPath)
		if err != nil {
			return nil, fmt.Errorf("open history store: %w", err)
		}
	}

	opts := []query.Option{query.WithStrict(cfg.StrictMode)}
	if hist != nil {
		opts = append(opts, query.WithHistory(hist))
	}
	executor := query.New(src, cfg.ExcludedColumns, log.With("component", "executor"), opts...)

	var runner *schedule.Runner
	if cfg.SchedulesFile != "" {
		jobs, err := schedule.LoadFile(cfg.SchedulesFile)
		if err != nil {
			return nil, err
		}
		runner, err = schedule.NewRunner(executor, jobs, log.With("component", "schedule"))
		if err != nil {
			return nil, err
		}
		log.Info("loaded schedules", "count", len(jobs))
	}

	return &App{
		Source:   src,
		Executor: executor,
		History:  hist,
		Schedule: runner,
		Logger:   log,
	}, nil
}

// NewSource builds the configured data source.
func NewSource(cfg *config.Config) (domain.DataSource, error) {
	switch cfg.DataFormat {
	case "xlsx":
		return source.NewXLSXDir(cfg.DataDir), nil
	case "csv":
		return source.NewCSVDir(cfg.DataDir), nil
	default:
		return nil, fmt.Errorf("unsupported data format %q", cfg.DataFormat)
	}
}

// Router builds the HTTP router with the full middleware chain.
func (a *App) Router(cfg *config.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(a.Logger.With("component", "http")))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(middleware.RateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst))

	handler := api.NewHandler(a.Executor, a.Source, a.History, a.Logger.With("component", "api"))
	handler.Routes(r)
	return r
}

// Close releases owned resources.
func (a *App) Close() {
	if a.Schedule != nil {
		a.Schedule.Stop()
	}
	if a.History != nil {
		if err := a.History.Close(); err != nil {
			a.Logger.Warn("close history store", "error", err)
		}
	}
}
