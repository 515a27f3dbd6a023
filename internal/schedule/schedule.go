// Package schedule runs validation queries on cron schedules defined in a
// YAML file. Failures are logged, not fatal: a scheduled run is
// observability, not a gate.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"sheetql/internal/query"
)

// Job is one scheduled validation run.
type Job struct {
	Name  string   `yaml:"name"`
	Cron  string   `yaml:"cron"`
	SQL   string   `yaml:"sql"`
	Rules []string `yaml:"rules"`
}

type fileFormat struct {
	Schedules []Job `yaml:"schedules"`
}

// LoadFile parses the schedule definitions from a YAML file.
func LoadFile(path string) ([]Job, error) {
	b, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("read schedules file: %w", err)
	}
	var f fileFormat
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse schedules file: %w", err)
	}
	for i, job := range f.Schedules {
		if job.Name == "" {
			return nil, fmt.Errorf("schedule %d: name is required", i)
		}
		if job.Cron == "" || job.SQL == "" {
			return nil, fmt.Errorf("schedule %q: cron and sql are required", job.Name)
		}
	}
	return f.Schedules, nil
}

// Runner owns the cron scheduler.
type Runner struct {
	cron     *cron.Cron
	executor *query.Executor
	log      *slog.Logger
}

// NewRunner registers every job with a cron scheduler. Jobs do not run
// until Start.
func NewRunner(executor *query.Executor, jobs []Job, log *slog.Logger) (*Runner, error) {
	r := &Runner{
		cron:     cron.New(),
		executor: executor,
		log:      log,
	}
	for _, job := range jobs {
		job := job
		if _, err := r.cron.AddFunc(job.Cron, func() { r.runJob(job) }); err != nil {
			return nil, fmt.Errorf("schedule %q: invalid cron expression %q: %w", job.Name, job.Cron, err)
		}
	}
	return r, nil
}

func (r *Runner) runJob(job Job) {
	result := r.executor.ExecuteWithValidation(context.Background(), job.SQL, nil, job.Rules)
	if result.Error != "" {
		r.log.Error("scheduled validation failed to execute",
			"schedule", job.Name, "error", result.Error)
		return
	}
	errorRows := 0
	if result.Validation != nil {
		errorRows = result.Validation.ErrorRows
	}
	level := slog.LevelInfo
	if errorRows > 0 {
		level = slog.LevelWarn
	}
	r.log.Log(context.Background(), level, "scheduled validation completed",
		"schedule", job.Name,
		"rows", result.Stats.RowCount,
		"errorRows", errorRows,
		"durationMs", result.Stats.ExecutionTime)
}

// Start launches the scheduler in its own goroutine.
func (r *Runner) Start() { r.cron.Start() }

// Stop stops the scheduler and waits for running jobs to finish.
func (r *Runner) Stop() { <-r.cron.Stop().Done() }
