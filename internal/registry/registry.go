// Package registry mirrors completed scan runs into Postgres for
// cross-repo/cross-run querying outside the filesystem. The mirror is
// best-effort: every write swallows its own error after logging it, since
// the on-disk scan_result.json under .compliance/ remains the source of
// truth regardless of whether the mirror succeeds.
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/complynav/compliance-navigator/pkg/config"
	"github.com/complynav/compliance-navigator/pkg/logging"
	"github.com/complynav/compliance-navigator/pkg/types"
)

// Registry wraps the best-effort Postgres mirror connection.
type Registry struct {
	db     *sqlx.DB
	logger *logging.Logger
}

// RegistryRun is one mirrored row of runs_registry.
type RegistryRun struct {
	RunID                string    `db:"run_id"`
	RepoPath             string    `db:"repo_path"`
	Framework            string    `db:"framework"`
	StartedAt            time.Time `db:"started_at"`
	FinishedAt           time.Time `db:"finished_at"`
	FindingCount         int       `db:"finding_count"`
	CoveragePct          float64   `db:"coverage_pct"`
	CoveragePctPotential float64   `db:"coverage_pct_potential"`
	CoveragePctFull      float64   `db:"coverage_pct_full"`
	HoursSaved           float64   `db:"hours_saved"`
	MirroredAt           time.Time `db:"mirrored_at"`
}

// Open connects to cfg.DatabaseURL. When cfg.DatabaseURL is empty, Open
// returns (nil, nil): a nil *Registry is a valid, inert mirror — every
// method on it is a documented no-op.
func Open(cfg config.RegistryConfig, logger *logging.Logger) (*Registry, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil
	}

	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to registry database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging registry database: %w", err)
	}

	return &Registry{db: db, logger: logger}, nil
}

// Ping verifies the registry connection is alive. Safe to call on a nil
// Registry, where it always succeeds (an unconfigured mirror is healthy).
func (r *Registry) Ping(ctx context.Context) error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.PingContext(ctx)
}

// Configured reports whether a live database connection backs this
// Registry. False for a nil Registry.
func (r *Registry) Configured() bool {
	return r != nil && r.db != nil
}

// Close closes the underlying connection. Safe to call on a nil Registry.
func (r *Registry) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Mirror inserts a summary row for result; on a run_id conflict it updates
// the existing row's finish time, counts, percentages, hours and mirror time
// (repo_path, framework and started_at keep their first values). Failures are logged and swallowed: a dead registry must never
// fail a scan.
func (r *Registry) Mirror(ctx context.Context, result types.ScanResult) {
	if r == nil || r.db == nil {
		return
	}

	const query = `
INSERT INTO runs_registry (
	run_id, repo_path, framework, started_at, finished_at, finding_count,
	coverage_pct, coverage_pct_potential, coverage_pct_full, hours_saved, mirrored_at
) VALUES (
	:run_id, :repo_path, :framework, :started_at, :finished_at, :finding_count,
	:coverage_pct, :coverage_pct_potential, :coverage_pct_full, :hours_saved, :mirrored_at
)
ON CONFLICT (run_id) DO UPDATE SET
	finished_at = EXCLUDED.finished_at,
	finding_count = EXCLUDED.finding_count,
	coverage_pct = EXCLUDED.coverage_pct,
	coverage_pct_potential = EXCLUDED.coverage_pct_potential,
	coverage_pct_full = EXCLUDED.coverage_pct_full,
	hours_saved = EXCLUDED.hours_saved,
	mirrored_at = EXCLUDED.mirrored_at`

	row := RegistryRun{
		RunID:                result.RunID,
		RepoPath:             result.RepoPath,
		Framework:            string(result.Framework),
		StartedAt:            result.StartedAt,
		FinishedAt:           result.FinishedAt,
		FindingCount:         len(result.Findings),
		CoveragePct:          result.ControlCoverage.CoveragePct,
		CoveragePctPotential: result.ControlCoverage.CoveragePctPotential,
		CoveragePctFull:      result.ControlCoverage.CoveragePctFull,
		HoursSaved:           result.ROIEstimate.HoursSaved,
		MirroredAt:           time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		r.logger.WithComponent("registry").WithError(err).Warn("best-effort run mirror failed")
	}
}

// ListRecentRuns returns the most recently mirrored runs, newest first. On
// a nil Registry it returns an empty slice rather than an error, matching
// Mirror's no-op-when-unconfigured behaviour.
func (r *Registry) ListRecentRuns(ctx context.Context, limit int) ([]RegistryRun, error) {
	if r == nil || r.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	var rows []RegistryRun
	const query = `SELECT run_id, repo_path, framework, started_at, finished_at, finding_count,
		coverage_pct, coverage_pct_potential, coverage_pct_full, hours_saved, mirrored_at
		FROM runs_registry ORDER BY started_at DESC LIMIT $1`
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("listing recent runs: %w", err)
	}
	return rows, nil
}
