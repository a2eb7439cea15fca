// Package store keeps suite run history in PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formprobe/internal/reporting"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Store persists run summaries and their case results.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// RunRecord is one stored run.
type RunRecord struct {
	RunID   string
	Name    string
	Start   time.Time
	Stop    time.Time
	Total   int
	Passed  int
	Failed  int
	Skipped int
}

// Duration is the run's wall time.
func (r RunRecord) Duration() time.Duration { return r.Stop.Sub(r.Start) }

// CaseRecord is one stored case of a run.
type CaseRecord struct {
	ID          string
	RunID       string
	Name        string
	Status      reporting.Status
	Failure     string
	Labels      map[string]string
	Start       time.Time
	Duration    time.Duration
	Attachments int
}

const schema = `
CREATE TABLE IF NOT EXISTS suite_runs (
    run_id     TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    started_at TIMESTAMPTZ NOT NULL,
    stopped_at TIMESTAMPTZ NOT NULL,
    total      INTEGER NOT NULL,
    passed     INTEGER NOT NULL,
    failed     INTEGER NOT NULL,
    skipped    INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS case_results (
    id          TEXT PRIMARY KEY,
    run_id      TEXT NOT NULL REFERENCES suite_runs(run_id) ON DELETE CASCADE,
    name        TEXT NOT NULL,
    status      TEXT NOT NULL,
    failure     TEXT NOT NULL DEFAULT '',
    labels      JSONB NOT NULL DEFAULT '{}',
    started_at  TIMESTAMPTZ NOT NULL,
    duration_ms BIGINT NOT NULL,
    attachments INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS case_results_run_id_idx ON case_results (run_id);
`

var caseColumns = []string{"id", "run_id", "name", "status", "failure", "labels", "started_at", "duration_ms", "attachments"}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// Migrate creates the history tables if they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create history schema: %w", err)
	}
	return nil
}

// SaveRun stores a run and all of its cases in one transaction.
func (s *Store) SaveRun(ctx context.Context, summary reporting.RunSummary, cases []*reporting.CaseResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	_, err = tx.Exec(ctx, `
        INSERT INTO suite_runs (run_id, name, started_at, stopped_at, total, passed, failed, skipped)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
    `, summary.RunID, summary.Name, summary.Start.UTC(), summary.Stop.UTC(),
		summary.Total, summary.Passed, summary.Failed, summary.Skipped)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", summary.RunID, err)
	}

	if len(cases) > 0 {
		if err := s.persistCases(ctx, tx, summary.RunID, cases); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("Run persisted", zap.String("run_id", summary.RunID), zap.Int("cases", len(cases)))
	return nil
}

func (s *Store) persistCases(ctx context.Context, tx pgx.Tx, runID string, cases []*reporting.CaseResult) error {
	rows := make([][]interface{}, len(cases))
	for i, c := range cases {
		labels := []byte("{}")
		if len(c.Labels) > 0 {
			b, err := json.Marshal(c.Labels)
			if err != nil {
				return fmt.Errorf("failed to encode labels of case %s: %w", c.ID, err)
			}
			labels = b
		}
		rows[i] = []interface{}{
			c.ID, runID, c.Name, string(c.Status), c.Failure,
			labels, c.Start.UTC(), c.Duration().Milliseconds(), len(c.AllAttachments()),
		}
	}

	copyCount, err := tx.CopyFrom(ctx, pgx.Identifier{"case_results"}, caseColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy case results: %w", err)
	}
	if int(copyCount) != len(cases) {
		return fmt.Errorf("mismatch in copied case count: expected %d, got %d", len(cases), copyCount)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	query := `
        SELECT run_id, name, started_at, stopped_at, total, passed, failed, skipped
        FROM suite_runs
        ORDER BY started_at DESC
        LIMIT $1;
    `
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.RunID, &r.Name, &r.Start, &r.Stop, &r.Total, &r.Passed, &r.Failed, &r.Skipped); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return runs, nil
}

// CasesByRunID returns the cases of one run in start order.
func (s *Store) CasesByRunID(ctx context.Context, runID string) ([]CaseRecord, error) {
	query := `
        SELECT id, name, status, failure, labels, started_at, duration_ms, attachments
        FROM case_results
        WHERE run_id = $1
        ORDER BY started_at ASC;
    `
	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query case results: %w", err)
	}
	defer rows.Close()

	var cases []CaseRecord
	for rows.Next() {
		var (
			c          CaseRecord
			status     string
			labels     []byte
			durationMS int64
		)
		if err := rows.Scan(&c.ID, &c.Name, &status, &c.Failure, &labels, &c.Start, &durationMS, &c.Attachments); err != nil {
			return nil, fmt.Errorf("failed to scan case row: %w", err)
		}
		if len(labels) > 0 {
			if err := json.Unmarshal(labels, &c.Labels); err != nil {
				return nil, fmt.Errorf("failed to decode labels of case %s: %w", c.ID, err)
			}
		}
		c.RunID = runID
		c.Status = reporting.Status(status)
		c.Duration = time.Duration(durationMS) * time.Millisecond
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return cases, nil
}
