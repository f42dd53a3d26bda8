package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/jh125486/rubricscore/pkg/contextlog"
	"github.com/jh125486/rubricscore/pkg/rubrics"
)

// SQLStorage implements Storage using SQL database (PostgreSQL)
type SQLStorage struct {
	db *sql.DB
}

// NewSQLStorage creates a new SQL storage instance from a DATABASE_URL.
// It uses the pq driver's NewConnector for proper driver-specific connection handling.
func NewSQLStorage(ctx context.Context, connStr string) (*SQLStorage, error) {
	if connStr == "" {
		return nil, errors.New("database connection string is required")
	}
	host, dbname := parseConnConfig(connStr)
	l := contextlog.From(ctx).With(
		slog.String("host", host),
		slog.String("database", dbname),
	)

	connector, err := pq.NewConnector(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connector: %w", err)
	}

	db := sql.OpenDB(connector)

	// Configure connection pool for small instances
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			l.ErrorContext(ctx, "failed to close database after ping error", slog.Any("error", closeErr))
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	storage := &SQLStorage{db: db}
	if err := storage.ensureTablesExist(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure tables exist: %w", err)
	}

	l.InfoContext(ctx, "Connected to SQL database")

	return storage, nil
}

// parseConnConfig extracts host and database name from a connection config string.
// Supports both URL format (returns key=value pairs) and DSN format (user=... host=... dbname=...).
func parseConnConfig(configStr string) (host, dbname string) {
	config, err := pq.ParseURL(configStr)
	if err != nil {
		config = configStr
	}

	parts := make(map[string]string)
	for pair := range strings.FieldsSeq(config) {
		if key, val, found := strings.Cut(pair, "="); found {
			parts[key] = val
		}
	}

	return parts["host"], parts["dbname"]
}

func (s *SQLStorage) ensureTablesExist(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS rubrics (
			assignment_id TEXT PRIMARY KEY,
			definition JSONB NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
		`,
		`
		CREATE TABLE IF NOT EXISTS rubric_results (
			submission_id TEXT PRIMARY KEY,
			assignment_id TEXT,
			result JSONB NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
		`,
		`CREATE INDEX IF NOT EXISTS idx_rubric_results_assignment ON rubric_results(assignment_id)`,
		`CREATE INDEX IF NOT EXISTS idx_rubric_results_updated_at ON rubric_results(updated_at)`,
		`
		CREATE TABLE IF NOT EXISTS autotest_configs (
			assignment_id TEXT PRIMARY KEY,
			config JSONB NOT NULL
		)
		`,
		`
		CREATE TABLE IF NOT EXISTS autotest_results (
			submission_id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			result JSONB NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
		`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	contextlog.From(ctx).InfoContext(ctx, "Ensured rubric tables exist")

	return nil
}

// SaveRubric stores or replaces the rubric of an assignment.
func (s *SQLStorage) SaveRubric(ctx context.Context, def *rubrics.Definition) error {
	if err := checkRubric(def); err != nil {
		return err
	}
	const q = `
		INSERT INTO rubrics (assignment_id, definition, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (assignment_id)
		DO UPDATE SET definition = EXCLUDED.definition, updated_at = EXCLUDED.updated_at
	`
	return s.upsert(ctx, "rubric", def.AssignmentID, q, def, time.Now())
}

// LoadRubric loads the rubric of an assignment.
func (s *SQLStorage) LoadRubric(ctx context.Context, assignmentID string) (*rubrics.Definition, error) {
	const q = `SELECT definition FROM rubrics WHERE assignment_id = $1`
	data, err := s.loadJSON(ctx, "rubric", assignmentID, q)
	if err != nil {
		return nil, err
	}
	return decode[rubrics.Definition](data)
}

// SaveResult saves a rubric result to the database
func (s *SQLStorage) SaveResult(ctx context.Context, result *rubrics.Result) error {
	if err := checkResult(result); err != nil {
		return err
	}
	updatedAt := result.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	const q = `
		INSERT INTO rubric_results (submission_id, result, assignment_id, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (submission_id)
		DO UPDATE SET
			assignment_id = EXCLUDED.assignment_id,
			result = EXCLUDED.result,
			updated_at = EXCLUDED.updated_at
	`
	return s.upsert(ctx, "rubric result", result.SubmissionID, q, result, result.AssignmentID, updatedAt)
}

// LoadResult loads a rubric result from the database
func (s *SQLStorage) LoadResult(ctx context.Context, submissionID string) (*rubrics.Result, error) {
	const q = `SELECT result FROM rubric_results WHERE submission_id = $1`
	data, err := s.loadJSON(ctx, "rubric result", submissionID, q)
	if err != nil {
		return nil, err
	}
	return decode[rubrics.Result](data)
}

// ListResultsPaginated loads rubric results with pagination, newest first.
// Page numbers start at 1.
func (s *SQLStorage) ListResultsPaginated(
	ctx context.Context,
	params ListResultsParams,
) (results map[string]*rubrics.Result, totalCount int, err error) {
	start := time.Now()

	params = params.Validate()

	const countQ = `SELECT COUNT(*) FROM rubric_results WHERE ($1::text = '' OR assignment_id = $1::text)`
	if err = s.db.QueryRowContext(ctx, countQ, params.AssignmentID).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count rubric results: %w", err)
	}

	if totalCount == 0 {
		return make(map[string]*rubrics.Result), 0, nil
	}

	const q = `
		SELECT submission_id, result
		FROM rubric_results
		WHERE ($1::text = '' OR assignment_id = $1::text)
		ORDER BY updated_at DESC, submission_id
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.QueryContext(ctx, q, params.AssignmentID, params.PageSize, params.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query rubric results: %w", err)
	}
	defer rows.Close()

	results = make(map[string]*rubrics.Result)
	logger := contextlog.From(ctx)

	for rows.Next() {
		var submissionID string
		var resultJSON []byte
		if err := rows.Scan(&submissionID, &resultJSON); err != nil {
			logger.WarnContext(ctx, "Failed to scan row", slog.Any("error", err))
			continue
		}

		result, err := decode[rubrics.Result](resultJSON)
		if err != nil {
			logger.WarnContext(ctx, "Failed to unmarshal result",
				slog.String("submission_id", submissionID),
				slog.Any("error", err),
			)
			continue
		}

		results[submissionID] = result
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating rows: %w", err)
	}

	logger.InfoContext(ctx, "Listed paginated rubric results",
		slog.Int("page", params.Page),
		slog.Int("page_size", params.PageSize),
		slog.String("assignment_id", params.AssignmentID),
		slog.Int("total_count", totalCount),
		slog.Int("returned", len(results)),
		slog.Duration("duration", time.Since(start)),
	)

	return results, totalCount, nil
}

// SaveAutoTestConfig stores or replaces the automated test of an assignment.
func (s *SQLStorage) SaveAutoTestConfig(ctx context.Context, cfg *rubrics.AutoTestConfig) error {
	if err := checkAutoTestConfig(cfg); err != nil {
		return err
	}
	const q = `
		INSERT INTO autotest_configs (assignment_id, config)
		VALUES ($1, $2)
		ON CONFLICT (assignment_id)
		DO UPDATE SET config = EXCLUDED.config
	`
	return s.upsert(ctx, "auto-test config", cfg.AssignmentID, q, cfg)
}

// LoadAutoTestConfig loads the automated test of an assignment.
func (s *SQLStorage) LoadAutoTestConfig(ctx context.Context, assignmentID string) (*rubrics.AutoTestConfig, error) {
	const q = `SELECT config FROM autotest_configs WHERE assignment_id = $1`
	data, err := s.loadJSON(ctx, "auto-test config", assignmentID, q)
	if err != nil {
		return nil, err
	}
	return decode[rubrics.AutoTestConfig](data)
}

// SaveAutoTestResult stores the latest automated test outcome of a submission.
func (s *SQLStorage) SaveAutoTestResult(ctx context.Context, result *rubrics.AutoTestResult) error {
	if err := checkAutoTestResult(result); err != nil {
		return err
	}
	const q = `
		INSERT INTO autotest_results (submission_id, result, state, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (submission_id)
		DO UPDATE SET
			state = EXCLUDED.state,
			result = EXCLUDED.result,
			updated_at = EXCLUDED.updated_at
	`
	return s.upsert(ctx, "auto-test result", result.SubmissionID, q, result, string(result.State), time.Now())
}

// LoadAutoTestResult loads the latest automated test outcome of a submission.
func (s *SQLStorage) LoadAutoTestResult(ctx context.Context, submissionID string) (*rubrics.AutoTestResult, error) {
	const q = `SELECT result FROM autotest_results WHERE submission_id = $1`
	data, err := s.loadJSON(ctx, "auto-test result", submissionID, q)
	if err != nil {
		return nil, err
	}
	return decode[rubrics.AutoTestResult](data)
}

// upsert marshals v and runs q with the key as $1, the JSON as $2 and the
// remaining args from $3 on.
func (s *SQLStorage) upsert(ctx context.Context, kind, key, q string, v any, args ...any) error {
	start := time.Now()

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", kind, err)
	}

	if _, err = s.db.ExecContext(ctx, q, append([]any{key, string(data)}, args...)...); err != nil {
		return fmt.Errorf("failed to save %s to database: %w", kind, err)
	}

	contextlog.From(ctx).InfoContext(ctx, "Saved "+kind,
		slog.String("key", key),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (s *SQLStorage) loadJSON(ctx context.Context, kind, key, q string) ([]byte, error) {
	start := time.Now()

	var data []byte
	if err := s.db.QueryRowContext(ctx, q, key).Scan(&data); errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(kind, key)
	} else if err != nil {
		return nil, fmt.Errorf("failed to load %s from database: %w", kind, err)
	}

	contextlog.From(ctx).DebugContext(ctx, "Loaded "+kind,
		slog.String("key", key),
		slog.Duration("duration", time.Since(start)),
	)
	return data, nil
}

// Close closes the database connection
func (s *SQLStorage) Close() error {
	return s.db.Close()
}
