// Package postgres stores scan history in PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"
	"github.com/khanhnv2901/seca-guard/internal/domain/scan"
	sharedErrors "github.com/khanhnv2901/seca-guard/internal/shared/errors"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	sqlCreateTable = `
        CREATE TABLE IF NOT EXISTS scan_results (
            session_id   UUID PRIMARY KEY,
            target_type  TEXT NOT NULL,
            target       TEXT NOT NULL,
            status       TEXT NOT NULL,
            score        DOUBLE PRECISION NOT NULL,
            confidence   TEXT NOT NULL,
            completed_at TIMESTAMPTZ NOT NULL,
            payload      JSONB NOT NULL
        );
        CREATE INDEX IF NOT EXISTS scan_results_completed_at_idx ON scan_results (completed_at DESC);
    `
	sqlUpsert = `
        INSERT INTO scan_results (session_id, target_type, target, status, score, confidence, completed_at, payload)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (session_id) DO UPDATE SET
            target_type = EXCLUDED.target_type,
            target = EXCLUDED.target,
            status = EXCLUDED.status,
            score = EXCLUDED.score,
            confidence = EXCLUDED.confidence,
            completed_at = EXCLUDED.completed_at,
            payload = EXCLUDED.payload;
    `
	sqlFindByID = `SELECT payload FROM scan_results WHERE session_id = $1`
	// LIMIT NULL means no limit
	sqlList   = `SELECT payload FROM scan_results ORDER BY completed_at DESC, session_id LIMIT NULLIF($1::int, 0)`
	sqlDelete = `DELETE FROM scan_results WHERE session_id = $1`
)

// HistoryStore provides a PostgreSQL implementation of scan.HistoryRepository.
type HistoryStore struct {
	pool DBPool
	log  *zap.Logger
}

var _ scan.HistoryRepository = (*HistoryStore)(nil)

// New creates a store, verifies the connection and makes sure the schema exists.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*HistoryStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, sqlCreateTable); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &HistoryStore{
		pool: pool,
		log:  logger.Named("history"),
	}, nil
}

// Open connects a pool to dsn and builds a store on it. The caller closes the pool.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*HistoryStore, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	store, err := New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool, nil
}

// Save upserts a scan result
func (s *HistoryStore) Save(ctx context.Context, result *scan.Result) error {
	if result == nil {
		return fmt.Errorf("%w: nil result", sharedErrors.ErrRepositoryOperation)
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("%w: %v", sharedErrors.ErrSerializationFailed, err)
	}

	_, err = s.pool.Exec(ctx, sqlUpsert,
		result.SessionID,
		string(result.TargetType),
		result.Target,
		string(result.Verdict.Status()),
		result.Verdict.Score(),
		string(result.Verdict.Confidence()),
		result.CompletedAt.UTC(),
		payload,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to save scan result: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	s.log.Debug("saved scan result", zap.String("session_id", result.SessionID))
	return nil
}

// FindByID retrieves a scan result by its session ID
func (s *HistoryStore) FindByID(ctx context.Context, sessionID string) (*scan.Result, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, fmt.Errorf("%w: invalid session id %q", sharedErrors.ErrScanResultNotFound, sessionID)
	}
	var payload []byte
	err := s.pool.QueryRow(ctx, sqlFindByID, sessionID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", sharedErrors.ErrScanResultNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load scan result: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	return decode(payload)
}

// List returns the most recent results first; limit 0 means all
func (s *HistoryStore) List(ctx context.Context, limit int) ([]*scan.Result, error) {
	if limit < 0 {
		limit = 0
	}
	rows, err := s.pool.Query(ctx, sqlList, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list scan results: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	defer rows.Close()

	var results []*scan.Result
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("%w: %v", sharedErrors.ErrRepositoryOperation, err)
		}
		result, err := decode(payload)
		if err != nil {
			s.log.Warn("skipping unreadable scan result", zap.Error(err))
			continue
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	return results, nil
}

// Delete removes a scan result by its session ID
func (s *HistoryStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := uuid.Parse(sessionID); err != nil {
		return fmt.Errorf("%w: invalid session id %q", sharedErrors.ErrScanResultNotFound, sessionID)
	}
	tag, err := s.pool.Exec(ctx, sqlDelete, sessionID)
	if err != nil {
		return fmt.Errorf("%w: failed to delete scan result: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", sharedErrors.ErrScanResultNotFound, sessionID)
	}
	return nil
}

func decode(payload []byte) (*scan.Result, error) {
	var result scan.Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", sharedErrors.ErrDeserializationFailed, err)
	}
	return &result, nil
}
