package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS state_mover_jobs (
	job_id     TEXT PRIMARY KEY,
	files      TEXT NOT NULL,
	state      TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps job records in PostgreSQL.
type PostgresStore struct {
	db DBTX
}

// NewPostgresStore wraps an existing connection or pool.
func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects a pool, pings it and makes sure the jobs table exists.
func OpenPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse DB_URL: %w", err)
	}
	pc.MaxConns = 2
	pc.MaxConnIdleTime = 5 * time.Minute
	pc.ConnConfig.RuntimeParams["application_name"] = "etl-state-mover"

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := NewPostgresStore(pool).EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// EnsureSchema creates the jobs table when it is missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create jobs table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, rec Record) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO state_mover_jobs (job_id, files, state)
		VALUES ($1, $2, $3)
		ON CONFLICT (job_id) DO UPDATE SET files = EXCLUDED.files, state = EXCLUDED.state, updated_at = now()`,
		rec.ID, JoinFiles(rec.Files), rec.Status)
	if err != nil {
		return fmt.Errorf("create job record %s: %w", rec.ID, err)
	}
	return nil
}

func (s *PostgresStore) SetStatus(ctx context.Context, id, status string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE state_mover_jobs SET state = $2, updated_at = now()
		WHERE job_id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update job record %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Record, error) {
	var files, status string
	err := s.db.QueryRow(ctx, `
		SELECT files, state FROM state_mover_jobs WHERE job_id = $1`, id).Scan(&files, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get job record %s: %w", id, err)
	}
	return Record{ID: id, Files: SplitFiles(files), Status: status}, nil
}
