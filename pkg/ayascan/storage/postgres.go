package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
)

// PGClient is the PostgreSQL-backed results table. pgx.Conn is not safe for
// concurrent use, so every statement holds mu.
type PGClient struct {
	mu   sync.Mutex
	conn *pgx.Conn
	now  func() time.Time
}

// IsPostgresURL reports whether location names a PostgreSQL database rather
// than a SQLite file.
func IsPostgresURL(location string) bool {
	return strings.HasPrefix(location, "postgres://") || strings.HasPrefix(location, "postgresql://")
}

// NewPGClient connects and makes sure the results table exists.
func NewPGClient(ctx context.Context, connString string) (*PGClient, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &PGClient{conn: conn, now: time.Now}, nil
}

func initSchema(ctx context.Context, conn *pgx.Conn) error {
	_, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS results (
			id BIGSERIAL PRIMARY KEY,
			letter TEXT NOT NULL,
			number TEXT NOT NULL,
			"timestamp" BIGINT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_results_timestamp ON results ("timestamp");
	`)
	return err
}

func (c *PGClient) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close(context.Background())
}

func (c *PGClient) SetClock(now func() time.Time) {
	c.now = now
}

func (c *PGClient) Insert(ctx context.Context, letter, number string) (Result, error) {
	if c == nil || c.conn == nil {
		return Result{}, errors.New(errDBClientNil)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	row := Result{Letter: letter, Number: number, Timestamp: c.now().UnixMilli()}
	err := c.conn.QueryRow(ctx,
		`INSERT INTO results (letter, number, "timestamp") VALUES ($1, $2, $3) RETURNING id`,
		row.Letter, row.Number, row.Timestamp,
	).Scan(&row.ID)
	if err != nil {
		return Result{}, fmt.Errorf("inserting result: %w", err)
	}
	return row, nil
}

func (c *PGClient) GetAll(ctx context.Context) ([]Result, error) {
	if c == nil || c.conn == nil {
		return nil, errors.New(errDBClientNil)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.query(ctx, `SELECT id, letter, number, "timestamp" FROM results ORDER BY "timestamp" DESC, id DESC`)
}

func (c *PGClient) Search(ctx context.Context, q string) ([]Result, error) {
	if c == nil || c.conn == nil {
		return nil, errors.New(errDBClientNil)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.query(ctx, `
		SELECT id, letter, number, "timestamp" FROM results
		WHERE letter ILIKE $1 ESCAPE '\' OR number LIKE $1 ESCAPE '\'
		ORDER BY "timestamp" DESC, id DESC`, LikePattern(q))
}

func (c *PGClient) Count(ctx context.Context) (int64, error) {
	if c == nil || c.conn == nil {
		return 0, errors.New(errDBClientNil)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int64
	if err := c.conn.QueryRow(ctx, `SELECT COUNT(*) FROM results`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting results: %w", err)
	}
	return n, nil
}

func (c *PGClient) query(ctx context.Context, sql string, args ...any) ([]Result, error) {
	rows, err := c.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying results: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Result, error) {
		var r Result
		err := row.Scan(&r.ID, &r.Letter, &r.Number, &r.Timestamp)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning results: %w", err)
	}
	return out, nil
}

// Reset drops the results table. Used by tests against a shared database.
func (c *PGClient) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.conn.Exec(ctx, `DROP TABLE IF EXISTS results`); err != nil {
		return err
	}
	return initSchema(ctx, c.conn)
}
