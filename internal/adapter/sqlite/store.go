// Package sqlite stores result rows in a SQLite database, one record per
// (task, metric column).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/storm-data-verify/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS verification_values (
	run_id     TEXT    NOT NULL,
	date       TEXT    NOT NULL,
	lead       INTEGER NOT NULL,
	member     TEXT    NOT NULL DEFAULT '',
	metric     TEXT    NOT NULL,
	position   INTEGER NOT NULL,
	value      REAL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (run_id, date, lead, member, metric)
);
CREATE INDEX IF NOT EXISTS verification_values_metric ON verification_values (run_id, metric, lead);
`

// Store appends rows for one run. Undefined (NaN) values are stored as NULL.
type Store struct {
	sqlDB *sql.DB
	runID string
}

// Open opens or creates the database at path and ensures the schema.
func Open(path, runID string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}
	if runID == "" {
		return nil, errors.New("run id is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{sqlDB: sqlDB, runID: runID}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// AppendRow writes every value of row in one transaction.
func (s *Store) AppendRow(ctx context.Context, row domain.ResultRow) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO verification_values (run_id, date, lead, member, metric, position, value, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	date := row.Task.Date.UTC().Format(domain.DateLayout)
	created := domain.Now().UnixMilli()
	for i, col := range row.Columns {
		var value sql.NullFloat64
		if v := row.Values[i]; !math.IsNaN(v) {
			value = sql.NullFloat64{Float64: v, Valid: true}
		}
		if _, err = stmt.ExecContext(ctx, s.runID, date, row.Task.Lead, row.Task.Member, col, i, value, created); err != nil {
			return fmt.Errorf("insert %s %s: %w", row.Task, col, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Value is one stored metric value.
type Value struct {
	Date   time.Time
	Lead   int
	Member string
	Metric string
	Value  float64 // NaN when stored as NULL
}

// Values lists the run's values ordered by date, lead, member and column
// position.
func (s *Store) Values(ctx context.Context) ([]Value, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT date, lead, member, metric, value
FROM verification_values
WHERE run_id = ?
ORDER BY date, lead, member, position
`, s.runID)
	if err != nil {
		return nil, fmt.Errorf("query values: %w", err)
	}
	defer rows.Close()

	var out []Value
	for rows.Next() {
		var (
			v     Value
			date  string
			value sql.NullFloat64
		)
		if err := rows.Scan(&date, &v.Lead, &v.Member, &v.Metric, &value); err != nil {
			return nil, fmt.Errorf("scan value: %w", err)
		}
		if v.Date, err = time.Parse(domain.DateLayout, date); err != nil {
			return nil, fmt.Errorf("parse date %q: %w", date, err)
		}
		v.Value = math.NaN()
		if value.Valid {
			v.Value = value.Float64
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// LeadMeans returns the mean of each metric per lead time for the run,
// ignoring NULL values.
func (s *Store) LeadMeans(ctx context.Context, metric string) (map[int]float64, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT lead, AVG(value)
FROM verification_values
WHERE run_id = ? AND metric = ?
GROUP BY lead
`, s.runID, metric)
	if err != nil {
		return nil, fmt.Errorf("query lead means: %w", err)
	}
	defer rows.Close()

	out := make(map[int]float64)
	for rows.Next() {
		var (
			lead int
			mean sql.NullFloat64
		)
		if err := rows.Scan(&lead, &mean); err != nil {
			return nil, fmt.Errorf("scan lead mean: %w", err)
		}
		out[lead] = math.NaN()
		if mean.Valid {
			out[lead] = mean.Float64
		}
	}
	return out, rows.Err()
}
