package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/prototyp33/barcelona-housing-demographics-analyzer-sub003/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	decision      TEXT NOT NULL,
	matched_count INTEGER NOT NULL DEFAULT 0,
	metrics       TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS matches (
	id             TEXT PRIMARY KEY,
	run_id         TEXT NOT NULL REFERENCES runs(id),
	strategy       TEXT NOT NULL,
	score          REAL NOT NULL,
	price_per_area REAL,
	registry       TEXT NOT NULL,
	listing        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS checkpoints (
	run_id     TEXT PRIMARY KEY REFERENCES runs(id),
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_decision ON runs(decision);
CREATE INDEX IF NOT EXISTS idx_matches_run_id ON matches(run_id);
CREATE INDEX IF NOT EXISTS idx_matches_strategy ON matches(run_id, strategy);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	metricsJSON, err := json.Marshal(run.Metrics)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal metrics")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, decision, matched_count, metrics, created_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, string(run.Decision), run.MatchedCount, string(metricsJSON), run.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert run")
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, decision, matched_count, metrics, created_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, decision, matched_count, metrics, created_at FROM runs WHERE 1=1`
	var args []any

	if filter.Decision != "" {
		query += ` AND decision = ?`
		args = append(args, string(filter.Decision))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveMatches(ctx context.Context, runID string, matches []model.MatchedRecord) error {
	if len(matches) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin matches tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO matches (id, run_id, strategy, score, price_per_area, registry, listing) VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare match insert")
	}
	defer stmt.Close()

	for _, m := range matches {
		registryJSON, err := json.Marshal(m.Registry)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal registry record")
		}
		listingJSON, err := json.Marshal(m.Listing)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal listing record")
		}

		var ppa any
		if m.PricePerArea != nil {
			ppa = *m.PricePerArea
		}
		if _, err := stmt.ExecContext(ctx,
			uuid.New().String(), runID, string(m.Strategy), m.Score, ppa,
			string(registryJSON), string(listingJSON),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert match for run %s", runID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit matches")
}

func (s *SQLiteStore) ListMatches(ctx context.Context, runID string, limit int) ([]model.MatchedRecord, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT strategy, score, price_per_area, registry, listing FROM matches
		 WHERE run_id = ? ORDER BY score DESC, id LIMIT ?`,
		runID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list matches")
	}
	defer rows.Close()

	var out []model.MatchedRecord
	for rows.Next() {
		var m model.MatchedRecord
		var ppa sql.NullFloat64
		var registryJSON, listingJSON string

		if err := rows.Scan(&m.Strategy, &m.Score, &ppa, &registryJSON, &listingJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan match")
		}
		if ppa.Valid {
			m.PricePerArea = &ppa.Float64
		}
		if err := json.Unmarshal([]byte(registryJSON), &m.Registry); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal registry record")
		}
		if err := json.Unmarshal([]byte(listingJSON), &m.Listing); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal listing record")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list matches iterate")
}

func (s *SQLiteStore) SaveCheckpoint(ctx context.Context, runID string, res *model.CheckpointResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal checkpoint")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (run_id, payload, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (run_id) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`,
		runID, string(payload), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: save checkpoint")
}

func (s *SQLiteStore) GetCheckpoint(ctx context.Context, runID string) (*model.CheckpointResult, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM checkpoints WHERE run_id = ?`,
		runID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get checkpoint")
	}

	var res model.CheckpointResult
	if err := json.Unmarshal([]byte(payload), &res); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal checkpoint")
	}
	return &res, nil
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var metricsJSON string

	err := row.Scan(&r.ID, &r.Decision, &r.MatchedCount, &metricsJSON, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if err := json.Unmarshal([]byte(metricsJSON), &r.Metrics); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal metrics")
	}
	return &r, nil
}
