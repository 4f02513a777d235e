package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/prototyp33/barcelona-housing-demographics-analyzer-sub003/internal/db"
	"github.com/prototyp33/barcelona-housing-demographics-analyzer-sub003/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run":      `INSERT INTO runs (id, decision, matched_count, metrics, created_at) VALUES ($1, $2, $3, $4, $5)`,
	"get_run":         `SELECT id, decision, matched_count, metrics, created_at FROM runs WHERE id = $1`,
	"save_checkpoint": `INSERT INTO checkpoints (run_id, payload, created_at) VALUES ($1, $2, $3) ON CONFLICT (run_id) DO UPDATE SET payload = $2, created_at = $3`,
	"get_checkpoint":  `SELECT payload FROM checkpoints WHERE run_id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	decision      TEXT NOT NULL,
	matched_count INTEGER NOT NULL DEFAULT 0,
	metrics       JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS matches (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id         TEXT NOT NULL REFERENCES runs(id),
	strategy       TEXT NOT NULL,
	score          DOUBLE PRECISION NOT NULL,
	price_per_area DOUBLE PRECISION,
	registry       JSONB NOT NULL,
	listing        JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS checkpoints (
	run_id     TEXT PRIMARY KEY REFERENCES runs(id),
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_decision ON runs(decision);
CREATE INDEX IF NOT EXISTS idx_matches_run_id ON matches(run_id);
CREATE INDEX IF NOT EXISTS idx_matches_strategy ON matches(run_id, strategy);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run *model.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	metricsJSON, err := json.Marshal(run.Metrics)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal metrics")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, decision, matched_count, metrics, created_at) VALUES ($1, $2, $3, $4, $5)`,
		run.ID, string(run.Decision), run.MatchedCount, metricsJSON, run.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert run")
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var decision string
	var metricsJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, decision, matched_count, metrics, created_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &decision, &r.MatchedCount, &metricsJSON, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	r.Decision = model.Decision(decision)
	if err := json.Unmarshal(metricsJSON, &r.Metrics); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal metrics")
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, decision, matched_count, metrics, created_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Decision != "" {
		query += fmt.Sprintf(` AND decision = $%d`, argIdx)
		args = append(args, string(filter.Decision))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var decision string
		var metricsJSON []byte

		if err := rows.Scan(&r.ID, &decision, &r.MatchedCount, &metricsJSON, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Decision = model.Decision(decision)
		if err := json.Unmarshal(metricsJSON, &r.Metrics); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal metrics")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

var matchColumns = []string{"id", "run_id", "strategy", "score", "price_per_area", "registry", "listing"}

func (s *PostgresStore) SaveMatches(ctx context.Context, runID string, matches []model.MatchedRecord) error {
	if len(matches) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(matches))
	for _, m := range matches {
		registryJSON, err := json.Marshal(m.Registry)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal registry record")
		}
		listingJSON, err := json.Marshal(m.Listing)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal listing record")
		}

		var ppa any
		if m.PricePerArea != nil {
			ppa = *m.PricePerArea
		}
		rows = append(rows, []any{
			uuid.New().String(), runID, string(m.Strategy), m.Score, ppa,
			registryJSON, listingJSON,
		})
	}

	n, err := db.CopyFrom(ctx, s.pool, "matches", matchColumns, rows)
	if err != nil {
		return eris.Wrapf(err, "postgres: save matches for run %s", runID)
	}
	if n != int64(len(matches)) {
		return eris.Errorf("postgres: saved %d of %d matches for run %s", n, len(matches), runID)
	}
	return nil
}

func (s *PostgresStore) ListMatches(ctx context.Context, runID string, limit int) ([]model.MatchedRecord, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.pool.Query(ctx,
		`SELECT strategy, score, price_per_area, registry, listing FROM matches
		 WHERE run_id = $1 ORDER BY score DESC, id LIMIT $2`,
		runID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list matches")
	}
	defer rows.Close()

	var out []model.MatchedRecord
	for rows.Next() {
		var m model.MatchedRecord
		var strategy string
		var ppa *float64
		var registryJSON, listingJSON []byte

		if err := rows.Scan(&strategy, &m.Score, &ppa, &registryJSON, &listingJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan match")
		}
		m.Strategy = model.MatchStrategy(strategy)
		m.PricePerArea = ppa
		if err := json.Unmarshal(registryJSON, &m.Registry); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal registry record")
		}
		if err := json.Unmarshal(listingJSON, &m.Listing); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal listing record")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list matches iterate")
}

func (s *PostgresStore) SaveCheckpoint(ctx context.Context, runID string, res *model.CheckpointResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal checkpoint")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO checkpoints (run_id, payload, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (run_id) DO UPDATE SET payload = $2, created_at = $3`,
		runID, payload, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: save checkpoint")
}

func (s *PostgresStore) GetCheckpoint(ctx context.Context, runID string) (*model.CheckpointResult, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM checkpoints WHERE run_id = $1`,
		runID,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get checkpoint")
	}

	var res model.CheckpointResult
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal checkpoint")
	}
	return &res, nil
}
