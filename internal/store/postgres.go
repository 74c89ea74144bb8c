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

	"github.com/incentedge/match-engine/internal/config"
	"github.com/incentedge/match-engine/internal/db"
	"github.com/incentedge/match-engine/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

var _ Store = (*PostgresStore)(nil)

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"get_probability": `SELECT id, result, expires_at, is_stale FROM probability_cache WHERE project_id = $1 AND program_id = $2 AND expires_at > now() AND is_stale = false`,
	"put_probability": `INSERT INTO probability_cache (id, project_id, program_id, result, computed_at, expires_at, is_stale) VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (project_id, program_id) DO UPDATE SET result = $4, computed_at = $5, expires_at = $6, is_stale = $7`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, storeCfg *config.StoreConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if storeCfg != nil {
		if storeCfg.MaxConns > 0 {
			maxConns = storeCfg.MaxConns
		}
		if storeCfg.MinConns > 0 {
			minConns = storeCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
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

// Pool returns the underlying database pool for subsystems that need
// direct query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS award_stats (
	program_id          TEXT NOT NULL,
	project_type        TEXT NOT NULL,
	jurisdiction_state  TEXT NOT NULL,
	applicant_type      TEXT NOT NULL,
	total_applications  INTEGER NOT NULL DEFAULT 0,
	total_funded        INTEGER NOT NULL DEFAULT 0,
	approval_rate_pct   DOUBLE PRECISION NOT NULL DEFAULT 0,
	avg_award_amount    DOUBLE PRECISION NOT NULL DEFAULT 0,
	median_award_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
	avg_processing_days DOUBLE PRECISION NOT NULL DEFAULT 0,
	PRIMARY KEY (program_id, project_type, jurisdiction_state, applicant_type),
	CHECK (total_funded <= total_applications)
);

CREATE INDEX IF NOT EXISTS idx_award_stats_program_state ON award_stats(program_id, jurisdiction_state);

CREATE TABLE IF NOT EXISTS probability_cache (
	id          TEXT NOT NULL,
	project_id  TEXT NOT NULL,
	program_id  TEXT NOT NULL,
	result      JSONB NOT NULL,
	computed_at TIMESTAMPTZ NOT NULL,
	expires_at  TIMESTAMPTZ NOT NULL,
	is_stale    BOOLEAN NOT NULL DEFAULT false,
	PRIMARY KEY (project_id, program_id)
);

CREATE INDEX IF NOT EXISTS idx_probability_cache_expires_at ON probability_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_probability_cache_program ON probability_cache(program_id);
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

func (s *PostgresStore) GetFreshProbability(ctx context.Context, projectID, programID string) (*model.ProbabilityCacheRecord, error) {
	rec := model.ProbabilityCacheRecord{
		ProjectID: projectID,
		ProgramID: programID,
	}
	var resultJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, result, expires_at, is_stale FROM probability_cache
		 WHERE project_id = $1 AND program_id = $2 AND expires_at > now() AND is_stale = false`,
		projectID, programID,
	).Scan(&rec.ID, &resultJSON, &rec.ExpiresAt, &rec.IsStale)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get probability cache")
	}
	if err := json.Unmarshal(resultJSON, &rec.Result); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal cached result")
	}
	return &rec, nil
}

func (s *PostgresStore) PutProbability(ctx context.Context, rec *model.ProbabilityCacheRecord) error {
	id := rec.ID
	if id == "" {
		id = uuid.New().String()
	}

	resultJSON, err := json.Marshal(rec.Result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO probability_cache (id, project_id, program_id, result, computed_at, expires_at, is_stale)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (project_id, program_id) DO UPDATE SET result = $4, computed_at = $5, expires_at = $6, is_stale = $7`,
		id, rec.ProjectID, rec.ProgramID, resultJSON, rec.Result.ComputedAt, rec.ExpiresAt, rec.IsStale,
	)
	return eris.Wrap(err, "postgres: put probability cache")
}

func (s *PostgresStore) MarkProbabilitiesStale(ctx context.Context, programID string) (int, error) {
	query := `UPDATE probability_cache SET is_stale = true WHERE is_stale = false`
	args := []any{}
	if programID != "" {
		query += ` AND program_id = $1`
		args = append(args, programID)
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: mark probabilities stale")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) AwardStats(ctx context.Context, filter AwardStatFilter) ([]model.AwardStatRow, error) {
	if filter.ProgramID == "" {
		return nil, eris.New("store: award stats filter requires a program id")
	}

	query := `SELECT program_id, project_type, jurisdiction_state, applicant_type,
	       total_applications, total_funded, approval_rate_pct,
	       avg_award_amount, median_award_amount, avg_processing_days
	FROM award_stats WHERE program_id = $1`
	args := []any{filter.ProgramID}
	argIdx := 2

	if filter.State != "" {
		query += fmt.Sprintf(` AND jurisdiction_state = $%d`, argIdx)
		args = append(args, filter.State)
		argIdx++
	}
	if filter.ProjectType != "" {
		query += fmt.Sprintf(` AND project_type = $%d`, argIdx)
		args = append(args, filter.ProjectType)
		argIdx++
	}
	if filter.ApplicantType != "" {
		query += fmt.Sprintf(` AND applicant_type = $%d`, argIdx)
		args = append(args, string(filter.ApplicantType))
		argIdx++
	}
	query += ` ORDER BY project_type, jurisdiction_state, applicant_type`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query award stats")
	}
	defer rows.Close()

	var stats []model.AwardStatRow
	for rows.Next() {
		var r model.AwardStatRow
		if err := rows.Scan(
			&r.ProgramID, &r.ProjectType, &r.JurisdictionState, &r.ApplicantType,
			&r.TotalApplications, &r.TotalFunded, &r.ApprovalRatePct,
			&r.AvgAwardAmount, &r.MedianAwardAmount, &r.AvgProcessingDays,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan award stat row")
		}
		stats = append(stats, r)
	}
	return stats, eris.Wrap(rows.Err(), "postgres: iterate award stats")
}

// awardStatColumns is the column order used by bulk upsert and the XLSX
// loader.
var awardStatColumns = []string{
	"program_id", "project_type", "jurisdiction_state", "applicant_type",
	"total_applications", "total_funded", "approval_rate_pct",
	"avg_award_amount", "median_award_amount", "avg_processing_days",
}

func (s *PostgresStore) UpsertAwardStats(ctx context.Context, stats []model.AwardStatRow) (int64, error) {
	rows := make([][]any, 0, len(stats))
	for _, r := range stats {
		rows = append(rows, []any{
			r.ProgramID, r.ProjectType, r.JurisdictionState, string(r.ApplicantType),
			r.TotalApplications, r.TotalFunded, r.ApprovalRatePct,
			r.AvgAwardAmount, r.MedianAwardAmount, r.AvgProcessingDays,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "award_stats",
		Columns:      awardStatColumns,
		ConflictKeys: []string{"program_id", "project_type", "jurisdiction_state", "applicant_type"},
	}, rows)
	return n, eris.Wrap(err, "postgres: upsert award stats")
}
