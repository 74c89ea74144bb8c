package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/incentedge/match-engine/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is intended
// for local development and tests; freshness is computed client-side from
// expires_at since SQLite has no now()-based partial evaluation worth
// relying on across drivers.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sqlDB}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS award_stats (
	program_id          TEXT NOT NULL,
	project_type        TEXT NOT NULL,
	jurisdiction_state  TEXT NOT NULL,
	applicant_type      TEXT NOT NULL,
	total_applications  INTEGER NOT NULL DEFAULT 0,
	total_funded        INTEGER NOT NULL DEFAULT 0,
	approval_rate_pct   REAL NOT NULL DEFAULT 0,
	avg_award_amount    REAL NOT NULL DEFAULT 0,
	median_award_amount REAL NOT NULL DEFAULT 0,
	avg_processing_days REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (program_id, project_type, jurisdiction_state, applicant_type),
	CHECK (total_funded <= total_applications)
);

CREATE INDEX IF NOT EXISTS idx_award_stats_program_state ON award_stats(program_id, jurisdiction_state);

CREATE TABLE IF NOT EXISTS probability_cache (
	id          TEXT NOT NULL,
	project_id  TEXT NOT NULL,
	program_id  TEXT NOT NULL,
	result      TEXT NOT NULL,
	computed_at DATETIME NOT NULL,
	expires_at  DATETIME NOT NULL,
	is_stale    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (project_id, program_id)
);

CREATE INDEX IF NOT EXISTS idx_probability_cache_expires_at ON probability_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetFreshProbability(ctx context.Context, projectID, programID string) (*model.ProbabilityCacheRecord, error) {
	rec := model.ProbabilityCacheRecord{
		ProjectID: projectID,
		ProgramID: programID,
	}
	var resultJSON string
	var stale int

	err := s.db.QueryRowContext(ctx,
		`SELECT id, result, expires_at, is_stale FROM probability_cache
		 WHERE project_id = ? AND program_id = ? AND expires_at > ? AND is_stale = 0`,
		projectID, programID, time.Now().UTC(),
	).Scan(&rec.ID, &resultJSON, &rec.ExpiresAt, &stale)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: get probability cache")
	}
	rec.IsStale = stale != 0
	if err := json.Unmarshal([]byte(resultJSON), &rec.Result); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cached result")
	}
	return &rec, nil
}

func (s *SQLiteStore) PutProbability(ctx context.Context, rec *model.ProbabilityCacheRecord) error {
	id := rec.ID
	if id == "" {
		id = uuid.New().String()
	}

	resultJSON, err := json.Marshal(rec.Result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	stale := 0
	if rec.IsStale {
		stale = 1
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO probability_cache (id, project_id, program_id, result, computed_at, expires_at, is_stale)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (project_id, program_id) DO UPDATE SET result = excluded.result,
		   computed_at = excluded.computed_at, expires_at = excluded.expires_at, is_stale = excluded.is_stale`,
		id, rec.ProjectID, rec.ProgramID, string(resultJSON), rec.Result.ComputedAt.UTC(), rec.ExpiresAt.UTC(), stale,
	)
	return eris.Wrap(err, "sqlite: put probability cache")
}

func (s *SQLiteStore) MarkProbabilitiesStale(ctx context.Context, programID string) (int, error) {
	query := `UPDATE probability_cache SET is_stale = 1 WHERE is_stale = 0`
	var args []any
	if programID != "" {
		query += ` AND program_id = ?`
		args = append(args, programID)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: mark probabilities stale")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	return int(n), nil
}

func (s *SQLiteStore) AwardStats(ctx context.Context, filter AwardStatFilter) ([]model.AwardStatRow, error) {
	if filter.ProgramID == "" {
		return nil, eris.New("store: award stats filter requires a program id")
	}

	query := `SELECT program_id, project_type, jurisdiction_state, applicant_type,
	       total_applications, total_funded, approval_rate_pct,
	       avg_award_amount, median_award_amount, avg_processing_days
	FROM award_stats WHERE program_id = ?`
	args := []any{filter.ProgramID}

	if filter.State != "" {
		query += ` AND jurisdiction_state = ?`
		args = append(args, filter.State)
	}
	if filter.ProjectType != "" {
		query += ` AND project_type = ?`
		args = append(args, filter.ProjectType)
	}
	if filter.ApplicantType != "" {
		query += ` AND applicant_type = ?`
		args = append(args, string(filter.ApplicantType))
	}
	query += ` ORDER BY project_type, jurisdiction_state, applicant_type`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query award stats")
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
			return nil, eris.Wrap(err, "sqlite: scan award stat row")
		}
		stats = append(stats, r)
	}
	return stats, eris.Wrap(rows.Err(), "sqlite: iterate award stats")
}

func (s *SQLiteStore) UpsertAwardStats(ctx context.Context, stats []model.AwardStatRow) (int64, error) {
	if len(stats) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO award_stats (program_id, project_type, jurisdiction_state, applicant_type,
		   total_applications, total_funded, approval_rate_pct,
		   avg_award_amount, median_award_amount, avg_processing_days)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (program_id, project_type, jurisdiction_state, applicant_type) DO UPDATE SET
		   total_applications = excluded.total_applications,
		   total_funded = excluded.total_funded,
		   approval_rate_pct = excluded.approval_rate_pct,
		   avg_award_amount = excluded.avg_award_amount,
		   median_award_amount = excluded.median_award_amount,
		   avg_processing_days = excluded.avg_processing_days`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close()

	var n int64
	for _, r := range stats {
		if _, err := stmt.ExecContext(ctx,
			r.ProgramID, r.ProjectType, r.JurisdictionState, string(r.ApplicantType),
			r.TotalApplications, r.TotalFunded, r.ApprovalRatePct,
			r.AvgAwardAmount, r.MedianAwardAmount, r.AvgProcessingDays,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert award stat for program %s", r.ProgramID)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert")
	}
	return n, nil
}
