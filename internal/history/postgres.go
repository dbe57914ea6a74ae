package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresLedger stores entries in the applications table:
//
//	CREATE TABLE applications (
//	    id          UUID PRIMARY KEY,
//	    user_id     TEXT NOT NULL,
//	    job_id      TEXT NOT NULL,
//	    outcome     TEXT NOT NULL,
//	    terminal    BOOLEAN NOT NULL,
//	    match_score DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    reason      TEXT NOT NULL DEFAULT '',
//	    receipt_id  TEXT NOT NULL DEFAULT '',
//	    company     TEXT NOT NULL DEFAULT '',
//	    role        TEXT NOT NULL DEFAULT '',
//	    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//	CREATE UNIQUE INDEX applications_terminal_idx
//	    ON applications (user_id, job_id) WHERE terminal;
//
// The partial unique index is the dedup authority: two terminal rows for the
// same (user, job) cannot exist regardless of writer interleaving.
type PostgresLedger struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgresLedger(pool *pgxpool.Pool, logger *zap.Logger) *PostgresLedger {
	return &PostgresLedger{pool: pool, logger: logger}
}

func (p *PostgresLedger) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	tag, err := p.pool.Exec(ctx, `
		INSERT INTO applications
			(id, user_id, job_id, outcome, terminal, match_score, reason, receipt_id, company, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id, job_id) WHERE terminal DO NOTHING`,
		e.ID, e.UserID, e.JobID, string(e.Outcome), e.Outcome.Terminal(),
		e.MatchScore, e.Reason, e.ReceiptID, e.Company, e.Role, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("recording history entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		p.logger.Debug("duplicate terminal entry dropped",
			zap.String("user", e.UserID), zap.String("job", e.JobID))
		return ErrDuplicateTerminal
	}
	return nil
}

func (p *PostgresLedger) Has(ctx context.Context, userID, jobID string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM applications
			WHERE user_id = $1 AND job_id = $2 AND terminal)`,
		userID, jobID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking history: %w", err)
	}
	return exists, nil
}

func (p *PostgresLedger) TerminalJobs(ctx context.Context, userID string) (map[string]bool, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT job_id FROM applications
		WHERE user_id = $1 AND terminal`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading terminal jobs: %w", err)
	}
	defer rows.Close()

	jobs := make(map[string]bool)
	for rows.Next() {
		var jobID string
		if err := rows.Scan(&jobID); err != nil {
			return nil, err
		}
		jobs[jobID] = true
	}
	return jobs, rows.Err()
}

func (p *PostgresLedger) List(ctx context.Context, userID string, f Filter) ([]*Entry, error) {
	query := `
		SELECT id, user_id, job_id, outcome, match_score, reason, receipt_id, company, role, created_at
		FROM applications
		WHERE user_id = $1`
	args := []any{userID}

	if f.Outcome != "" {
		args = append(args, string(f.Outcome))
		query += fmt.Sprintf(" AND outcome = $%d", len(args))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *PostgresLedger) CountAppliedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := p.pool.QueryRow(ctx, `
		SELECT count(*) FROM applications
		WHERE user_id = $1 AND outcome = $2 AND created_at >= $3`,
		userID, string(OutcomeApplied), since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting applications: %w", err)
	}
	return count, nil
}

func (p *PostgresLedger) FailureCount(ctx context.Context, userID, jobID string) (int, error) {
	var count int
	err := p.pool.QueryRow(ctx, `
		SELECT count(*) FROM applications
		WHERE user_id = $1 AND job_id = $2 AND outcome = $3`,
		userID, jobID, string(OutcomeFailed),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting failures: %w", err)
	}
	return count, nil
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var (
		e       Entry
		outcome string
	)
	err := row.Scan(&e.ID, &e.UserID, &e.JobID, &outcome, &e.MatchScore,
		&e.Reason, &e.ReceiptID, &e.Company, &e.Role, &e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scanning history entry: %w", err)
	}
	e.Outcome = Outcome(outcome)
	return &e, nil
}
