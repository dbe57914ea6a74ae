package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresStore persists profile documents as JSONB, one row per user.
//
// Schema:
//
//	CREATE TABLE IF NOT EXISTS profiles (
//	    user_id    TEXT PRIMARY KEY,
//	    document   JSONB NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
type PostgresStore struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgresStore(db *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{db: db, logger: logger}
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (*Profile, error) {
	var raw []byte
	err := s.db.QueryRow(ctx,
		`SELECT document FROM profiles WHERE user_id = $1`, userID,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query profile: %w", err)
	}

	p := &Profile{}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("decode profile document: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) Save(ctx context.Context, userID string, p *Profile) error {
	copied, err := clone(p)
	if err != nil {
		return err
	}
	if err := copied.Validate(); err != nil {
		return err
	}

	raw, err := json.Marshal(copied)
	if err != nil {
		return fmt.Errorf("encode profile document: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO profiles (user_id, document, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			document = EXCLUDED.document,
			updated_at = NOW()
	`, userID, raw)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}

	s.logger.Debug("profile saved", zap.String("user_id", userID))
	return nil
}

// ApplyPatch reads, patches and writes back inside one transaction so
// concurrent patches for the same user cannot interleave their read-modify-
// write cycles.
func (s *PostgresStore) ApplyPatch(ctx context.Context, userID, path string, value any) (*Profile, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin patch transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var raw []byte
	err = tx.QueryRow(ctx,
		`SELECT document FROM profiles WHERE user_id = $1 FOR UPDATE`, userID,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query profile for patch: %w", err)
	}

	current := &Profile{}
	if err := json.Unmarshal(raw, current); err != nil {
		return nil, fmt.Errorf("decode profile document: %w", err)
	}

	next, err := applyPatch(current, path, value)
	if err != nil {
		return nil, err
	}

	raw, err = json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("encode patched document: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE profiles SET document = $2, updated_at = NOW() WHERE user_id = $1`,
		userID, raw,
	); err != nil {
		return nil, fmt.Errorf("store patched document: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit patch: %w", err)
	}

	s.logger.Debug("profile patched",
		zap.String("user_id", userID),
		zap.String("path", path),
	)

	return next, nil
}
