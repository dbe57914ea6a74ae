package history

import (
	"context"
	"errors"
	"time"
)

// Outcome is the resolved result of one submission attempt.
type Outcome string

const (
	// OutcomeApplied and OutcomeRejected are terminal: the job is never
	// processed again.
	OutcomeApplied  Outcome = "applied"
	OutcomeRejected Outcome = "rejected"
	// OutcomeSkipped is terminal; it parks jobs that exhausted their
	// submission attempts.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeFailed is non-terminal: the submission hit a transient error
	// and the job stays eligible for a later cycle.
	OutcomeFailed Outcome = "failed"
)

// Terminal reports whether the outcome permanently settles the (user, job)
// pair.
func (o Outcome) Terminal() bool {
	return o == OutcomeApplied || o == OutcomeRejected || o == OutcomeSkipped
}

// ErrDuplicateTerminal is returned when a terminal entry already exists for
// the (user, job) pair. The first entry wins; the ledger never holds two.
var ErrDuplicateTerminal = errors.New("terminal history entry already recorded for this job")

// Entry is one submission attempt record. Entries are append-only and never
// mutated after creation.
type Entry struct {
	ID      string  `json:"id"`
	UserID  string  `json:"user_id"`
	JobID   string  `json:"job_id"`
	Outcome Outcome `json:"outcome"`
	// MatchScore is the AI score at decision time.
	MatchScore float64   `json:"match_score"`
	Reason     string    `json:"reason,omitempty"`
	ReceiptID  string    `json:"receipt_id,omitempty"`
	Company    string    `json:"company,omitempty"`
	Role       string    `json:"role,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Filter narrows List results. Zero values mean "no restriction".
type Filter struct {
	Outcome Outcome
	Since   time.Time
	Limit   int
}

// Ledger is the durable per-user record of submission attempts. It is the
// dedup authority: at most one terminal entry exists per (user, job).
type Ledger interface {
	// Record appends one entry. A second terminal entry for the same
	// (user, job) is rejected with ErrDuplicateTerminal.
	Record(ctx context.Context, e *Entry) error
	// Has reports whether any terminal entry exists for the pair.
	Has(ctx context.Context, userID, jobID string) (bool, error)
	// TerminalJobs returns the set of job ids with a terminal entry.
	TerminalJobs(ctx context.Context, userID string) (map[string]bool, error)
	// List returns entries most recent first.
	List(ctx context.Context, userID string, f Filter) ([]*Entry, error)
	// CountAppliedSince counts terminal applied entries created at or after
	// the given time. The daily cap is enforced against this count.
	CountAppliedSince(ctx context.Context, userID string, since time.Time) (int, error)
	// FailureCount counts non-terminal failed entries for the pair, bounding
	// retries across cycles.
	FailureCount(ctx context.Context, userID, jobID string) (int, error)
}
