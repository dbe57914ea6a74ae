package classify

import (
	"github.com/Rishu22889/ai-apply/internal/profile"
	"github.com/Rishu22889/ai-apply/internal/ranking"
)

// Status is the application-eligibility state of one ranked job within a
// single orchestration cycle.
type Status string

const (
	// StatusAnalyzing is the zero value: the job has not been classified yet.
	StatusAnalyzing         Status = "analyzing"
	StatusWillApply         Status = "will_apply"
	StatusApplied           Status = "applied"
	StatusRejectedByAI      Status = "rejected_by_ai"
	StatusBlocked           Status = "blocked"
	StatusSkippedPreviously Status = "skipped_previously"
)

// ClassifiedJob pairs a ranked job with its eligibility state. It exists only
// within one cycle's output and keeps the gateway's ordering.
type ClassifiedJob struct {
	*ranking.RankedJob
	Status Status `json:"status"`
	// Reason names the rule that produced a non-eligible status.
	Reason string `json:"reason,omitempty"`
}

// Summary counts one cycle's classifications plus the run results.
type Summary struct {
	TotalFound      int `json:"total_found"`
	WillApply       int `json:"will_apply"`
	Applied         int `json:"applied"`
	Failed          int `json:"failed"`
	RejectedByAI    int `json:"rejected_by_ai"`
	Blocked         int `json:"blocked"`
	SkippedPrevious int `json:"skipped_previously"`
}

// Classify maps one ranked job onto its eligibility state. The rule order is
// a contract, first match wins:
//
//  1. a terminal history entry exists for the job
//  2. the company is blocked
//  3. the match score is below the user's floor
//  4. a hard constraint (location, visa, experience) fails
//  5. otherwise the job is eligible
//
// History dominates: a job that was already attempted is never re-evaluated
// against constraints, so constraint changes between cycles cannot make it
// oscillate.
func Classify(job *ranking.RankedJob, p *profile.Profile, terminal map[string]bool) (Status, string) {
	if terminal[job.JobID] {
		return StatusSkippedPreviously, "already processed in a previous run"
	}

	if p.Constraints.CompanyBlocked(job.Company) {
		return StatusBlocked, "company is in the blocked list"
	}

	if job.MatchScore < p.Constraints.MinMatchScore {
		return StatusRejectedByAI, "match score below the configured minimum"
	}

	if ok, reason := EvaluateConstraints(job, p); !ok {
		return StatusBlocked, reason
	}

	return StatusWillApply, ""
}

// ClassifyAll classifies every job, preserving the input (gateway) order, and
// tallies the pre-run summary. Every job receives exactly one status.
func ClassifyAll(jobs []*ranking.RankedJob, p *profile.Profile, terminal map[string]bool) ([]*ClassifiedJob, *Summary) {
	classified := make([]*ClassifiedJob, 0, len(jobs))
	summary := &Summary{TotalFound: len(jobs)}

	for _, job := range jobs {
		status, reason := Classify(job, p, terminal)
		classified = append(classified, &ClassifiedJob{
			RankedJob: job,
			Status:    status,
			Reason:    reason,
		})

		switch status {
		case StatusWillApply:
			summary.WillApply++
		case StatusRejectedByAI:
			summary.RejectedByAI++
		case StatusBlocked:
			summary.Blocked++
		case StatusSkippedPreviously:
			summary.SkippedPrevious++
		}
	}

	return classified, summary
}
