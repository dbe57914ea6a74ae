package ranking

import (
	"context"
	"sort"

	"github.com/Rishu22889/ai-apply/internal/portal"
	"github.com/Rishu22889/ai-apply/internal/profile"
)

// RankedJob is one inventory listing scored against a profile. It exists only
// within one orchestration cycle and is re-derived every time.
type RankedJob struct {
	JobID              string   `json:"job_id"`
	Role               string   `json:"role"`
	Company            string   `json:"company"`
	Location           string   `json:"location"`
	JobType            string   `json:"job_type,omitempty"`
	SalaryRange        string   `json:"salary_range,omitempty"`
	RequiredSkills     []string `json:"required_skills,omitempty"`
	MinExperienceYears int      `json:"min_experience_years,omitempty"`
	VisaSponsorship    bool     `json:"visa_sponsorship,omitempty"`
	MatchScore         float64  `json:"match_score"`
	MatchedSkills      []string `json:"matched_skills,omitempty"`
	AIReasoning        string   `json:"ai_reasoning,omitempty"`
}

// Gateway scores and orders inventory listings for a profile. Results are
// score-descending; identical input must produce identical scores. An empty
// inventory yields an empty result, not an error.
type Gateway interface {
	Rank(ctx context.Context, p *profile.Profile, jobs []*portal.Job) ([]*RankedJob, error)
}

// FromJob copies the listing fields of an inventory job into a RankedJob
// awaiting its score.
func FromJob(job *portal.Job) *RankedJob {
	return &RankedJob{
		JobID:              job.ID,
		Role:               job.Role,
		Company:            job.Company,
		Location:           job.Location,
		JobType:            job.JobType,
		SalaryRange:        job.SalaryRange,
		RequiredSkills:     job.RequiredSkills,
		MinExperienceYears: job.MinExperienceYears,
		VisaSponsorship:    job.VisaSponsorship,
	}
}

// SortByScore orders jobs score-descending with a deterministic tie-break on
// job id, so identical inputs always produce the same ordering.
func SortByScore(jobs []*RankedJob) {
	sort.SliceStable(jobs, func(i, j int) bool {
		if jobs[i].MatchScore != jobs[j].MatchScore {
			return jobs[i].MatchScore > jobs[j].MatchScore
		}
		return jobs[i].JobID < jobs[j].JobID
	})
}
