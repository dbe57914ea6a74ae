package classify

import (
	"strings"

	"github.com/Rishu22889/ai-apply/internal/profile"
	"github.com/Rishu22889/ai-apply/internal/ranking"
)

// EvaluateConstraints applies the hard per-job eligibility checks. Every
// check is pass/fail; nuanced trade-offs belong to the AI score, not here.
// The first failing check's name is returned as the reason.
func EvaluateConstraints(job *ranking.RankedJob, p *profile.Profile) (bool, string) {
	if !locationAllowed(job.Location, p.Constraints.PreferredLocations) {
		return false, "location is not in the preferred list"
	}

	if p.Constraints.VisaRequired && !job.VisaSponsorship {
		// A listing that says nothing about sponsorship does not sponsor.
		return false, "job does not declare visa sponsorship"
	}

	if ok := experienceAllowed(job.MinExperienceYears, p); !ok {
		return false, "job requires more experience than the profile shows"
	}

	return true, ""
}

// locationAllowed matches case-insensitively on substrings; an empty
// preference set means no restriction.
func locationAllowed(location string, preferred []string) bool {
	if len(preferred) == 0 {
		return true
	}

	location = strings.ToLower(location)
	for _, want := range preferred {
		want = strings.TrimSpace(strings.ToLower(want))
		if want == "" {
			continue
		}
		if strings.Contains(location, want) {
			return true
		}
	}
	return false
}

// experienceAllowed compares the job's stated minimum against the estimate
// derived from the profile's experience entries, with one year of
// flexibility. A job without a stated requirement skips the check.
func experienceAllowed(minYears int, p *profile.Profile) bool {
	if minYears <= 0 {
		return true
	}
	return minYears <= p.ExperienceYears()+1
}
