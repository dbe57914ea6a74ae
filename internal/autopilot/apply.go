package autopilot

import (
	"fmt"
	"strings"

	"github.com/Rishu22889/ai-apply/internal/portal"
	"github.com/Rishu22889/ai-apply/internal/profile"
	"github.com/Rishu22889/ai-apply/internal/ranking"
)

// buildApplication assembles the submission payload from the profile and the
// ranked listing.
func buildApplication(p *profile.Profile, job *ranking.RankedJob) *portal.Application {
	return &portal.Application{
		ApplicantName: p.BasicInfo.Name,
		Email:         p.BasicInfo.Email,
		Phone:         p.BasicInfo.Phone,
		Location:      p.BasicInfo.Location,
		CoverLetter:   coverLetter(p, job),
		Skills:        strings.Join(p.Skills, ", "),
		Education:     educationLine(p),
	}
}

// coverLetter produces a short letter grounded in the overlap between the
// profile's skills and the listing's requirements.
func coverLetter(p *profile.Profile, job *ranking.RankedJob) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Dear %s hiring team,\n\n", job.Company)
	fmt.Fprintf(&b, "I am applying for the %s position.", job.Role)

	if len(job.MatchedSkills) > 0 {
		fmt.Fprintf(&b, " My experience with %s lines up directly with what you are looking for.",
			strings.Join(job.MatchedSkills, ", "))
	} else if len(p.Skills) > 0 {
		fmt.Fprintf(&b, " I bring hands-on experience with %s.", strings.Join(p.Skills, ", "))
	}

	if years := p.ExperienceYears(); years > 0 {
		fmt.Fprintf(&b, " I have %d years of professional experience", years)
		if len(p.Experience) > 0 {
			fmt.Fprintf(&b, ", most recently as %s at %s", p.Experience[0].Role, p.Experience[0].Company)
		}
		b.WriteString(".")
	}

	fmt.Fprintf(&b, "\n\nBest regards,\n%s", p.BasicInfo.Name)
	return b.String()
}

func educationLine(p *profile.Profile) string {
	if len(p.Education) == 0 {
		return ""
	}

	e := p.Education[0]
	parts := make([]string, 0, 3)
	if e.Degree != "" {
		parts = append(parts, e.Degree)
	}
	if e.Field != "" {
		parts = append(parts, e.Field)
	}
	if e.Institution != "" {
		parts = append(parts, e.Institution)
	}
	return strings.Join(parts, ", ")
}
