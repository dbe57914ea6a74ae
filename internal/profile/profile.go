package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// MaxPrimarySkills caps the number of primary skills a profile may highlight.
const MaxPrimarySkills = 7

var (
	// ErrNotFound is returned when no profile exists for the requested user.
	ErrNotFound = errors.New("profile not found")
	// ErrInvalidPatch is returned when a patch would leave the profile in an
	// invalid state. The stored profile is unchanged.
	ErrInvalidPatch = errors.New("invalid profile patch")
)

// Profile is the persistent resume and constraint document for one user.
type Profile struct {
	BasicInfo  BasicInfo         `json:"basic_info"`
	Education  []EducationEntry  `json:"education"`
	Projects   []ProjectEntry    `json:"projects"`
	Experience []ExperienceEntry `json:"experience"`
	// SkillVocab is the complete skill vocabulary.
	SkillVocab []string `json:"skill_vocab"`
	// Skills is the primary subset. Invariant: Skills is a subset of
	// SkillVocab and holds at most MaxPrimarySkills entries.
	Skills      []string    `json:"skills"`
	Constraints Constraints `json:"constraints"`
}

type BasicInfo struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Location string `json:"location,omitempty"`
}

type EducationEntry struct {
	Institution string `json:"institution"`
	Degree      string `json:"degree,omitempty"`
	Field       string `json:"field,omitempty"`
	StartYear   int    `json:"start_year,omitempty"`
	EndYear     int    `json:"end_year,omitempty"`
}

type ProjectEntry struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Skills      []string `json:"skills,omitempty"`
	URLs        []string `json:"urls,omitempty"`
}

type ExperienceEntry struct {
	Company        string `json:"company"`
	Role           string `json:"role"`
	DurationMonths int    `json:"duration_months"`
	Description    string `json:"description,omitempty"`
}

// Constraints are the user-configured eligibility rules applied before any
// application is fired.
type Constraints struct {
	PreferredLocations []string `json:"preferred_locations,omitempty"`
	StartDate          string   `json:"start_date,omitempty"`
	MaxAppsPerDay      int      `json:"max_apps_per_day"`
	MinMatchScore      float64  `json:"min_match_score"`
	VisaRequired       bool     `json:"visa_required"`
	BlockedCompanies   []string `json:"blocked_companies,omitempty"`
}

// Store owns profile documents keyed by user id.
type Store interface {
	Get(ctx context.Context, userID string) (*Profile, error)
	Save(ctx context.Context, userID string, p *Profile) error
	// ApplyPatch mutates a single dot-addressed path inside the stored
	// document and re-validates the result before persisting it.
	ApplyPatch(ctx context.Context, userID, path string, value any) (*Profile, error)
}

// ExperienceYears derives a rough experience estimate from the recorded
// experience entries, in whole years.
func (p *Profile) ExperienceYears() int {
	months := 0
	for _, e := range p.Experience {
		if e.DurationMonths > 0 {
			months += e.DurationMonths
		}
	}
	return months / 12
}

// CompanyBlocked reports whether the company is on the blocklist.
// Comparison ignores case and surrounding whitespace.
func (c *Constraints) CompanyBlocked(company string) bool {
	company = strings.TrimSpace(strings.ToLower(company))
	for _, blocked := range c.BlockedCompanies {
		if strings.TrimSpace(strings.ToLower(blocked)) == company {
			return true
		}
	}
	return false
}

// Validate checks the document invariants and normalizes the primary skill
// list: entries missing from SkillVocab are dropped in place. It returns an
// error for violations that cannot be repaired by normalization.
func (p *Profile) Validate() error {
	if p.Constraints.MaxAppsPerDay <= 0 {
		return fmt.Errorf("%w: constraints.max_apps_per_day must be positive", ErrInvalidPatch)
	}
	if p.Constraints.MinMatchScore < 0 || p.Constraints.MinMatchScore > 1 {
		return fmt.Errorf("%w: constraints.min_match_score must be within [0,1]", ErrInvalidPatch)
	}
	if len(p.Skills) > MaxPrimarySkills {
		return fmt.Errorf("%w: at most %d primary skills are allowed", ErrInvalidPatch, MaxPrimarySkills)
	}

	vocab := make(map[string]struct{}, len(p.SkillVocab))
	for _, s := range p.SkillVocab {
		vocab[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}

	kept := p.Skills[:0]
	for _, s := range p.Skills {
		if _, ok := vocab[strings.ToLower(strings.TrimSpace(s))]; ok {
			kept = append(kept, s)
		}
	}
	p.Skills = kept

	return nil
}
