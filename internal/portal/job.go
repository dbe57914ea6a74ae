package portal

// Job is one listing from the job inventory.
type Job struct {
	ID                 string   `json:"job_id" mapstructure:"job_id"`
	Role               string   `json:"role"`
	Company            string   `json:"company"`
	Location           string   `json:"location"`
	JobType            string   `json:"job_type,omitempty" mapstructure:"job_type"`
	SalaryRange        string   `json:"salary_range,omitempty" mapstructure:"salary_range"`
	RequiredSkills     []string `json:"required_skills,omitempty" mapstructure:"required_skills"`
	MinExperienceYears int      `json:"min_experience_years,omitempty" mapstructure:"min_experience_years"`
	// VisaSponsorship is absent from most listings; absence means the
	// employer does not sponsor.
	VisaSponsorship bool   `json:"visa_sponsorship,omitempty" mapstructure:"visa_sponsorship"`
	Description     string `json:"description,omitempty"`
	PostedAt        string `json:"posted_at,omitempty" mapstructure:"posted_at"`
}

// Application is the submission payload for one job.
type Application struct {
	ApplicantName string `json:"applicant_name"`
	Email         string `json:"email"`
	Phone         string `json:"phone,omitempty"`
	Location      string `json:"location,omitempty"`
	CoverLetter   string `json:"cover_letter"`
	Skills        string `json:"skills"`
	Education     string `json:"education,omitempty"`
}

// Outcome is the submission service's verdict for one application attempt.
type Outcome string

const (
	// OutcomeAccepted and OutcomeRejected are terminal.
	OutcomeAccepted Outcome = "accepted"
	OutcomeRejected Outcome = "rejected"
	// OutcomeError is transient; the attempt may be repeated in a later run.
	OutcomeError Outcome = "error"
)

// Receipt identifies an accepted submission inside the portal.
type Receipt struct {
	ID            string `json:"receipt_id" mapstructure:"receipt_id"`
	ApplicationID string `json:"application_id,omitempty" mapstructure:"application_id"`
}
