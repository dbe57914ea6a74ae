package profile

import (
	"context"
	"errors"
	"testing"
)

func storedProfile() *Profile {
	return &Profile{
		BasicInfo: BasicInfo{Name: "Jordan Smith", Email: "jordan@example.com", Location: "Berlin"},
		Education: []EducationEntry{
			{Institution: "TU Berlin", Degree: "BSc", Field: "Computer Science"},
		},
		Projects: []ProjectEntry{
			{Name: "search service", Skills: []string{"Go", "Postgres"}},
		},
		Experience: []ExperienceEntry{
			{Company: "Initech", Role: "Backend Engineer", DurationMonths: 30},
		},
		SkillVocab: []string{"Go", "Python", "Postgres", "Docker"},
		Skills:     []string{"Go", "Postgres"},
		Constraints: Constraints{
			PreferredLocations: []string{"Berlin"},
			MaxAppsPerDay:      5,
			MinMatchScore:      0.7,
		},
	}
}

func newStoreWithProfile(t *testing.T) *MemoryStore {
	t.Helper()

	store := NewMemoryStore()
	if err := store.Save(context.Background(), "u1", storedProfile()); err != nil {
		t.Fatalf("seeding store: %v", err)
	}
	return store
}

func TestApplyPatchScalarField(t *testing.T) {
	store := newStoreWithProfile(t)

	p, err := store.ApplyPatch(context.Background(), "u1", "basic_info.location", "Munich")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.BasicInfo.Location != "Munich" {
		t.Fatalf("expected location Munich, got %q", p.BasicInfo.Location)
	}
	if p.BasicInfo.Name != "Jordan Smith" {
		t.Fatalf("sibling field was clobbered: %q", p.BasicInfo.Name)
	}
}

func TestApplyPatchConstraint(t *testing.T) {
	store := newStoreWithProfile(t)

	p, err := store.ApplyPatch(context.Background(), "u1", "constraints.min_match_score", 0.9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Constraints.MinMatchScore != 0.9 {
		t.Fatalf("expected min score 0.9, got %v", p.Constraints.MinMatchScore)
	}
}

func TestApplyPatchArrayElement(t *testing.T) {
	store := newStoreWithProfile(t)

	p, err := store.ApplyPatch(context.Background(), "u1", "projects.0.name", "matching engine")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Projects[0].Name != "matching engine" {
		t.Fatalf("expected renamed project, got %q", p.Projects[0].Name)
	}
	if len(p.Projects[0].Skills) != 2 {
		t.Fatalf("project skills were lost")
	}
}

func TestApplyPatchArrayAppend(t *testing.T) {
	store := newStoreWithProfile(t)

	p, err := store.ApplyPatch(context.Background(), "u1", "experience.1", map[string]any{
		"company":         "Hooli",
		"role":            "Platform Engineer",
		"duration_months": 12,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Experience) != 2 {
		t.Fatalf("expected appended entry, got %d entries", len(p.Experience))
	}
	if p.Experience[1].Company != "Hooli" {
		t.Fatalf("unexpected appended entry: %+v", p.Experience[1])
	}
}

func TestApplyPatchRejectsInvalid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		path  string
		value any
	}{
		{"unknown field", "basic_info.nickname", "J"},
		{"empty path", "", "x"},
		{"empty segment", "basic_info..name", "x"},
		{"array hole", "experience.5", map[string]any{"company": "X"}},
		{"negative index", "experience.-1", map[string]any{"company": "X"}},
		{"zero daily cap", "constraints.max_apps_per_day", 0},
		{"score out of range", "constraints.min_match_score", 1.5},
		{"skill outside vocabulary", "skills", []string{"Go", "COBOL"}},
		{"eighth skill", "skills", []string{"Go", "Python", "Postgres", "Docker", "Go", "Python", "Postgres", "Docker"}},
		{"type mismatch", "constraints.max_apps_per_day", "many"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newStoreWithProfile(t)

			if _, err := store.ApplyPatch(context.Background(), "u1", tc.path, tc.value); !errors.Is(err, ErrInvalidPatch) {
				t.Fatalf("expected ErrInvalidPatch, got %v", err)
			}

			// A failed patch must leave the stored profile untouched.
			p, err := store.Get(context.Background(), "u1")
			if err != nil {
				t.Fatalf("reading profile back: %v", err)
			}
			if p.Constraints.MaxAppsPerDay != 5 || len(p.Skills) != 2 {
				t.Fatalf("stored profile was modified by a rejected patch: %+v", p)
			}
		})
	}
}

func TestApplyPatchVocabShrinkDropsOrphans(t *testing.T) {
	store := newStoreWithProfile(t)

	// Removing Postgres from the vocabulary orphans the primary skill; the
	// patch succeeds and the orphan is dropped.
	p, err := store.ApplyPatch(context.Background(), "u1", "skill_vocab", []string{"Go", "Python"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Skills) != 1 || p.Skills[0] != "Go" {
		t.Fatalf("expected orphaned skill to be dropped, got %v", p.Skills)
	}
}

func TestApplyPatchUnknownUser(t *testing.T) {
	store := NewMemoryStore()

	if _, err := store.ApplyPatch(context.Background(), "nobody", "skills", []string{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
