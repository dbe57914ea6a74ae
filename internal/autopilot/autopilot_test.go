package autopilot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Rishu22889/ai-apply/internal/classify"
	"github.com/Rishu22889/ai-apply/internal/history"
	"github.com/Rishu22889/ai-apply/internal/portal"
	"github.com/Rishu22889/ai-apply/internal/profile"
	"github.com/Rishu22889/ai-apply/internal/ranking"
)

type stubGateway struct {
	scores map[string]float64
}

func (s *stubGateway) Rank(_ context.Context, _ *profile.Profile, jobs []*portal.Job) ([]*ranking.RankedJob, error) {
	ranked := make([]*ranking.RankedJob, 0, len(jobs))
	for _, job := range jobs {
		r := ranking.FromJob(job)
		r.MatchScore = s.scores[job.ID]
		ranked = append(ranked, r)
	}
	ranking.SortByScore(ranked)
	return ranked, nil
}

type stubPortal struct {
	mu        sync.Mutex
	jobs      []*portal.Job
	inactive  bool
	submitted []string
	results   map[string]*portal.SubmitResult
}

func (s *stubPortal) Jobs(_ context.Context) ([]*portal.Job, error) {
	return s.jobs, nil
}

func (s *stubPortal) Status(_ context.Context) (*portal.PortalStatus, error) {
	status := "active"
	if s.inactive {
		status = "paused"
	}
	return &portal.PortalStatus{Status: status, JobCount: len(s.jobs)}, nil
}

func (s *stubPortal) Submit(_ context.Context, jobID string, _ *portal.Application) (*portal.SubmitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.submitted = append(s.submitted, jobID)
	if result, ok := s.results[jobID]; ok {
		return result, nil
	}
	return &portal.SubmitResult{
		Outcome: portal.OutcomeAccepted,
		Receipt: &portal.Receipt{ID: "r-" + jobID},
	}, nil
}

func (s *stubPortal) submissions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.submitted))
	copy(out, s.submitted)
	return out
}

func testProfile() *profile.Profile {
	return &profile.Profile{
		BasicInfo:  profile.BasicInfo{Name: "Jordan Smith", Email: "jordan@example.com", Location: "Berlin"},
		Experience: []profile.ExperienceEntry{{Company: "Initech", Role: "Backend Engineer", DurationMonths: 48}},
		SkillVocab: []string{"Go", "Postgres"},
		Skills:     []string{"Go", "Postgres"},
		Constraints: profile.Constraints{
			MaxAppsPerDay:    10,
			MinMatchScore:    0.7,
			BlockedCompanies: []string{"Globex"},
		},
	}
}

func job(id, company string) *portal.Job {
	return &portal.Job{ID: id, Role: "Backend Engineer", Company: company, Location: "Berlin"}
}

type fixture struct {
	orchestrator *Orchestrator
	profiles     *profile.MemoryStore
	ledger       *history.MemoryLedger
	portal       *stubPortal
}

func newFixture(t *testing.T, cfg Config, p *stubPortal, scores map[string]float64) *fixture {
	t.Helper()

	profiles := profile.NewMemoryStore()
	if err := profiles.Save(context.Background(), "u1", testProfile()); err != nil {
		t.Fatalf("saving profile: %v", err)
	}
	ledger := history.NewMemoryLedger()

	o := New(profiles, ledger, p, &stubGateway{scores: scores}, cfg, zap.NewNop())
	t.Cleanup(o.Close)

	return &fixture{orchestrator: o, profiles: profiles, ledger: ledger, portal: p}
}

func waitForPhase(t *testing.T, o *Orchestrator, userID string, want Phase) *State {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		state := o.Status(userID)
		if state.Phase == want {
			return state
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for phase %s, last phase %s", want, o.Status(userID).Phase)
	return nil
}

func TestRunOnceAppliesEligibleJobs(t *testing.T) {
	stub := &stubPortal{
		jobs: []*portal.Job{job("acme-1", "Acme"), job("globex-1", "Globex"), job("low-1", "Initrode")},
	}
	f := newFixture(t, Config{}, stub, map[string]float64{
		"acme-1": 0.9, "globex-1": 0.95, "low-1": 0.2,
	})

	summary, err := f.orchestrator.RunOnce(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.TotalFound != 3 || summary.WillApply != 1 || summary.Applied != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Blocked != 1 || summary.RejectedByAI != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	if got := stub.submissions(); len(got) != 1 || got[0] != "acme-1" {
		t.Fatalf("expected exactly one submission to acme-1, got %v", got)
	}

	entries, err := f.ledger.List(context.Background(), "u1", history.Filter{})
	if err != nil {
		t.Fatalf("listing history: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one history entry, got %d", len(entries))
	}
	e := entries[0]
	if e.JobID != "acme-1" || e.Outcome != history.OutcomeApplied || e.ReceiptID != "r-acme-1" {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestSecondCycleSkipsProcessedJobs(t *testing.T) {
	stub := &stubPortal{jobs: []*portal.Job{job("acme-1", "Acme")}}
	f := newFixture(t, Config{}, stub, map[string]float64{"acme-1": 0.9})

	if _, err := f.orchestrator.RunOnce(context.Background(), "u1"); err != nil {
		t.Fatalf("first run: %v", err)
	}
	summary, err := f.orchestrator.RunOnce(context.Background(), "u1")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if summary.SkippedPrevious != 1 || summary.Applied != 0 {
		t.Fatalf("expected the job to be skipped on the second cycle, got %+v", summary)
	}
	if got := stub.submissions(); len(got) != 1 {
		t.Fatalf("expected no second submission, got %v", got)
	}
}

func TestFailedSubmissionDoesNotHaltRun(t *testing.T) {
	stub := &stubPortal{
		jobs: []*portal.Job{job("fail-1", "Acme"), job("ok-1", "Acme")},
		results: map[string]*portal.SubmitResult{
			"fail-1": {Outcome: portal.OutcomeError, Reason: "portal hiccup"},
		},
	}
	f := newFixture(t, Config{}, stub, map[string]float64{"fail-1": 0.95, "ok-1": 0.9})

	summary, err := f.orchestrator.RunOnce(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Applied != 1 || summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if got := stub.submissions(); len(got) != 2 {
		t.Fatalf("expected both jobs attempted, got %v", got)
	}

	// The failure is recorded but stays non-terminal.
	count, err := f.ledger.FailureCount(context.Background(), "u1", "fail-1")
	if err != nil {
		t.Fatalf("failure count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one recorded failure, got %d", count)
	}
	has, err := f.ledger.Has(context.Background(), "u1", "fail-1")
	if err != nil {
		t.Fatalf("has: %v", err)
	}
	if has {
		t.Fatalf("transient failure must not be terminal")
	}
}

func TestPortalRejectionIsTerminal(t *testing.T) {
	stub := &stubPortal{
		jobs: []*portal.Job{job("rej-1", "Acme")},
		results: map[string]*portal.SubmitResult{
			"rej-1": {Outcome: portal.OutcomeRejected, Reason: "position filled"},
		},
	}
	f := newFixture(t, Config{}, stub, map[string]float64{"rej-1": 0.9})

	if _, err := f.orchestrator.Trigger(context.Background(), "u1"); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	waitForPhase(t, f.orchestrator, "u1", PhaseIdle)

	has, err := f.ledger.Has(context.Background(), "u1", "rej-1")
	if err != nil {
		t.Fatalf("has: %v", err)
	}
	if !has {
		t.Fatalf("expected rejection to be recorded as terminal")
	}

	// The published list must agree with the ledger, not keep reporting the
	// job as eligible.
	classified := f.orchestrator.Classified("u1")
	if len(classified) != 1 {
		t.Fatalf("expected one classified job, got %d", len(classified))
	}
	if classified[0].Status != classify.StatusSkippedPreviously {
		t.Fatalf("expected rejected job to leave will_apply, got %s", classified[0].Status)
	}
	if classified[0].Reason != "position filled" {
		t.Fatalf("expected the portal reason, got %q", classified[0].Reason)
	}

	// The next cycle never touches the job again.
	summary, err := f.orchestrator.RunOnce(context.Background(), "u1")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.SkippedPrevious != 1 {
		t.Fatalf("expected the rejected job to be skipped, got %+v", summary)
	}
	if got := stub.submissions(); len(got) != 1 {
		t.Fatalf("expected a single submission attempt, got %v", got)
	}
}

func TestDailyCapStopsSubmissions(t *testing.T) {
	stub := &stubPortal{
		jobs: []*portal.Job{job("a", "Acme"), job("b", "Acme"), job("c", "Acme"), job("d", "Acme")},
	}
	f := newFixture(t, Config{}, stub, map[string]float64{"a": 0.9, "b": 0.89, "c": 0.88, "d": 0.87})

	p, err := f.profiles.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("loading profile: %v", err)
	}
	p.Constraints.MaxAppsPerDay = 2
	if err := f.profiles.Save(context.Background(), "u1", p); err != nil {
		t.Fatalf("saving profile: %v", err)
	}

	summary, err := f.orchestrator.RunOnce(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Applied != 2 {
		t.Fatalf("expected 2 applications under the cap, got %d", summary.Applied)
	}
	if got := stub.submissions(); len(got) != 2 {
		t.Fatalf("expected 2 submissions, got %v", got)
	}
}

func TestDailyCapAlreadyExhausted(t *testing.T) {
	stub := &stubPortal{jobs: []*portal.Job{job("a", "Acme"), job("b", "Acme")}}
	f := newFixture(t, Config{}, stub, map[string]float64{"a": 0.9, "b": 0.85})

	ctx := context.Background()

	p, err := f.profiles.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("loading profile: %v", err)
	}
	p.Constraints.MaxAppsPerDay = 3
	if err := f.profiles.Save(ctx, "u1", p); err != nil {
		t.Fatalf("saving profile: %v", err)
	}

	for _, jobID := range []string{"x", "y", "z"} {
		err := f.ledger.Record(ctx, &history.Entry{
			UserID:  "u1",
			JobID:   jobID,
			Outcome: history.OutcomeApplied,
		})
		if err != nil {
			t.Fatalf("seeding applied entry: %v", err)
		}
	}

	summary, err := f.orchestrator.RunOnce(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Applied != 0 || len(stub.submissions()) != 0 {
		t.Fatalf("expected no submissions with the cap already reached, got %+v", summary)
	}
}

func TestExhaustedFailuresParkJob(t *testing.T) {
	stub := &stubPortal{jobs: []*portal.Job{job("flaky", "Acme")}}
	f := newFixture(t, Config{}, stub, map[string]float64{"flaky": 0.9})

	ctx := context.Background()
	for i := 0; i < MaxSubmitFailures; i++ {
		err := f.ledger.Record(ctx, &history.Entry{
			UserID:  "u1",
			JobID:   "flaky",
			Outcome: history.OutcomeFailed,
			Reason:  "portal hiccup",
		})
		if err != nil {
			t.Fatalf("seeding failure %d: %v", i, err)
		}
	}

	summary, err := f.orchestrator.RunOnce(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(stub.submissions()) != 0 {
		t.Fatalf("expected no submission for a parked job")
	}
	if summary.SkippedPrevious != 1 {
		t.Fatalf("expected job to be parked, got %+v", summary)
	}

	has, err := f.ledger.Has(ctx, "u1", "flaky")
	if err != nil {
		t.Fatalf("has: %v", err)
	}
	if !has {
		t.Fatalf("expected a terminal parked entry")
	}
}

func TestInactivePortalSkipsSubmissions(t *testing.T) {
	stub := &stubPortal{jobs: []*portal.Job{job("a", "Acme")}, inactive: true}
	f := newFixture(t, Config{}, stub, map[string]float64{"a": 0.9})

	summary, err := f.orchestrator.RunOnce(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Applied != 0 || len(stub.submissions()) != 0 {
		t.Fatalf("expected no submissions against an inactive portal")
	}
}

func TestTriggerSingleFlight(t *testing.T) {
	stub := &stubPortal{jobs: []*portal.Job{job("a", "Acme")}}
	f := newFixture(t, Config{SettleDelay: 200 * time.Millisecond}, stub, map[string]float64{"a": 0.9})

	const attempts = 10

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	rejected := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orchestrator.Trigger(context.Background(), "u1")

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				accepted++
			} else if errors.Is(err, ErrRunActive) {
				rejected++
			}
		}()
	}
	wg.Wait()

	if accepted != 1 {
		t.Fatalf("expected exactly one trigger to win, got %d", accepted)
	}
	if rejected != attempts-1 {
		t.Fatalf("expected %d rejected triggers, got %d", attempts-1, rejected)
	}

	waitForPhase(t, f.orchestrator, "u1", PhaseIdle)
	if got := stub.submissions(); len(got) != 1 {
		t.Fatalf("expected the winning run to submit once, got %v", got)
	}
}

func TestClassifiedListVisibleDuringSettleDelay(t *testing.T) {
	stub := &stubPortal{jobs: []*portal.Job{job("a", "Acme")}}
	f := newFixture(t, Config{SettleDelay: 500 * time.Millisecond}, stub, map[string]float64{"a": 0.9})

	if _, err := f.orchestrator.Trigger(context.Background(), "u1"); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	// Before the settle delay elapses the classified list and summary must
	// already be published, with no submission fired yet.
	deadline := time.Now().Add(3 * time.Second)
	for len(f.orchestrator.Classified("u1")) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("classified list never published")
		}
		time.Sleep(5 * time.Millisecond)
	}

	state := f.orchestrator.Status("u1")
	if state.Phase != PhaseClassifying {
		t.Fatalf("expected the settle window to hold phase classifying, got %s", state.Phase)
	}
	if state.Summary == nil || state.Summary.WillApply != 1 {
		t.Fatalf("expected a published summary during the settle window, got %+v", state.Summary)
	}
	if got := stub.submissions(); len(got) != 0 {
		t.Fatalf("no submission may fire before the settle delay elapses, got %v", got)
	}

	waitForPhase(t, f.orchestrator, "u1", PhaseIdle)
	if got := stub.submissions(); len(got) != 1 {
		t.Fatalf("expected one submission after the settle delay, got %v", got)
	}
}

func TestDuplicateInventoryEntriesSubmitOnce(t *testing.T) {
	stub := &stubPortal{
		jobs: []*portal.Job{job("dup", "Acme"), job("dup", "Acme")},
	}
	f := newFixture(t, Config{}, stub, map[string]float64{"dup": 0.9})

	summary, err := f.orchestrator.RunOnce(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := stub.submissions(); len(got) != 1 {
		t.Fatalf("expected a single submission for a repeated job id, got %v", got)
	}
	if summary.Applied != 1 {
		t.Fatalf("expected one applied, got %d", summary.Applied)
	}

	entries, err := f.ledger.List(context.Background(), "u1", history.Filter{})
	if err != nil {
		t.Fatalf("listing history: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(entries))
	}
}

func TestCancelDuringSettleDelay(t *testing.T) {
	stub := &stubPortal{jobs: []*portal.Job{job("a", "Acme")}}
	f := newFixture(t, Config{SettleDelay: 5 * time.Second}, stub, map[string]float64{"a": 0.9})

	if _, err := f.orchestrator.Trigger(context.Background(), "u1"); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if !f.orchestrator.Cancel("u1") {
		t.Fatalf("expected an active run to cancel")
	}

	waitForPhase(t, f.orchestrator, "u1", PhaseIdle)

	if len(stub.submissions()) != 0 {
		t.Fatalf("cancelled run must not submit")
	}
	entries, err := f.ledger.List(context.Background(), "u1", history.Filter{})
	if err != nil {
		t.Fatalf("listing history: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("cancelled run must not record history, got %+v", entries)
	}
}

func TestTriggerSuppressedDuringCooldown(t *testing.T) {
	stub := &stubPortal{jobs: []*portal.Job{job("a", "Acme")}}
	f := newFixture(t, Config{Cooldown: 500 * time.Millisecond}, stub, map[string]float64{"a": 0.9})

	if _, err := f.orchestrator.Trigger(context.Background(), "u1"); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	waitForPhase(t, f.orchestrator, "u1", PhaseCooldown)

	if _, err := f.orchestrator.Trigger(context.Background(), "u1"); !errors.Is(err, ErrCooldown) {
		t.Fatalf("expected ErrCooldown, got %v", err)
	}

	waitForPhase(t, f.orchestrator, "u1", PhaseIdle)

	// After the cooldown a new run is accepted again.
	if _, err := f.orchestrator.Trigger(context.Background(), "u1"); err != nil {
		t.Fatalf("trigger after cooldown: %v", err)
	}
	waitForPhase(t, f.orchestrator, "u1", PhaseCooldown)
}

func TestCancelWithoutActiveRun(t *testing.T) {
	stub := &stubPortal{}
	f := newFixture(t, Config{}, stub, nil)

	if f.orchestrator.Cancel("u1") {
		t.Fatalf("expected cancel to report no active run")
	}
}

func TestStatusExposesSummaryAndClassifiedJobs(t *testing.T) {
	stub := &stubPortal{jobs: []*portal.Job{job("a", "Acme"), job("g", "Globex")}}
	f := newFixture(t, Config{}, stub, map[string]float64{"a": 0.9, "g": 0.95})

	if _, err := f.orchestrator.Trigger(context.Background(), "u1"); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	state := waitForPhase(t, f.orchestrator, "u1", PhaseIdle)

	if state.Summary == nil {
		t.Fatalf("expected a summary after the run")
	}
	if state.Summary.Applied != 1 {
		t.Fatalf("unexpected summary: %+v", state.Summary)
	}

	classified := f.orchestrator.Classified("u1")
	if len(classified) != 2 {
		t.Fatalf("expected 2 classified jobs, got %d", len(classified))
	}

	statuses := map[string]classify.Status{}
	for _, c := range classified {
		statuses[c.JobID] = c.Status
	}
	if statuses["a"] != classify.StatusApplied || statuses["g"] != classify.StatusBlocked {
		t.Fatalf("unexpected statuses: %v", statuses)
	}
}
