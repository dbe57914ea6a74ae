package autopilot

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Rishu22889/ai-apply/internal/classify"
	"github.com/Rishu22889/ai-apply/internal/history"
	"github.com/Rishu22889/ai-apply/internal/logger"
	"github.com/Rishu22889/ai-apply/internal/portal"
	"github.com/Rishu22889/ai-apply/internal/profile"
	"github.com/Rishu22889/ai-apply/internal/ranking"
	"github.com/Rishu22889/ai-apply/internal/utils"
)

// MaxSubmitFailures bounds how many transient submission failures a single
// job may accumulate across runs before it is parked for good.
const MaxSubmitFailures = 3

// Portal is the inventory and submission surface the orchestrator talks to.
// *portal.Client satisfies it.
type Portal interface {
	Jobs(ctx context.Context) ([]*portal.Job, error)
	Status(ctx context.Context) (*portal.PortalStatus, error)
	Submit(ctx context.Context, jobID string, app *portal.Application) (*portal.SubmitResult, error)
}

// Config tunes the orchestrator's timing.
type Config struct {
	// SettleDelay is how long a freshly triggered run waits before the
	// inventory snapshot is taken. Cancellation during the delay aborts the
	// run without side effects.
	SettleDelay time.Duration
	// Cooldown suppresses re-triggers after a run completes.
	Cooldown time.Duration
}

// Orchestrator drives the apply cycle: classify the inventory, submit every
// eligible job in order, record each attempt once. One run per user at a
// time.
type Orchestrator struct {
	profiles profile.Store
	ledger   history.Ledger
	portal   Portal
	gateway  ranking.Gateway
	cfg      Config
	logger   *zap.Logger

	mu    sync.Mutex
	users map[string]*userState

	// wg tracks in-flight run goroutines so Close can drain them.
	wg sync.WaitGroup
}

func New(profiles profile.Store, ledger history.Ledger, p Portal, gateway ranking.Gateway, cfg Config, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		profiles: profiles,
		ledger:   ledger,
		portal:   p,
		gateway:  gateway,
		cfg:      cfg,
		logger:   log,
		users:    make(map[string]*userState),
	}
}

func (o *Orchestrator) state(userID string) *userState {
	o.mu.Lock()
	defer o.mu.Unlock()

	s, ok := o.users[userID]
	if !ok {
		s = newUserState()
		o.users[userID] = s
	}
	return s
}

// Trigger starts a run for the user. When a run is already active the
// original run keeps going and ErrRunActive is returned; during cooldown the
// trigger is suppressed with ErrCooldown. On success the run id is returned
// immediately and the cycle proceeds in the background.
func (o *Orchestrator) Trigger(ctx context.Context, userID string) (string, error) {
	s := o.state(userID)
	runID := uuid.NewString()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := s.begin(runID, cancel); err != nil {
		cancel()
		return "", err
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer cancel()
		o.runCycle(runCtx, userID, runID, s)
	}()

	return runID, nil
}

// Cancel aborts the user's active run, if any. A run cancelled during the
// settle delay performs no submissions; one cancelled mid-run keeps the
// entries it already recorded.
func (o *Orchestrator) Cancel(userID string) bool {
	return o.state(userID).requestCancel()
}

// Status returns the user's current autopilot snapshot.
func (o *Orchestrator) Status(userID string) *State {
	return o.state(userID).snapshot()
}

// Classified returns the most recent cycle's classified job list in gateway
// order.
func (o *Orchestrator) Classified(userID string) []*classify.ClassifiedJob {
	return o.state(userID).snapshotClassified()
}

// Close cancels every active run and waits for the goroutines to drain.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	for _, s := range o.users {
		s.requestCancel()
	}
	o.mu.Unlock()
	o.wg.Wait()
}

// ClassifyOnce runs the classification half of a cycle synchronously. The CLI
// uses it to show the breakdown before asking for confirmation.
func (o *Orchestrator) ClassifyOnce(ctx context.Context, userID string) ([]*classify.ClassifiedJob, *classify.Summary, error) {
	log := logger.WithRun(o.logger, userID, uuid.NewString())
	return o.classifyCycle(ctx, userID, log)
}

// Apply submits every eligible job from a previously classified list,
// updating the list and summary in place.
func (o *Orchestrator) Apply(ctx context.Context, userID string, classified []*classify.ClassifiedJob, summary *classify.Summary) error {
	log := logger.WithRun(o.logger, userID, uuid.NewString())
	return o.submitEligible(ctx, userID, classified, summary, log)
}

// RunOnce executes one full cycle synchronously, bypassing the settle delay
// and cooldown.
func (o *Orchestrator) RunOnce(ctx context.Context, userID string) (*classify.Summary, error) {
	runID := uuid.NewString()
	log := logger.WithRun(o.logger, userID, runID)

	classified, summary, err := o.classifyCycle(ctx, userID, log)
	if err != nil {
		return nil, err
	}
	if err := o.submitEligible(ctx, userID, classified, summary, log); err != nil {
		return summary, err
	}
	return summary, nil
}

func (o *Orchestrator) runCycle(ctx context.Context, userID, runID string, s *userState) {
	log := logger.WithRun(o.logger, userID, runID)
	log.Info("run triggered")

	classified, summary, err := o.classifyCycle(ctx, userID, log)
	if err != nil {
		log.Error("classification failed", zap.Error(err))
		s.finish(err.Error(), false)
		return
	}
	s.setClassified(classified, summary)

	// The classified list and summary are published before the settle delay,
	// so callers can inspect the pending run and still cancel it before any
	// submission fires.
	if err := utils.WaitFor(ctx, o.cfg.SettleDelay); err != nil {
		log.Info("run cancelled during settle delay")
		s.finish("", false)
		return
	}

	s.setPhase(PhaseRunning)
	runErr := o.submitEligible(ctx, userID, classified, summary, log)
	s.setClassified(classified, summary)

	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}
	log.Info("run finished",
		zap.Int("applied", summary.Applied),
		zap.Int("failed", summary.Failed),
	)

	cooldown := o.cfg.Cooldown > 0 && runErr == nil
	s.finish(errMsg, cooldown)
	if cooldown {
		// Cooldown ignores cancellation of the finished run; only its timer
		// gates the next trigger.
		_ = utils.WaitFor(context.Background(), o.cfg.Cooldown)
		s.setPhase(PhaseIdle)
	}
}

// classifyCycle takes the inventory snapshot, ranks it and classifies every
// job against the profile and the ledger.
func (o *Orchestrator) classifyCycle(ctx context.Context, userID string, log *zap.Logger) ([]*classify.ClassifiedJob, *classify.Summary, error) {
	p, err := o.profiles.Get(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	jobs, err := o.portal.Jobs(ctx)
	if err != nil {
		return nil, nil, err
	}
	log.Info("inventory fetched", zap.Int("jobs", len(jobs)))

	ranked, err := o.gateway.Rank(ctx, p, jobs)
	if err != nil {
		return nil, nil, err
	}

	terminal, err := o.ledger.TerminalJobs(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	classified, summary := classify.ClassifyAll(ranked, p, terminal)
	log.Info("inventory classified",
		zap.Int("will_apply", summary.WillApply),
		zap.Int("rejected_by_ai", summary.RejectedByAI),
		zap.Int("blocked", summary.Blocked),
		zap.Int("skipped_previously", summary.SkippedPrevious),
	)
	return classified, summary, nil
}

// submitEligible walks the classified list in order and submits every
// eligible job, recording exactly one ledger entry per attempt. A failing
// job never halts the remaining ones; only cancellation does.
func (o *Orchestrator) submitEligible(ctx context.Context, userID string, classified []*classify.ClassifiedJob, summary *classify.Summary, log *zap.Logger) error {
	p, err := o.profiles.Get(ctx, userID)
	if err != nil {
		return err
	}

	if status, err := o.portal.Status(ctx); err != nil {
		return err
	} else if !status.Active() {
		log.Warn("portal is not accepting applications, skipping submissions")
		return nil
	}

	terminal, err := o.ledger.TerminalJobs(ctx, userID)
	if err != nil {
		return err
	}

	capReached := false
	attempted := make(map[string]bool)
	for _, job := range classified {
		if job.Status != classify.StatusWillApply {
			continue
		}
		// The gateway should not repeat ids, but a repeat must not fire a
		// second submission.
		if attempted[job.JobID] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if capReached {
			job.Reason = "daily application cap reached"
			continue
		}

		// The profile or ledger may have changed since classification; a job
		// that is no longer eligible is not submitted.
		if status, reason := classify.Classify(job.RankedJob, p, terminal); status != classify.StatusWillApply {
			log.Info("job no longer eligible, skipping",
				zap.String(logger.FieldJob, job.JobID),
				zap.String("reason", reason),
			)
			job.Status = status
			job.Reason = reason
			continue
		}

		applied, err := o.ledger.CountAppliedSince(ctx, userID, startOfDay(time.Now().UTC()))
		if err != nil {
			return err
		}
		if applied >= p.Constraints.MaxAppsPerDay {
			log.Info("daily application cap reached", zap.Int("cap", p.Constraints.MaxAppsPerDay))
			capReached = true
			job.Reason = "daily application cap reached"
			continue
		}

		// An in-flight submission runs to completion even when the run is
		// cancelled; the loop halts before the next job instead.
		attempted[job.JobID] = true
		o.submitOne(context.WithoutCancel(ctx), userID, p, job, summary, log)
	}
	return ctx.Err()
}

// submitOne fires a single application and records its outcome. Each code
// path writes exactly one ledger entry.
func (o *Orchestrator) submitOne(ctx context.Context, userID string, p *profile.Profile, job *classify.ClassifiedJob, summary *classify.Summary, log *zap.Logger) {
	jlog := log.With(zap.String(logger.FieldJob, job.JobID))

	failures, err := o.ledger.FailureCount(ctx, userID, job.JobID)
	if err != nil {
		jlog.Error("failure count lookup failed", zap.Error(err))
		return
	}
	if failures >= MaxSubmitFailures {
		// Park the job for good rather than failing on it every cycle.
		jlog.Info("submission attempts exhausted, parking job")
		o.record(ctx, jlog, &history.Entry{
			UserID:     userID,
			JobID:      job.JobID,
			Outcome:    history.OutcomeSkipped,
			MatchScore: job.MatchScore,
			Reason:     "submission attempts exhausted",
			Company:    job.Company,
			Role:       job.Role,
		})
		job.Status = classify.StatusSkippedPreviously
		job.Reason = "submission attempts exhausted"
		summary.SkippedPrevious++
		return
	}

	result, err := o.portal.Submit(ctx, job.JobID, buildApplication(p, job.RankedJob))
	if err != nil {
		// Only cancellation surfaces as an error; nothing was recorded.
		jlog.Warn("submission aborted", zap.Error(err))
		return
	}

	entry := &history.Entry{
		UserID:     userID,
		JobID:      job.JobID,
		MatchScore: job.MatchScore,
		Company:    job.Company,
		Role:       job.Role,
	}

	switch result.Outcome {
	case portal.OutcomeAccepted:
		entry.Outcome = history.OutcomeApplied
		if result.Receipt != nil {
			entry.ReceiptID = result.Receipt.ID
		}
		job.Status = classify.StatusApplied
		summary.Applied++
		jlog.Info("application accepted", zap.String("receipt_id", entry.ReceiptID))
	case portal.OutcomeRejected:
		entry.Outcome = history.OutcomeRejected
		entry.Reason = result.Reason
		// The rejection is terminal, so the published list reports the same
		// status every later cycle will.
		job.Status = classify.StatusSkippedPreviously
		job.Reason = result.Reason
		summary.Failed++
		jlog.Info("application rejected by portal", zap.String("reason", result.Reason))
	default:
		entry.Outcome = history.OutcomeFailed
		entry.Reason = result.Reason
		job.Reason = result.Reason
		summary.Failed++
		jlog.Warn("submission failed", zap.String("reason", result.Reason))
	}

	o.record(ctx, jlog, entry)
}

func (o *Orchestrator) record(ctx context.Context, log *zap.Logger, e *history.Entry) {
	if err := o.ledger.Record(ctx, e); err != nil {
		if err == history.ErrDuplicateTerminal {
			log.Debug("terminal entry already recorded")
			return
		}
		log.Error("recording history entry failed", zap.Error(err))
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
