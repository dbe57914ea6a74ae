package autopilot

import (
	"errors"
	"sync"
	"time"

	"github.com/Rishu22889/ai-apply/internal/classify"
)

// Phase is the orchestrator's lifecycle position for one user.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseClassifying Phase = "classifying"
	PhaseRunning     Phase = "running"
	PhaseCooldown    Phase = "cooldown"
)

var (
	// ErrRunActive is returned when a trigger arrives while a run is already
	// classifying or submitting.
	ErrRunActive = errors.New("a run is already in progress")
	// ErrCooldown is returned when a trigger arrives during the post-run
	// cooldown window.
	ErrCooldown = errors.New("autopilot is cooling down after a run")
)

// State is a point-in-time snapshot of one user's autopilot.
type State struct {
	Phase     Phase             `json:"phase"`
	RunID     string            `json:"run_id,omitempty"`
	StartedAt time.Time         `json:"started_at,omitzero"`
	EndedAt   time.Time         `json:"ended_at,omitzero"`
	Summary   *classify.Summary `json:"summary,omitempty"`
	LastError string            `json:"last_error,omitempty"`
}

// userState is the single-flight lock for one user. All transitions go
// through compare-and-swap under the mutex, so at most one run can hold the
// non-idle phases at any time.
type userState struct {
	mu         sync.Mutex
	phase      Phase
	runID      string
	startedAt  time.Time
	endedAt    time.Time
	summary    *classify.Summary
	lastError  string
	cancel     func()
	classified []*classify.ClassifiedJob
}

func newUserState() *userState {
	return &userState{phase: PhaseIdle}
}

// begin attempts the Idle -> Classifying transition. Exactly one concurrent
// caller wins; the rest learn which phase blocked them.
func (s *userState) begin(runID string, cancel func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case PhaseIdle:
	case PhaseCooldown:
		return ErrCooldown
	default:
		return ErrRunActive
	}

	s.phase = PhaseClassifying
	s.runID = runID
	s.startedAt = time.Now().UTC()
	s.endedAt = time.Time{}
	s.summary = nil
	s.lastError = ""
	s.cancel = cancel
	s.classified = nil
	return nil
}

func (s *userState) setPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = p
}

// setClassified stores copies so readers never share entries the run
// goroutine is still mutating.
func (s *userState) setClassified(jobs []*classify.ClassifiedJob, summary *classify.Summary) {
	copied := make([]*classify.ClassifiedJob, 0, len(jobs))
	for _, job := range jobs {
		c := *job
		copied = append(copied, &c)
	}
	var sum *classify.Summary
	if summary != nil {
		c := *summary
		sum = &c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.classified = copied
	s.summary = sum
}

// finish records the run result and moves into cooldown, or straight back to
// idle when no cooldown is configured.
func (s *userState) finish(errMsg string, cooldown bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastError = errMsg
	s.endedAt = time.Now().UTC()
	s.cancel = nil
	if cooldown {
		s.phase = PhaseCooldown
	} else {
		s.phase = PhaseIdle
	}
}

// requestCancel fires the run's cancel function, if one is active.
func (s *userState) requestCancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}

func (s *userState) snapshot() *State {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &State{
		Phase:     s.phase,
		RunID:     s.runID,
		StartedAt: s.startedAt,
		EndedAt:   s.endedAt,
		LastError: s.lastError,
	}
	if s.summary != nil {
		copied := *s.summary
		snap.Summary = &copied
	}
	return snap
}

func (s *userState) snapshotClassified() []*classify.ClassifiedJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*classify.ClassifiedJob, len(s.classified))
	copy(out, s.classified)
	return out
}
