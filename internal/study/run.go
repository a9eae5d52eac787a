package study

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/QuantTune-Labs/optimizer-core/pkg/utils"
)

// ProgressFunc receives search progress after every terminal trial. fraction
// is in [0, 1] relative to the requested budget; eta is nil until at least
// one trial has completed.
type ProgressFunc func(fraction float64, eta *time.Duration)

// RunOptions configures one Run invocation
type RunOptions struct {
	// NTrials is the number of new trials to execute. Zero runs nothing
	// and returns the current study state.
	NTrials int
	// Timeout bounds the wall-clock duration of the run; zero means no
	// timeout. In-flight trials are allowed to finish when it expires.
	Timeout time.Duration
	// Concurrency is the maximum number of objective calls in flight;
	// values below 1 are treated as 1
	Concurrency int
	// Progress, when set, is invoked after every terminal trial
	Progress ProgressFunc
}

// runState tracks the bookkeeping of one Run invocation
type runState struct {
	mu         sync.Mutex
	started    time.Time
	nTrials    int
	terminal   int
	progress   ProgressFunc
	persistErr error
}

// Run executes up to opts.NTrials new trials against the objective, keeping
// at most opts.Concurrency in flight. The run stops early when the timeout
// expires or ctx is cancelled; either way every trial already started is
// allowed to reach a terminal state. Only cancellation marks the result
// Interrupted; a timeout is a normal stopping condition. A persistence
// failure does not stop the search but is surfaced as the returned error.
func (s *Study) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	if opts.NTrials < 0 {
		return nil, fmt.Errorf("study %q: negative trial budget %d", s.name, opts.NTrials)
	}
	if opts.NTrials == 0 {
		return s.snapshotResult(false), nil
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	rs := &runState{
		started:  time.Now(),
		nTrials:  opts.NTrials,
		progress: opts.Progress,
	}

	var deadline <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	s.log.Info("search started",
		"study", s.name, "sampler", s.sampler.Name(),
		"trials", opts.NTrials, "concurrency", opts.Concurrency)

	p := pool.New().WithMaxGoroutines(opts.Concurrency)
	interrupted := false

scheduling:
	for i := 0; i < opts.NTrials; i++ {
		select {
		case <-ctx.Done():
			interrupted = true
			break scheduling
		case <-deadline:
			// Timeout is an ordinary stopping condition, like exhausting
			// the trial budget; only cancellation marks Interrupted
			break scheduling
		default:
		}
		p.Go(func() {
			s.executeTrial(ctx, rs)
		})
	}
	p.Wait()

	if ctx.Err() != nil {
		interrupted = true
	}

	rs.mu.Lock()
	persistErr := rs.persistErr
	rs.mu.Unlock()

	res := s.snapshotResult(interrupted)
	s.log.Info("search finished",
		"study", s.name, "trials", res.TrialCount,
		"interrupted", interrupted, "elapsed", utils.FormatDuration(time.Since(rs.started)))

	return res, persistErr
}

// executeTrial runs one full trial lifecycle: sample, evaluate, classify the
// outcome, record, and report progress
func (s *Study) executeTrial(ctx context.Context, rs *runState) {
	number := s.allocateTrial()

	assignment, err := s.sampler.Suggest(s.space, s.direction, s.History())
	if err != nil {
		s.log.Error("sampler failed", "study", s.name, "trial", number, "error", err)
		s.finishTrial(rs, &Trial{
			Number:     number,
			Assignment: Assignment{},
			State:      StateFailed,
			Error:      fmt.Sprintf("sampling: %v", err),
		})
		return
	}

	active := &ActiveTrial{study: s, number: number, assignment: assignment}
	start := time.Now()
	value, err := s.invokeObjective(ctx, active)
	elapsed := time.Since(start)

	trial := &Trial{
		Number:     number,
		Assignment: assignment,
		Duration:   elapsed,
	}
	switch {
	case errors.Is(err, ErrTrialPruned):
		trial.State = StatePruned
		if active.reported {
			v := active.lastValue
			trial.Value = &v
		}
		s.log.Debug("trial pruned", "study", s.name, "trial", number)
	case err != nil:
		trial.State = StateFailed
		trial.Error = err.Error()
		s.log.Warn("trial failed", "study", s.name, "trial", number, "error", err)
	case math.IsNaN(value) || math.IsInf(value, 0):
		trial.State = StateFailed
		trial.Error = fmt.Sprintf("objective returned non-finite value %v", value)
		s.log.Warn("trial failed", "study", s.name, "trial", number, "error", trial.Error)
	default:
		trial.State = StateComplete
		trial.Value = &value
	}

	s.finishTrial(rs, trial)
}

// invokeObjective calls the objective with panic containment, so a panicking
// objective fails its own trial instead of crashing the search
func (s *Study) invokeObjective(ctx context.Context, active *ActiveTrial) (value float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("objective panicked: %v", r)
		}
	}()
	return s.objective(ctx, active)
}

// finishTrial records a terminal trial and emits a progress report
func (s *Study) finishTrial(rs *runState, t *Trial) {
	if err := s.recordTerminal(t); err != nil {
		s.log.Error("failed to persist trial",
			"study", s.name, "trial", t.Number, "error", err)
		rs.mu.Lock()
		if rs.persistErr == nil {
			rs.persistErr = err
		}
		rs.mu.Unlock()
	}

	rs.mu.Lock()
	rs.terminal++
	fraction := float64(rs.terminal) / float64(rs.nTrials)
	if fraction > 1 {
		fraction = 1
	}
	eta := s.estimateRemaining(rs.nTrials - rs.terminal)
	progress := rs.progress
	rs.mu.Unlock()

	if progress != nil {
		progress(fraction, eta)
	}
}

// estimateRemaining projects the time left in the run from the mean duration
// of completed trials. Returns nil until at least one trial has completed.
func (s *Study) estimateRemaining(remaining int) *time.Duration {
	if remaining < 0 {
		remaining = 0
	}

	s.mu.RLock()
	var total time.Duration
	var n int
	for _, t := range s.trials {
		if t.State == StateComplete {
			total += t.Duration
			n++
		}
	}
	s.mu.RUnlock()

	if n == 0 {
		return nil
	}
	eta := time.Duration(int64(total) / int64(n) * int64(remaining))
	return &eta
}
