// Package study orchestrates parameter-search sessions: it owns the trial
// lifecycle, the append-only history, the best-so-far invariant, persistence,
// and cooperative cancellation. Sampling and pruning strategies plug in
// through the Sampler and Pruner interfaces.
package study

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/QuantTune-Labs/optimizer-core/internal/space"
)

// Direction declares whether higher or lower objective values are better
type Direction string

const (
	// Maximize prefers higher objective values
	Maximize Direction = "maximize"
	// Minimize prefers lower objective values
	Minimize Direction = "minimize"
)

// Valid reports whether the direction is one of the two known values
func (d Direction) Valid() bool {
	return d == Maximize || d == Minimize
}

// Better reports whether a is strictly better than b under the direction
func (d Direction) Better(a, b float64) bool {
	if d == Minimize {
		return a < b
	}
	return a > b
}

// FailureSentinel returns the score recorded for a failed trial: the worst
// representable value, so a failed trial can never become best
func (d Direction) FailureSentinel() float64 {
	if d == Minimize {
		return math.Inf(1)
	}
	return math.Inf(-1)
}

// TrialState is the lifecycle state of a trial
type TrialState string

const (
	// StateRunning marks a trial whose objective call is in flight
	StateRunning TrialState = "running"
	// StateComplete marks a trial that produced a valid score
	StateComplete TrialState = "complete"
	// StatePruned marks a trial stopped early by the pruner
	StatePruned TrialState = "pruned"
	// StateFailed marks a trial whose objective errored or panicked
	StateFailed TrialState = "failed"
)

// Terminal reports whether the state is final
func (s TrialState) Terminal() bool {
	return s == StateComplete || s == StatePruned || s == StateFailed
}

// Assignment maps parameter names to concrete values, one per declaration
type Assignment map[string]any

// Clone returns a shallow copy of the assignment
func (a Assignment) Clone() Assignment {
	out := make(Assignment, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Trial is one proposed-and-evaluated unit of work. Trials are immutable
// once they reach a terminal state; only terminal trials enter the shared
// history.
type Trial struct {
	Number     int           `json:"number"`
	Assignment Assignment    `json:"assignment"`
	Value      *float64      `json:"value,omitempty"`
	State      TrialState    `json:"state"`
	Duration   time.Duration `json:"duration_ns"`
	Error      string        `json:"error,omitempty"`
}

// Score returns the trial's comparable score under the given direction:
// the recorded value for COMPLETE and PRUNED trials, and the failure
// sentinel for FAILED trials
func (t *Trial) Score(d Direction) float64 {
	if t.State == StateFailed || t.Value == nil {
		return d.FailureSentinel()
	}
	return *t.Value
}

// Result is the outcome of one Run invocation
type Result struct {
	BestAssignment Assignment `json:"best_assignment,omitempty"`
	BestValue      *float64   `json:"best_value,omitempty"`
	BestTrial      *Trial     `json:"-"`
	TrialCount     int        `json:"trial_count"`
	Trials         []*Trial   `json:"-"`
	Interrupted    bool       `json:"interrupted"`
}

// ErrTrialPruned is returned by ActiveTrial.Report when the pruner decides
// the trial should stop. Objectives return it to end the trial as PRUNED.
var ErrTrialPruned = errors.New("trial pruned")

// Objective is the opaque scoring function under optimization. It receives
// the active trial, reads the proposed assignment from it, and may report
// intermediate values through it for pruning.
type Objective func(ctx context.Context, trial *ActiveTrial) (float64, error)

// Sampler proposes the parameter assignment for a new trial given the
// space and the history of terminal trials. Implementations must be safe
// for concurrent use; they only ever observe terminal-state trials.
type Sampler interface {
	Suggest(s *space.Space, direction Direction, history []*Trial) (Assignment, error)
	Name() string
}

// PruneObservation is the evidence a Pruner sees at one intermediate report
type PruneObservation struct {
	Direction Direction
	// Trial is the reporting trial's number
	Trial int
	// Step is the 0-based intermediate step being reported
	Step int
	// Value is the intermediate objective value at Step
	Value float64
	// PeersAtStep holds the values other trials reported at the same step
	PeersAtStep []float64
	// CompletedCount is the number of COMPLETE trials in the study so far
	CompletedCount int
}

// Pruner decides whether an in-progress trial should be aborted early
type Pruner interface {
	ShouldPrune(obs PruneObservation) bool
	Name() string
}

// Record is the persisted form of a study: identity, direction, creation
// time, and the ordered terminal trial history
type Record struct {
	Name            string    `json:"name"`
	Direction       Direction `json:"direction"`
	CreatedAtUnixMs int64     `json:"created_at_unix_ms"`
	Trials          []*Trial  `json:"trials"`
}

// Store is the persistence backend for studies. LoadOrCreate returns the
// existing record for the name (rejecting a direction mismatch) or creates
// an empty one; AppendTrial durably appends one terminal trial.
type Store interface {
	LoadOrCreate(name string, direction Direction) (*Record, error)
	AppendTrial(studyName string, t *Trial) error
}
