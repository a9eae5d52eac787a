package study

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/QuantTune-Labs/optimizer-core/internal/space"
	"github.com/QuantTune-Labs/optimizer-core/pkg/logger"
	"github.com/QuantTune-Labs/optimizer-core/pkg/utils"
)

// Options configures a Study
type Options struct {
	// Name identifies the study for persistence; generated when empty
	Name string
	// Direction defaults to Maximize
	Direction Direction
	// Space is the normalized parameter space (required)
	Space *space.Space
	// Objective is the opaque scoring function (required)
	Objective Objective
	// Sampler proposes assignments (required)
	Sampler Sampler
	// Pruner is optional; nil means trials always run to completion
	Pruner Pruner
	// Store persists trial history (required)
	Store Store
	// Logger is the diagnostics sink; defaults to the package default
	Logger *slog.Logger
}

// Study is the aggregate root of one search session. The trial history is
// append-only and holds terminal trials exclusively, so readers never
// observe a partially-written record.
type Study struct {
	name      string
	direction Direction
	space     *space.Space
	objective Objective
	sampler   Sampler
	pruner    Pruner
	store     Store
	log       *slog.Logger

	mu            sync.RWMutex
	trials        []*Trial
	best          *Trial
	nextNumber    int
	completed     int
	intermediates map[int]map[int]float64 // trial number -> step -> value
}

// Open loads the study identified by opts.Name from the store, or creates
// it when absent, and restores trial numbering and the best-so-far pointer.
// Resuming a study whose persisted direction differs from opts.Direction
// fails.
func Open(opts Options) (*Study, error) {
	if opts.Space == nil {
		return nil, fmt.Errorf("study: parameter space is required")
	}
	if opts.Objective == nil {
		return nil, fmt.Errorf("study: objective is required")
	}
	if opts.Sampler == nil {
		return nil, fmt.Errorf("study: sampler is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("study: store is required")
	}
	if opts.Direction == "" {
		opts.Direction = Maximize
	}
	if !opts.Direction.Valid() {
		return nil, fmt.Errorf("study: invalid direction %q", opts.Direction)
	}
	if opts.Name == "" {
		opts.Name = utils.GenerateStudyName()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default
	}

	rec, err := opts.Store.LoadOrCreate(opts.Name, opts.Direction)
	if err != nil {
		return nil, fmt.Errorf("study %q: %w", opts.Name, err)
	}

	s := &Study{
		name:          opts.Name,
		direction:     opts.Direction,
		space:         opts.Space,
		objective:     opts.Objective,
		sampler:       opts.Sampler,
		pruner:        opts.Pruner,
		store:         opts.Store,
		log:           opts.Logger,
		trials:        make([]*Trial, 0, len(rec.Trials)),
		intermediates: make(map[int]map[int]float64),
	}

	// Restore history: assignments lose their concrete types in transit,
	// so coerce them back against the space before anything samples them
	for _, t := range rec.Trials {
		if !t.State.Terminal() {
			continue
		}
		restored := &Trial{
			Number:     t.Number,
			Assignment: s.space.CoerceAssignment(t.Assignment),
			Value:      t.Value,
			State:      t.State,
			Duration:   t.Duration,
			Error:      t.Error,
		}
		s.trials = append(s.trials, restored)
		if restored.Number >= s.nextNumber {
			s.nextNumber = restored.Number + 1
		}
		if restored.State == StateComplete {
			s.completed++
			s.updateBestLocked(restored)
		}
	}

	if len(s.trials) > 0 {
		s.log.Info("study resumed",
			"study", s.name, "trials", len(s.trials), "completed", s.completed)
	}

	return s, nil
}

// Name returns the study's persistent identity
func (s *Study) Name() string {
	return s.name
}

// Direction returns the study's optimization direction
func (s *Study) Direction() Direction {
	return s.direction
}

// Best returns the best COMPLETE trial, or nil when none has completed
func (s *Study) Best() *Trial {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.best
}

// History returns a snapshot of the terminal trial history in append order
func (s *Study) History() []*Trial {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Trial, len(s.trials))
	copy(out, s.trials)
	return out
}

// TrialCount returns the number of terminal trials in the study
func (s *Study) TrialCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.trials)
}

// updateBestLocked maintains the best-trial invariant: extremal value per
// direction, earliest trial number on ties. Callers hold s.mu.
func (s *Study) updateBestLocked(t *Trial) {
	if t.State != StateComplete || t.Value == nil {
		return
	}
	if s.best == nil {
		s.best = t
		return
	}
	if s.direction.Better(*t.Value, *s.best.Value) {
		s.best = t
		return
	}
	if *t.Value == *s.best.Value && t.Number < s.best.Number {
		s.best = t
	}
}

// allocateTrial reserves the next trial number
func (s *Study) allocateTrial() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.nextNumber
	s.nextNumber++
	return n
}

// recordTerminal appends a terminal trial to the history, updates the best
// pointer, and persists the record through the store
func (s *Study) recordTerminal(t *Trial) error {
	if !t.State.Terminal() {
		return fmt.Errorf("trial %d: cannot record non-terminal state %s", t.Number, t.State)
	}

	s.mu.Lock()
	s.trials = append(s.trials, t)
	if t.State == StateComplete {
		s.completed++
		s.updateBestLocked(t)
	}
	s.mu.Unlock()

	return s.store.AppendTrial(s.name, t)
}

// shouldPrune records an intermediate value and consults the pruner
func (s *Study) shouldPrune(trialNumber, step int, value float64) bool {
	if s.pruner == nil {
		return false
	}

	s.mu.Lock()
	if s.intermediates[trialNumber] == nil {
		s.intermediates[trialNumber] = make(map[int]float64)
	}
	s.intermediates[trialNumber][step] = value

	peers := make([]float64, 0, len(s.intermediates))
	for number, steps := range s.intermediates {
		if number == trialNumber {
			continue
		}
		if v, ok := steps[step]; ok {
			peers = append(peers, v)
		}
	}
	completed := s.completed
	s.mu.Unlock()

	// The pruner runs outside the lock: it is user-extensible code
	return s.pruner.ShouldPrune(PruneObservation{
		Direction:      s.direction,
		Trial:          trialNumber,
		Step:           step,
		Value:          value,
		PeersAtStep:    peers,
		CompletedCount: completed,
	})
}

// snapshotResult builds a Result from the current study state
func (s *Study) snapshotResult(interrupted bool) *Result {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := &Result{
		TrialCount:  len(s.trials),
		Trials:      make([]*Trial, len(s.trials)),
		Interrupted: interrupted,
	}
	copy(res.Trials, s.trials)

	if s.best != nil {
		res.BestTrial = s.best
		res.BestAssignment = s.best.Assignment.Clone()
		v := *s.best.Value
		res.BestValue = &v
	}
	return res
}
