package pruner

import (
	"github.com/QuantTune-Labs/optimizer-core/internal/study"
	"github.com/QuantTune-Labs/optimizer-core/pkg/utils"
)

const (
	defaultStartupTrials = 10
	defaultWarmupSteps   = 5
	defaultIntervalSteps = 1
)

// Median prunes a trial whose intermediate value is strictly worse than the
// median of what other trials reported at the same step. It stays inactive
// until the study has enough completed trials and the trial has passed its
// warm-up steps, so early noise cannot kill promising candidates.
type Median struct {
	startupTrials int
	warmupSteps   int
	intervalSteps int
}

// NewMedian creates a median pruner. Non-positive arguments select the
// defaults (10 startup trials, 5 warm-up steps, interval 1).
func NewMedian(startupTrials, warmupSteps, intervalSteps int) *Median {
	if startupTrials <= 0 {
		startupTrials = defaultStartupTrials
	}
	if warmupSteps <= 0 {
		warmupSteps = defaultWarmupSteps
	}
	if intervalSteps <= 0 {
		intervalSteps = defaultIntervalSteps
	}
	return &Median{
		startupTrials: startupTrials,
		warmupSteps:   warmupSteps,
		intervalSteps: intervalSteps,
	}
}

// ShouldPrune reports whether the observed value falls strictly below the
// peer median under the study's direction
func (m *Median) ShouldPrune(obs study.PruneObservation) bool {
	if obs.CompletedCount < m.startupTrials {
		return false
	}
	if obs.Step < m.warmupSteps {
		return false
	}
	if (obs.Step-m.warmupSteps)%m.intervalSteps != 0 {
		return false
	}
	if len(obs.PeersAtStep) == 0 {
		return false
	}
	median := utils.Median(obs.PeersAtStep)
	return obs.Direction.Better(median, obs.Value)
}

// Name returns the pruner's registry name
func (m *Median) Name() string {
	return "median"
}
