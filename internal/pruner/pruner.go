// Package pruner implements the early-stopping policies a study consults
// when a trial reports an intermediate value.
package pruner

import (
	"strings"

	"github.com/QuantTune-Labs/optimizer-core/internal/study"
	"github.com/QuantTune-Labs/optimizer-core/pkg/logger"
)

// Options carries the tuning knobs of the configurable pruners. Zero values
// select each policy's defaults; fields not used by the selected policy are
// ignored.
type Options struct {
	StartupTrials   int
	WarmupSteps     int
	IntervalSteps   int
	MinResource     int
	ReductionFactor int
}

// New builds the pruner registered under name. An empty or unknown name
// selects the median pruner; unknown names additionally log a warning.
// "nop" and "none" disable pruning.
func New(name string, opts Options) study.Pruner {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "nop", "none":
		return Nop{}
	case "", "median":
		return NewMedian(opts.StartupTrials, opts.WarmupSteps, opts.IntervalSteps)
	case "halving", "successive_halving":
		return NewSuccessiveHalving(opts.MinResource, opts.ReductionFactor)
	default:
		logger.Warn("unknown pruner, falling back to median", "pruner", name)
		return NewMedian(opts.StartupTrials, opts.WarmupSteps, opts.IntervalSteps)
	}
}

// Nop never prunes
type Nop struct{}

// ShouldPrune always reports false
func (Nop) ShouldPrune(study.PruneObservation) bool {
	return false
}

// Name returns the pruner's registry name
func (Nop) Name() string {
	return "nop"
}
