package pruner

import (
	"sort"

	"github.com/QuantTune-Labs/optimizer-core/internal/study"
)

const (
	defaultMinResource     = 1
	defaultReductionFactor = 4
)

// SuccessiveHalving evaluates trials at geometrically spaced rungs. At each
// rung only the top 1/reductionFactor share of trials observed at that step
// survives; everything below the cut is pruned. Between rungs trials run
// unchallenged.
type SuccessiveHalving struct {
	minResource     int
	reductionFactor int
}

// NewSuccessiveHalving creates a successive-halving pruner. Non-positive
// arguments select the defaults (min resource 1, reduction factor 4).
func NewSuccessiveHalving(minResource, reductionFactor int) *SuccessiveHalving {
	if minResource <= 0 {
		minResource = defaultMinResource
	}
	if reductionFactor < 2 {
		reductionFactor = defaultReductionFactor
	}
	return &SuccessiveHalving{
		minResource:     minResource,
		reductionFactor: reductionFactor,
	}
}

// ShouldPrune reports whether the trial falls outside the surviving share at
// a rung boundary. Steps between rungs never prune.
func (h *SuccessiveHalving) ShouldPrune(obs study.PruneObservation) bool {
	if !h.atRung(obs.Step + 1) {
		return false
	}

	cohort := len(obs.PeersAtStep) + 1
	if cohort < h.reductionFactor {
		return false
	}

	values := make([]float64, 0, cohort)
	values = append(values, obs.Value)
	values = append(values, obs.PeersAtStep...)
	sort.Slice(values, func(i, j int) bool {
		return obs.Direction.Better(values[i], values[j])
	})

	keep := cohort / h.reductionFactor
	if keep < 1 {
		keep = 1
	}
	cutoff := values[keep-1]
	return obs.Direction.Better(cutoff, obs.Value)
}

// Name returns the pruner's registry name
func (h *SuccessiveHalving) Name() string {
	return "successive_halving"
}

// atRung reports whether the consumed resource lands on a rung boundary:
// minResource * reductionFactor^k for some k >= 0
func (h *SuccessiveHalving) atRung(resource int) bool {
	r := h.minResource
	for r < resource {
		r *= h.reductionFactor
	}
	return r == resource
}
