package sampler

import (
	"math"
	"sort"

	"github.com/QuantTune-Labs/optimizer-core/internal/space"
	"github.com/QuantTune-Labs/optimizer-core/internal/study"
	"github.com/QuantTune-Labs/optimizer-core/pkg/utils"
)

const (
	defaultStartupTrials = 10
	defaultGammaFraction = 0.25
	defaultCandidates    = 24

	// kdeFloor keeps the density ratio finite when a candidate lands far
	// from every observation
	kdeFloor = 1e-12
)

// TPEOptions configures a TPE sampler. Zero values select the defaults.
type TPEOptions struct {
	// Seed seeds the sampler's random source; zero derives one from the clock
	Seed int64
	// StartupTrials is the number of completed trials required before the
	// model kicks in; earlier suggestions are random
	StartupTrials int
	// GammaFraction is the share of completed trials treated as "good"
	GammaFraction float64
	// Candidates is the number of proposals scored per parameter
	Candidates int
}

// TPE is a Tree-structured Parzen Estimator sampler. It splits the completed
// history into a good and a bad group by objective value, fits a kernel
// density per group and per parameter, and proposes the candidate maximizing
// the good-to-bad density ratio. Each parameter is modeled independently.
type TPE struct {
	rng        *utils.RandSource
	startup    int
	gamma      float64
	candidates int
}

// NewTPE creates a TPE sampler with the given options
func NewTPE(opts TPEOptions) *TPE {
	if opts.StartupTrials <= 0 {
		opts.StartupTrials = defaultStartupTrials
	}
	if opts.GammaFraction <= 0 || opts.GammaFraction >= 1 {
		opts.GammaFraction = defaultGammaFraction
	}
	if opts.Candidates <= 0 {
		opts.Candidates = defaultCandidates
	}
	return &TPE{
		rng:        utils.NewRandSource(opts.Seed),
		startup:    opts.StartupTrials,
		gamma:      opts.GammaFraction,
		candidates: opts.Candidates,
	}
}

// Suggest proposes an assignment from the density-ratio model, or falls back
// to random sampling while the completed history is below the startup count
func (t *TPE) Suggest(s *space.Space, direction study.Direction, history []*study.Trial) (study.Assignment, error) {
	completed := make([]*study.Trial, 0, len(history))
	for _, tr := range history {
		if tr.State == study.StateComplete && tr.Value != nil {
			completed = append(completed, tr)
		}
	}

	out := make(study.Assignment, s.Len())
	if len(completed) < t.startup {
		for _, name := range s.Names() {
			dist, _ := s.Distribution(name)
			out[name] = dist.Sample(t.rng)
		}
		return out, nil
	}

	good, bad := t.split(completed, direction)
	for _, name := range s.Names() {
		dist, _ := s.Distribution(name)
		if dist.Kind == space.KindCategorical {
			out[name] = t.suggestCategorical(dist, name, good, bad)
		} else {
			out[name] = t.suggestNumeric(dist, name, good, bad)
		}
	}
	return out, nil
}

// Name returns the sampler's registry name
func (t *TPE) Name() string {
	return "tpe"
}

// split sorts the completed trials best-first and cuts off the good group
// at ceil(gamma * n), keeping at least one trial on each side
func (t *TPE) split(completed []*study.Trial, direction study.Direction) (good, bad []*study.Trial) {
	sorted := make([]*study.Trial, len(completed))
	copy(sorted, completed)
	sort.SliceStable(sorted, func(i, j int) bool {
		return direction.Better(*sorted[i].Value, *sorted[j].Value)
	})

	cut := int(math.Ceil(t.gamma * float64(len(sorted))))
	cut = utils.Clamp(cut, 1, len(sorted)-1)
	return sorted[:cut], sorted[cut:]
}

// suggestNumeric scores candidates on the unit interval by the ratio of the
// good-group density to the bad-group density and keeps the argmax
func (t *TPE) suggestNumeric(dist space.Distribution, name string, good, bad []*study.Trial) any {
	goodUnits := unitValues(dist, name, good)
	badUnits := unitValues(dist, name, bad)
	if len(goodUnits) == 0 {
		return dist.Sample(t.rng)
	}

	sigmaGood := bandwidth(len(goodUnits))
	sigmaBad := bandwidth(len(badUnits))

	bestU := goodUnits[0]
	bestScore := math.Inf(-1)
	for i := 0; i < t.candidates; i++ {
		center := goodUnits[t.rng.Intn(len(goodUnits))]
		u := utils.Clamp(t.rng.NormFloat64(center, sigmaGood), 0, 1)

		score := kde(u, goodUnits, sigmaGood) / (kde(u, badUnits, sigmaBad) + kdeFloor)
		if score > bestScore {
			bestScore = score
			bestU = u
		}
	}
	return dist.FromUnit(bestU)
}

// suggestCategorical weights each choice by its smoothed frequency in the
// good group relative to the bad group and draws proportionally
func (t *TPE) suggestCategorical(dist space.Distribution, name string, good, bad []*study.Trial) any {
	weights := make([]float64, len(dist.Choices))
	for i, choice := range dist.Choices {
		// Laplace smoothing keeps unseen choices reachable
		g := float64(countChoice(name, choice, good) + 1)
		b := float64(countChoice(name, choice, bad) + 1)
		weights[i] = g / b
	}
	idx := t.rng.WeightedIndex(weights)
	if idx < 0 {
		idx = 0
	}
	return dist.Choices[idx]
}

// unitValues collects the unit-interval coordinates a parameter took across
// the given trials
func unitValues(dist space.Distribution, name string, trials []*study.Trial) []float64 {
	out := make([]float64, 0, len(trials))
	for _, tr := range trials {
		v, ok := tr.Assignment[name]
		if !ok {
			continue
		}
		if u, ok := dist.ToUnit(v); ok {
			out = append(out, u)
		}
	}
	return out
}

// countChoice counts how many trials assigned the given choice to name
func countChoice(name string, choice any, trials []*study.Trial) int {
	n := 0
	for _, tr := range trials {
		if v, ok := tr.Assignment[name]; ok && space.ValuesEqual(choice, v) {
			n++
		}
	}
	return n
}

// bandwidth widens the kernels as observations thin out, with a floor that
// keeps the estimate from collapsing onto single points
func bandwidth(n int) float64 {
	return math.Max(0.05, 1.0/math.Sqrt(float64(n)+1))
}

// kde evaluates a Gaussian kernel density estimate at u
func kde(u float64, centers []float64, sigma float64) float64 {
	if len(centers) == 0 {
		return 0
	}
	sum := 0.0
	norm := 1.0 / (sigma * math.Sqrt(2*math.Pi))
	for _, c := range centers {
		z := (u - c) / sigma
		sum += norm * math.Exp(-0.5*z*z)
	}
	return sum / float64(len(centers))
}
