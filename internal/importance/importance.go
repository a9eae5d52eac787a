// Package importance estimates how much each parameter drives the objective,
// using the correlation ratio (eta squared) between binned parameter values
// and the completed trials' scores.
package importance

import (
	"fmt"
	"sort"

	"github.com/QuantTune-Labs/optimizer-core/internal/space"
	"github.com/QuantTune-Labs/optimizer-core/internal/study"
	"github.com/QuantTune-Labs/optimizer-core/pkg/utils"
)

const defaultNumericBins = 5

// Report maps parameter names to normalized importance scores in [0, 1].
// Scores sum to 1 unless every parameter scored zero. An empty report means
// the history carried too little signal to attribute anything.
type Report map[string]float64

// Entry is one ranked line of a report
type Entry struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Ranked returns the report's entries ordered by descending score, ties
// broken by name
func (r Report) Ranked() []Entry {
	out := make([]Entry, 0, len(r))
	for name, score := range r {
		out = append(out, Entry{Name: name, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// String renders the ranked report for logs
func (r Report) String() string {
	s := ""
	for i, e := range r.Ranked() {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s=%.3f", e.Name, e.Score)
	}
	return s
}

// Estimator computes per-parameter importance from a study history
type Estimator struct {
	bins int
}

// NewEstimator creates an estimator with the default numeric bin count
func NewEstimator() *Estimator {
	return &Estimator{bins: defaultNumericBins}
}

// Estimate scores every parameter of the space against the completed trials.
// It degrades instead of failing: fewer than two completed trials, or an
// objective with no variance, yields an empty report; a parameter that took
// fewer than two distinct values scores zero.
func (e *Estimator) Estimate(sp *space.Space, trials []*study.Trial) Report {
	var scores []float64
	var complete []*study.Trial
	for _, tr := range trials {
		if tr.State == study.StateComplete && tr.Value != nil {
			complete = append(complete, tr)
			scores = append(scores, *tr.Value)
		}
	}
	if len(complete) < 2 {
		return Report{}
	}
	if utils.Variance(scores) == 0 {
		return Report{}
	}

	raw := make(map[string]float64, sp.Len())
	total := 0.0
	for _, name := range sp.Names() {
		dist, _ := sp.Distribution(name)
		eta := e.correlationRatio(dist, name, complete, scores)
		raw[name] = eta
		total += eta
	}

	report := make(Report, len(raw))
	for name, eta := range raw {
		if total > 0 {
			report[name] = eta / total
		} else {
			report[name] = 0
		}
	}
	return report
}

// correlationRatio computes eta squared for one parameter: the share of the
// objective's variance explained by grouping trials on that parameter
func (e *Estimator) correlationRatio(dist space.Distribution, name string, trials []*study.Trial, scores []float64) float64 {
	groups := e.groupTrials(dist, name, trials, scores)
	if len(groups) < 2 {
		return 0
	}

	mean := utils.Mean(scores)
	ssTotal := 0.0
	for _, v := range scores {
		ssTotal += (v - mean) * (v - mean)
	}
	if ssTotal == 0 {
		return 0
	}

	ssBetween := 0.0
	for _, group := range groups {
		gm := utils.Mean(group)
		ssBetween += float64(len(group)) * (gm - mean) * (gm - mean)
	}
	return utils.Clamp(ssBetween/ssTotal, 0, 1)
}

// groupTrials partitions the objective scores by the value the parameter
// took: one group per choice for categoricals, quantile bins for ranges
func (e *Estimator) groupTrials(dist space.Distribution, name string, trials []*study.Trial, scores []float64) map[string][]float64 {
	groups := make(map[string][]float64)

	if dist.Kind == space.KindCategorical {
		for i, tr := range trials {
			v, ok := tr.Assignment[name]
			if !ok {
				continue
			}
			key := fmt.Sprintf("%v", v)
			groups[key] = append(groups[key], scores[i])
		}
		return groups
	}

	values := make([]float64, 0, len(trials))
	kept := make([]int, 0, len(trials))
	for i, tr := range trials {
		if u, ok := dist.ToUnit(tr.Assignment[name]); ok {
			values = append(values, u)
			kept = append(kept, i)
		}
	}
	if len(values) == 0 {
		return groups
	}

	edges := e.binEdges(values)
	for j, u := range values {
		key := fmt.Sprintf("bin%d", binIndex(edges, u))
		groups[key] = append(groups[key], scores[kept[j]])
	}
	return groups
}

// binEdges returns interior quantile cut points over the observed values
func (e *Estimator) binEdges(values []float64) []float64 {
	edges := make([]float64, 0, e.bins-1)
	for i := 1; i < e.bins; i++ {
		p := float64(i) / float64(e.bins) * 100
		edges = append(edges, utils.Percentile(values, p))
	}
	return edges
}

// binIndex returns the index of the first edge the value falls under
func binIndex(edges []float64, v float64) int {
	for i, edge := range edges {
		if v <= edge {
			return i
		}
	}
	return len(edges)
}
