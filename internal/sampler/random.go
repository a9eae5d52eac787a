// Package sampler implements the assignment-proposal strategies used by a
// study: independent random search and a Tree-structured Parzen Estimator
// that models good and bad regions of the history.
package sampler

import (
	"github.com/QuantTune-Labs/optimizer-core/internal/space"
	"github.com/QuantTune-Labs/optimizer-core/internal/study"
	"github.com/QuantTune-Labs/optimizer-core/pkg/utils"
)

// Random samples every parameter independently from its declared
// distribution, ignoring the trial history
type Random struct {
	rng *utils.RandSource
}

// NewRandom creates a random sampler. A zero seed derives one from the clock.
func NewRandom(seed int64) *Random {
	return &Random{rng: utils.NewRandSource(seed)}
}

// Suggest draws one independent value per parameter
func (r *Random) Suggest(s *space.Space, _ study.Direction, _ []*study.Trial) (study.Assignment, error) {
	out := make(study.Assignment, s.Len())
	for _, name := range s.Names() {
		dist, _ := s.Distribution(name)
		out[name] = dist.Sample(r.rng)
	}
	return out, nil
}

// Name returns the sampler's registry name
func (r *Random) Name() string {
	return "random"
}
