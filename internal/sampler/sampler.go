package sampler

import (
	"strings"

	"github.com/QuantTune-Labs/optimizer-core/internal/study"
	"github.com/QuantTune-Labs/optimizer-core/pkg/logger"
)

// New builds the sampler registered under name. An empty or unknown name
// selects TPE; unknown names additionally log a warning. startupTrials tunes
// the TPE warm-up phase; zero keeps the default, and the random sampler
// ignores it.
func New(name string, seed int64, startupTrials int) study.Sampler {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "random":
		return NewRandom(seed)
	case "", "tpe":
		return NewTPE(TPEOptions{Seed: seed, StartupTrials: startupTrials})
	default:
		logger.Warn("unknown sampler, falling back to tpe", "sampler", name)
		return NewTPE(TPEOptions{Seed: seed, StartupTrials: startupTrials})
	}
}
