package optd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/QuantTune-Labs/optimizer-core/internal/study"
	"github.com/QuantTune-Labs/optimizer-core/pkg/config"
	"github.com/QuantTune-Labs/optimizer-core/pkg/utils"
)

// BuildObjective constructs the scoring function a study spec asks for:
// a remote HTTP evaluator or one of the built-in synthetic objectives
func BuildObjective(spec *config.StudySpec) (study.Objective, error) {
	switch spec.Objective.Kind {
	case "sphere":
		return SphereObjective(), nil
	case "noisy_quadratic":
		return NoisyQuadraticObjective(spec.Seed), nil
	case "remote":
		timeout, err := spec.Objective.GetTimeout()
		if err != nil {
			return nil, fmt.Errorf("invalid objective timeout: %w", err)
		}
		return NewRemoteEvaluator(spec.Objective.URL, timeout).Objective(), nil
	default:
		return nil, fmt.Errorf("unknown objective kind: %s", spec.Objective.Kind)
	}
}

// SphereObjective scores an assignment by the negated sum of squares of its
// numeric parameters, so the optimum under maximize sits at the origin.
// Non-numeric parameters are ignored.
func SphereObjective() study.Objective {
	return func(_ context.Context, trial *study.ActiveTrial) (float64, error) {
		sum := 0.0
		for _, v := range trial.Assignment() {
			switch x := v.(type) {
			case float64:
				sum += x * x
			case int64:
				sum += float64(x) * float64(x)
			}
		}
		return -sum, nil
	}
}

// NoisyQuadraticObjective is the sphere objective shifted to (1, 1, ...)
// with seeded Gaussian noise, for exercising samplers under measurement
// noise
func NoisyQuadraticObjective(seed int64) study.Objective {
	rng := utils.NewRandSource(seed)
	return func(_ context.Context, trial *study.ActiveTrial) (float64, error) {
		sum := 0.0
		for _, v := range trial.Assignment() {
			switch x := v.(type) {
			case float64:
				sum += (x - 1) * (x - 1)
			case int64:
				sum += (float64(x) - 1) * (float64(x) - 1)
			}
		}
		return -sum + rng.NormFloat64(0, 0.1), nil
	}
}

// RemoteEvaluator scores trials by POSTing the assignment to an external
// HTTP endpoint. The endpoint receives {"trial": n, "params": {...}} and
// answers {"score": x}; anything else fails the trial.
type RemoteEvaluator struct {
	url    string
	client *http.Client
}

// NewRemoteEvaluator creates an evaluator against the given endpoint with a
// per-call timeout
func NewRemoteEvaluator(url string, timeout time.Duration) *RemoteEvaluator {
	return &RemoteEvaluator{
		url: url,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type evaluateRequest struct {
	Trial  int              `json:"trial"`
	Params study.Assignment `json:"params"`
}

type evaluateResponse struct {
	Score float64 `json:"score"`
	Error string  `json:"error,omitempty"`
}

// Objective adapts the evaluator to the study.Objective signature
func (e *RemoteEvaluator) Objective() study.Objective {
	return func(ctx context.Context, trial *study.ActiveTrial) (float64, error) {
		return e.Evaluate(ctx, trial.Number(), trial.Assignment())
	}
}

// Evaluate performs one scoring round trip
func (e *RemoteEvaluator) Evaluate(ctx context.Context, trialNumber int, params study.Assignment) (float64, error) {
	payload, err := json.Marshal(evaluateRequest{Trial: trialNumber, Params: params})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal evaluation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to create evaluation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("evaluation request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("failed to read evaluation response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("evaluator returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var result evaluateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("failed to decode evaluation response: %w", err)
	}
	if result.Error != "" {
		return 0, fmt.Errorf("evaluator error: %s", result.Error)
	}
	return result.Score, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
