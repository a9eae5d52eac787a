package study

// ActiveTrial is the handle an objective receives for the trial it is
// evaluating. It exposes the proposed assignment and the intermediate-value
// reporting hook used for pruning. An ActiveTrial is only valid for the
// duration of the objective call that owns it.
type ActiveTrial struct {
	study      *Study
	number     int
	assignment Assignment

	reported  bool
	lastValue float64
}

// NewDetachedTrial returns an ActiveTrial bound to no study, with a fixed
// assignment. Reports on a detached trial record the value but never prune.
// Useful for exercising an objective outside a search.
func NewDetachedTrial(number int, assignment Assignment) *ActiveTrial {
	return &ActiveTrial{number: number, assignment: assignment.Clone()}
}

// Number returns the trial's 0-based number within the study
func (t *ActiveTrial) Number() int {
	return t.number
}

// Assignment returns a copy of the proposed parameter assignment
func (t *ActiveTrial) Assignment() Assignment {
	return t.assignment.Clone()
}

// Value returns the raw value assigned to the named parameter
func (t *ActiveTrial) Value(name string) (any, bool) {
	v, ok := t.assignment[name]
	return v, ok
}

// Float returns the named parameter as a float64, converting integer
// assignments. Returns 0 for unknown or non-numeric parameters.
func (t *ActiveTrial) Float(name string) float64 {
	switch v := t.assignment[name].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

// Int returns the named parameter as an int64, truncating float
// assignments. Returns 0 for unknown or non-numeric parameters.
func (t *ActiveTrial) Int(name string) int64 {
	switch v := t.assignment[name].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// String returns the named parameter as a string, or "" when the
// assignment is absent or not a string
func (t *ActiveTrial) String(name string) string {
	s, _ := t.assignment[name].(string)
	return s
}

// Report records an intermediate objective value at the given step and
// consults the pruner. It returns ErrTrialPruned when the trial should
// stop; the objective is expected to propagate that error. Objectives that
// never report intermediate values simply run to completion.
func (t *ActiveTrial) Report(step int, value float64) error {
	t.reported = true
	t.lastValue = value

	if t.study != nil && t.study.shouldPrune(t.number, step, value) {
		return ErrTrialPruned
	}
	return nil
}
