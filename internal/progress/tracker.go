package progress

import "sync"

// minDelta is the smallest overall change worth reporting.
const minDelta = 0.1

// Tracker folds per-step percentages into one whole-plan percentage weighted
// by each step's estimated cost. The reported value never decreases.
type Tracker struct {
	mu       sync.Mutex
	weights  []float64
	total    float64
	steps    []float64
	reported float64
	report   func(pct float64)
}

// NewTracker creates a tracker for len(weights) steps. Non-positive weights
// count as zero; if every weight is zero the steps count equally. report may
// be nil.
func NewTracker(weights []float64, report func(pct float64)) *Tracker {
	w := make([]float64, len(weights))
	total := 0.0
	for i, v := range weights {
		if v > 0 {
			w[i] = v
			total += v
		}
	}
	if total == 0 {
		for i := range w {
			w[i] = 1
		}
		total = float64(len(w))
	}
	return &Tracker{
		weights: w,
		total:   total,
		steps:   make([]float64, len(w)),
		report:  report,
	}
}

// Step records that step i has reached pct percent. Out-of-range steps and
// regressions are ignored. report runs under the tracker's lock so values
// arrive in order; it must not call back into the tracker.
func (t *Tracker) Step(i int, pct float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.steps) {
		return
	}
	pct = clamp(pct)
	if pct <= t.steps[i] {
		return
	}
	t.steps[i] = pct

	overall := t.percentLocked()
	if overall-t.reported < minDelta && overall < 100 {
		return
	}
	if overall <= t.reported && t.reported > 0 {
		return
	}
	t.reported = overall
	if t.report != nil {
		t.report(overall)
	}
}

// Complete marks step i as finished.
func (t *Tracker) Complete(i int) { t.Step(i, 100) }

// Percent returns the current overall percentage.
func (t *Tracker) Percent() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.percentLocked()
}

func (t *Tracker) percentLocked() float64 {
	if t.total == 0 {
		return 0
	}
	sum := 0.0
	for i, p := range t.steps {
		sum += t.weights[i] * p
	}
	pct := sum / t.total
	if 100-pct < 1e-9 {
		// Absorb float drift once every weighted step is done.
		return 100
	}
	return clamp(pct)
}

func clamp(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
