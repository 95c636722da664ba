package domain

// RunReport aggregates the outcomes of one convergence run, preserving the
// order in which declarations completed. Pure aggregation, no side effects.
type RunReport struct {
	Outcomes []Outcome
	byID     map[string]int
}

func NewRunReport() *RunReport {
	return &RunReport{byID: make(map[string]int)}
}

// Add appends an outcome. Adding a second outcome for the same declaration is
// ignored: outcomes are write-once per run.
func (r *RunReport) Add(outcome Outcome) {
	if _, exists := r.byID[outcome.DeclarationID]; exists {
		return
	}
	r.byID[outcome.DeclarationID] = len(r.Outcomes)
	r.Outcomes = append(r.Outcomes, outcome)
}

func (r *RunReport) Outcome(id string) (Outcome, bool) {
	idx, ok := r.byID[id]
	if !ok {
		return Outcome{}, false
	}
	return r.Outcomes[idx], true
}

// OverallSuccess reports whether the run converged without failures.
// Cancelled declarations do not fail a run by themselves.
func (r *RunReport) OverallSuccess() bool {
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			return false
		}
	}
	return true
}

func (r *RunReport) CountByStatus() map[OutcomeStatus]int {
	counts := make(map[OutcomeStatus]int)
	for _, o := range r.Outcomes {
		counts[o.Status]++
	}
	return counts
}

func (r *RunReport) Len() int {
	return len(r.Outcomes)
}
