package reconcile

import "context"

// Run is one reconciliation unit. The reconciler's side effects are not
// transactional, so a retried run must not re-apply what an earlier
// attempt already committed: calling the same Run again resumes at the
// first step that has not completed yet.
type Run func(ctx context.Context) Outcome

// progress records the side-effect steps a run has already applied, keyed
// by step name. Shared across attempts of the same Run, never across runs.
type progress struct {
	done map[string]bool
}

func newProgress() *progress {
	return &progress{done: make(map[string]bool)}
}

// step executes fn unless an earlier attempt already completed it.
func (p *progress) step(key string, fn func() Outcome) Outcome {
	if p.done[key] {
		return OK()
	}
	out := fn()
	if !out.Failed() {
		p.done[key] = true
	}
	return out
}
