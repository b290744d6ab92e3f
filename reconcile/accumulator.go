package reconcile

import "github.com/agusx1211/crewdeck/model"

// Accumulator is the per-job scratch space. It is working memory for the
// reconciler, never rendered directly; tasks are accumulated but never
// materialized into the transcript.
type Accumulator struct {
	steps   []model.Message
	tasks   []model.Message
	results []model.Message
}

func (a *Accumulator) Reset() {
	a.steps = a.steps[:0]
	a.tasks = a.tasks[:0]
	a.results = a.results[:0]
}

func (a *Accumulator) Push(kind model.Kind, m model.Message) {
	switch kind {
	case model.KindStep:
		a.steps = append(a.steps, m)
	case model.KindTask:
		a.tasks = append(a.tasks, m)
	case model.KindResult:
		a.results = append(a.results, m)
	}
}

func (a *Accumulator) Empty() bool {
	return len(a.steps) == 0 && len(a.tasks) == 0 && len(a.results) == 0
}
