package sched

// history is a bounded record of completed task ids and their results. It
// lets a task enqueued with After = X, where X already finished, become
// ready immediately instead of registering a listener that would never
// fire — and lets WaitTask resolve instantly for ids that already completed.
//
// Eviction happens in batches so the common path is a cheap append.
type history struct {
	ids     []string
	results map[string]error // nil value = completed successfully
	limit   int
	batch   int
}

func newHistory(limit, batch int) *history {
	if limit <= 0 {
		limit = 1000
	}
	if batch <= 0 || batch > limit {
		batch = limit / 10
		if batch == 0 {
			batch = 1
		}
	}
	return &history{
		results: make(map[string]error, limit),
		limit:   limit,
		batch:   batch,
	}
}

func (h *history) add(id string, err error) {
	if len(h.ids) >= h.limit {
		for _, old := range h.ids[:h.batch] {
			delete(h.results, old)
		}
		h.ids = h.ids[h.batch:]
	}
	h.ids = append(h.ids, id)
	h.results[id] = err
}

func (h *history) contains(id string) bool {
	_, ok := h.results[id]
	return ok
}

func (h *history) result(id string) (error, bool) {
	err, ok := h.results[id]
	return err, ok
}

func (h *history) len() int { return len(h.ids) }
