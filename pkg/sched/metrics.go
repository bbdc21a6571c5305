package sched

import "time"

// Metrics is a snapshot of the scheduler's counters and gauges. TotalTasks
// counts outstanding work (ready + awaiting + executing); ProcessedTasks and
// Errors are monotonic. Execution-time stats cover successful commands only.
type Metrics struct {
	TotalTasks     int64         `json:"totalTasks"`
	ProcessedTasks int64         `json:"processedTasks"`
	Errors         int64         `json:"errors"`
	ActiveTasks    int64         `json:"activeTasks"`
	AwaitingTasks  int64         `json:"awaitingTasks"`
	AvgExecTime    time.Duration `json:"avgExecTime"`
	MinExecTime    time.Duration `json:"minExecTime"`
	MaxExecTime    time.Duration `json:"maxExecTime"`
}

// recordExec folds one successful execution into the running stats. n is the
// number of samples folded in before this one.
func (m *Metrics) recordExec(elapsed time.Duration, n int64) {
	m.AvgExecTime = time.Duration((int64(m.AvgExecTime)*n + int64(elapsed)) / (n + 1))
	if m.MinExecTime == 0 || elapsed < m.MinExecTime {
		m.MinExecTime = elapsed
	}
	if elapsed > m.MaxExecTime {
		m.MaxExecTime = elapsed
	}
}
