package sched

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avykov/simex/pkg/util"
)

const (
	DefaultConcurrency = 10
	DefaultWaitTimeout = 10 * time.Second

	historyLimit      = 1000
	historyEvictBatch = 100
	waitAllPoll       = 100 * time.Millisecond
)

var (
	ErrNotRunning  = errors.New("sched: scheduler is not running")
	ErrNilCommand  = errors.New("sched: task has no command")
	ErrWaitTimeout = errors.New("sched: wait for task timed out")
	// ErrTaskDropped is delivered to waiters of a task that was cancelled
	// because its dependency failed (or was itself dropped).
	ErrTaskDropped = errors.New("sched: task dropped, dependency failed")
)

// DropReport describes the outcome of DropTasks: ready tasks are dropped,
// already-executing tasks cannot be stopped mid-flight.
type DropReport struct {
	Dropped     int `json:"dropped"`
	UnDroppable int `json:"unDroppable"`
}

// Scheduler executes commands under a concurrency cap, honoring run-after
// dependencies between tasks. One mutex guards the ready queue, the waiting
// index, the executing set, the completion history and the metrics; commands
// themselves run on their own goroutines and may block without holding it.
//
// Per task: Pending -> [Awaiting(after) ->] Ready -> Executing -> Done. A
// task whose dependency fails is dropped without executing, and the drop
// cascades to its own dependents.
type Scheduler struct {
	mu        sync.Mutex
	active    bool
	ctx       context.Context
	ready     []Task
	waiting   map[string][]Task // dependency id -> tasks awaiting it
	executing map[string]struct{}
	waiters   map[string][]chan error // task id -> WaitTask listeners
	done      *history
	metrics   Metrics
	samples   int64 // successful executions folded into AvgExecTime

	concurrency int
	clock       util.Clock
	log         *zap.SugaredLogger
}

func New(concurrency int, logger *zap.SugaredLogger) *Scheduler {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Scheduler{
		waiting:     make(map[string][]Task),
		executing:   make(map[string]struct{}),
		waiters:     make(map[string][]chan error),
		done:        newHistory(historyLimit, historyEvictBatch),
		concurrency: concurrency,
		clock:       util.RealClock{},
		log:         logger,
	}
}

// SetClock replaces the clock. Call before Start; used by tests.
func (s *Scheduler) SetClock(c util.Clock) { s.clock = c }

// Start makes the scheduler accept and execute tasks. Commands receive ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		s.log.Warnw("scheduler_already_running")
		return
	}
	s.active = true
	s.ctx = ctx
	s.mu.Unlock()
	s.pump()
}

// Stop stops admission. In-flight commands run to completion; the ready
// queue stays intact and resumes on the next Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		s.log.Warnw("scheduler_not_running")
		return
	}
	s.active = false
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// GenID returns a fresh task id for callers that don't pick their own.
func (s *Scheduler) GenID() string { return uuid.NewString() }

// Concurrency returns the configured cap.
func (s *Scheduler) Concurrency() int { return s.concurrency }

// Enqueue admits a task. A task without a dependency (or whose dependency is
// already in the completion history) goes straight to the ready queue; one
// with an unresolved dependency waits, and is released — or dropped, if the
// dependency fails — when that dependency completes. A dependency recorded
// in history as dropped cancels the new task the same way a live drop would.
func (s *Scheduler) Enqueue(t Task) error {
	if t.Command == nil {
		return ErrNilCommand
	}
	if t.ID == "" {
		t.ID = s.GenID()
	}

	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return ErrNotRunning
	}
	switch prior, ok := s.done.result(t.After); {
	case t.After == "":
		s.metrics.TotalTasks++
		s.ready = append(s.ready, t)
	case ok && errors.Is(prior, ErrTaskDropped):
		// The dependency never ran; the cascade applies to late dependents
		// as well.
		s.dropLocked(t.ID, t.After)
		s.mu.Unlock()
		return nil
	case ok:
		s.metrics.TotalTasks++
		s.ready = append(s.ready, t)
	default:
		s.metrics.TotalTasks++
		s.metrics.AwaitingTasks++
		s.waiting[t.After] = append(s.waiting[t.After], t)
	}
	s.mu.Unlock()

	s.pump()
	return nil
}

// pump moves ready tasks into execution until the cap is hit. Re-entered
// after every enqueue and every completion.
func (s *Scheduler) pump() {
	for {
		s.mu.Lock()
		if !s.active || len(s.ready) == 0 || s.metrics.ActiveTasks >= int64(s.concurrency) {
			s.mu.Unlock()
			return
		}
		t := s.ready[0]
		s.ready = s.ready[1:]
		s.metrics.ActiveTasks++
		s.executing[t.ID] = struct{}{}
		ctx := s.ctx
		s.mu.Unlock()

		go s.run(ctx, t)
	}
}

func (s *Scheduler) run(ctx context.Context, t Task) {
	// The delay is awaited inside the slot so the task genuinely starts no
	// earlier than requested.
	if t.Delay > 0 {
		select {
		case <-s.clock.After(t.Delay):
		case <-ctx.Done():
			s.complete(t, ctx.Err(), 0)
			return
		}
	}

	start := s.clock.Now()
	err := t.Command.Execute(ctx)
	s.complete(t, err, s.clock.Now().Sub(start))
}

// complete is the single path that mutates metrics and resolves dependents.
func (s *Scheduler) complete(t Task, err error, elapsed time.Duration) {
	s.mu.Lock()
	s.done.add(t.ID, err)
	delete(s.executing, t.ID)

	if err != nil {
		s.metrics.Errors++
		s.log.Errorw("task_failed", "id", t.ID, "err", err)
	} else {
		s.metrics.recordExec(elapsed, s.samples)
		s.samples++
	}
	s.metrics.ActiveTasks--
	s.metrics.TotalTasks--
	s.metrics.ProcessedTasks++

	notify := s.takeWaitersLocked(t.ID)
	s.resolveDependentsLocked(t.ID, err == nil)
	s.mu.Unlock()

	for _, ch := range notify {
		ch <- err
	}
	s.pump()
}

// resolveDependentsLocked releases or drops the tasks awaiting id. A drop
// behaves like a failed completion for anything further downstream, so
// cancellation cascades through whole dependency chains.
func (s *Scheduler) resolveDependentsLocked(id string, success bool) {
	dependents := s.waiting[id]
	delete(s.waiting, id)

	for _, dep := range dependents {
		s.metrics.AwaitingTasks--
		if success {
			s.ready = append(s.ready, dep)
			continue
		}
		s.metrics.TotalTasks--
		s.dropLocked(dep.ID, id)
	}
}

// dropLocked records the drop of one task: waiters present and future both
// observe ErrTaskDropped, and the task's own dependents are dropped in turn.
func (s *Scheduler) dropLocked(id, after string) {
	s.done.add(id, ErrTaskDropped)
	s.log.Warnw("task_dropped", "id", id, "after", after)
	for _, ch := range s.takeWaitersLocked(id) {
		ch <- ErrTaskDropped
	}
	s.resolveDependentsLocked(id, false)
}

func (s *Scheduler) takeWaitersLocked(id string) []chan error {
	chans := s.waiters[id]
	delete(s.waiters, id)
	return chans
}

// WaitTask blocks until the task's completion event fires (or resolves
// immediately from the history if it already did), returning the command's
// error: nil on success, ErrTaskDropped if it was cascaded away. After
// timeout (default 10s) it fails with ErrWaitTimeout; the timeout is
// caller-side and does not affect the task itself.
func (s *Scheduler) WaitTask(ctx context.Context, id string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	ch := make(chan error, 1)
	s.mu.Lock()
	if err, ok := s.done.result(id); ok {
		// Already completed: resolve from history instead of waiting for an
		// event that fired in the past.
		s.mu.Unlock()
		return err
	}
	s.waiters[id] = append(s.waiters[id], ch)
	s.mu.Unlock()

	select {
	case err := <-ch:
		return err
	case <-s.clock.After(timeout):
		s.dropWaiter(id, ch)
		return ErrWaitTimeout
	case <-ctx.Done():
		s.dropWaiter(id, ch)
		return ctx.Err()
	}
}

func (s *Scheduler) dropWaiter(id string, ch chan error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chans := s.waiters[id]
	for i, c := range chans {
		if c == ch {
			s.waiters[id] = append(chans[:i], chans[i+1:]...)
			break
		}
	}
	if len(s.waiters[id]) == 0 {
		delete(s.waiters, id)
	}
}

// WaitAll polls until no task is executing or ready to execute. It does not
// block new admissions: callers needing a full drain must stop admissions
// first.
func (s *Scheduler) WaitAll(ctx context.Context) error {
	for {
		s.mu.Lock()
		idle := s.metrics.ActiveTasks == 0 && len(s.ready) == 0
		s.mu.Unlock()
		if idle {
			return nil
		}
		select {
		case <-s.clock.After(waitAllPoll):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// DropTasks clears the ready queue and cancels all pending dependency
// listeners. Already-executing tasks keep running and are reported as
// unDroppable; TotalTasks is reset to reflect only that in-flight work.
func (s *Scheduler) DropTasks() DropReport {
	s.mu.Lock()
	ready := s.ready
	s.ready = nil
	pending := s.waiting
	s.waiting = make(map[string][]Task)

	cancelled := make([]string, 0, len(ready))
	for _, t := range ready {
		cancelled = append(cancelled, t.ID)
	}
	for _, tasks := range pending {
		for _, t := range tasks {
			s.metrics.AwaitingTasks--
			cancelled = append(cancelled, t.ID)
		}
	}

	s.metrics.TotalTasks = s.metrics.ActiveTasks
	report := DropReport{Dropped: len(ready), UnDroppable: int(s.metrics.ActiveTasks)}

	var notify []chan error
	for _, id := range cancelled {
		s.done.add(id, ErrTaskDropped)
		notify = append(notify, s.takeWaitersLocked(id)...)
	}
	s.mu.Unlock()

	for _, ch := range notify {
		ch <- ErrTaskDropped
	}
	return report
}

// FilterQueue partitions the ready queue: tasks for which keep returns false
// are removed without executing, and anything awaiting a removed task is
// dropped the same way a failed dependency drops it. Executing tasks are
// untouched. Used to surgically cancel all pending work of one logical
// producer.
func (s *Scheduler) FilterQueue(keep func(Task) bool) (removed, kept []Task) {
	s.mu.Lock()
	for _, t := range s.ready {
		if keep(t) {
			kept = append(kept, t)
		} else {
			removed = append(removed, t)
		}
	}
	s.ready = append(s.ready[:0:0], kept...)
	s.metrics.TotalTasks -= int64(len(removed))
	for _, t := range removed {
		s.dropLocked(t.ID, "")
	}
	s.mu.Unlock()
	return removed, kept
}

// Executing returns the ids currently holding a slot.
func (s *Scheduler) Executing() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.executing))
	for id := range s.executing {
		ids = append(ids, id)
	}
	return ids
}

// Metrics returns a snapshot, not a live reference.
func (s *Scheduler) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}
