// Package event implements Component H: the process-wide MPSC event queue
// and the closed set of event payload kinds that flow through it.
package event

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/input-output-hk/hermes-sub003/internal/herrors"
)

// TargetApp selects which loaded apps an event is dispatched to.
type TargetApp struct {
	All  bool
	List []string
}

// TargetModule selects which modules, within a selected app, an event is
// dispatched to.
type TargetModule struct {
	All  bool
	List []string
}

// AllApps and AllModules are the common "broadcast" selectors.
func AllApps() TargetApp       { return TargetApp{All: true} }
func AllModules() TargetModule { return TargetModule{All: true} }

// Payload is the closed set of event kinds; EventName returns the guest
// export the dispatcher must call for this kind (spec.md §6 guest-export
// protocol). Implementations live in payloads.go.
type Payload interface {
	EventName() string
	sealed()
}

// HermesEvent is one unit of dispatch: a payload plus routing and an
// optional one-shot completion signal.
type HermesEvent struct {
	ID           uuid.UUID
	TargetApp    TargetApp
	TargetModule TargetModule
	Payload      Payload
	EnqueuedAt   time.Time

	mu       sync.Mutex
	inFlight int
	done     chan struct{}
}

// NewEvent constructs an event ready for enqueuing.
func NewEvent(target TargetApp, modules TargetModule, payload Payload) *HermesEvent {
	return &HermesEvent{
		ID:           uuid.New(),
		TargetApp:    target,
		TargetModule: modules,
		Payload:      payload,
		EnqueuedAt:   time.Now(),
	}
}

// WithCompletion attaches a one-shot channel that closes once every
// targeted (app, module) invocation has completed (spec.md §4.7).
func (e *HermesEvent) WithCompletion() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done == nil {
		e.done = make(chan struct{})
	}
	return e.done
}

// AddInFlight adjusts the event's in-flight counter; the dispatcher calls
// this once per targeted (app, module) pair before submitting its task.
func (e *HermesEvent) AddInFlight(n int) {
	e.mu.Lock()
	e.inFlight += n
	e.mu.Unlock()
}

// FinishedOne decrements the in-flight counter and, on reaching zero, fires
// the completion channel exactly once.
func (e *HermesEvent) FinishedOne() {
	e.mu.Lock()
	e.inFlight--
	fire := e.inFlight == 0 && e.done != nil
	done := e.done
	e.mu.Unlock()
	if fire {
		close(done)
	}
}

// ExitStatus is the result of a wait on the queue's exit condvar.
type ExitStatus int

const (
	StatusTimeout ExitStatus = iota
	StatusDone
	StatusQueueClosed
	StatusQueuePoisoned
)

// Exit bundles a status with its exit code, if StatusDone.
type Exit struct {
	Status ExitStatus
	Code   int
}

// Queue is the single process-wide MPSC event queue (spec.md §4.7).
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []*HermesEvent
	closed bool
	poisoned bool

	exitMu      sync.Mutex
	exitCond    *sync.Cond
	exit        *Exit
	pendingCode *int
}

// NewQueue creates an empty, open queue.
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	q.exitCond = sync.NewCond(&q.exitMu)
	return q
}

// Send enqueues ev, preserving producer order. Returns herrors.ErrQueueClosed
// if the queue has been shut down.
func (q *Queue) Send(ev *HermesEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return herrors.ErrQueueClosed
	}
	q.items = append(q.items, ev)
	q.cond.Signal()
	return nil
}

// Pop blocks until an event is available or the queue is closed and
// drained, in which case it returns nil, false.
func (q *Queue) Pop() (*HermesEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	ev := q.items[0]
	q.items = q.items[1:]
	return ev, true
}

// RequestShutdown closes the queue to new sends; already-enqueued events
// continue to be popped via Pop until drained. Pending producers get
// herrors.ErrQueueClosed instead of blocking. It does not itself fire the
// exit condvar: spec.md §4.7 requires the dispatcher to drain every
// currently in-flight and queued task before "the exit-lock condvar then
// fires", so that only happens once the dispatcher calls MarkDrained.
// This also sidesteps a deadlock: a guest's own done() call reaches
// RequestShutdown from inside a dispatcher-tracked invocation that hasn't
// finished yet, so RequestShutdown itself must never block on drain.
func (q *Queue) RequestShutdown(exitCode int) {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()

	q.exitMu.Lock()
	if q.pendingCode == nil {
		code := exitCode
		q.pendingCode = &code
	}
	q.exitMu.Unlock()
}

// MarkDrained fires the exit condvar using the code RequestShutdown
// recorded. The dispatcher calls this once its worker pool has finished
// every in-flight and queued task following shutdown (spec.md §4.7).
func (q *Queue) MarkDrained() {
	q.exitMu.Lock()
	defer q.exitMu.Unlock()
	if q.exit != nil {
		return
	}
	code := 0
	if q.pendingCode != nil {
		code = *q.pendingCode
	}
	q.exit = &Exit{Status: StatusDone, Code: code}
	q.exitCond.Broadcast()
}

// Poison marks the queue as having failed unrecoverably; WaitExit callers
// observe StatusQueuePoisoned.
func (q *Queue) Poison() {
	q.mu.Lock()
	q.poisoned = true
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()

	q.exitMu.Lock()
	q.exit = &Exit{Status: StatusQueuePoisoned}
	q.exitMu.Unlock()
	q.exitCond.Broadcast()
}

// WaitExit blocks until MarkDrained or Poison has been called
// (RequestShutdown alone does not unblock it).
func (q *Queue) WaitExit() Exit {
	q.exitMu.Lock()
	defer q.exitMu.Unlock()
	for q.exit == nil {
		q.exitCond.Wait()
	}
	return *q.exit
}

// WaitExitTimeout is WaitExit bounded by d, returning StatusTimeout if it
// elapses first.
func (q *Queue) WaitExitTimeout(d time.Duration) Exit {
	result := make(chan Exit, 1)
	go func() { result <- q.WaitExit() }()
	select {
	case e := <-result:
		return e
	case <-time.After(d):
		return Exit{Status: StatusTimeout}
	}
}
