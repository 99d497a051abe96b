package workerpool

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	bfcontext "github.com/vnykmshr/batchflow/pkg/common/context"
	bferrors "github.com/vnykmshr/batchflow/pkg/common/errors"
	"github.com/vnykmshr/batchflow/pkg/scheduling/task"
)

// minKeepAlive is the idle wait used for excess workers when KeepAlive is 0.
const minKeepAlive = time.Millisecond

// workItem is an admitted task together with its execution context.
type workItem struct {
	task     task.Task
	ctx      context.Context
	handle   *Handle
	enqueued time.Time
}

// newItem builds the execution context for t. It keeps the values of the
// submit context but not its cancellation, and ends when the handle is
// cancelled, the task resolves or the pool is shut down with ShutdownNow.
func (p *workerPool) newItem(ctx context.Context, t task.Task) *workItem {
	execCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(p.baseCtx, cancel)
	item := &workItem{
		task:     t,
		ctx:      execCtx,
		enqueued: time.Now(),
	}
	item.handle = newHandle(t.ID, func() {
		stop()
		cancel()
	})
	return item
}

// Submit adds a task to the pool.
func (p *workerPool) Submit(ctx context.Context, t task.Task) (*Handle, error) {
	ctx = bfcontext.OrBackground(ctx)
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if bfcontext.IsCanceled(ctx) {
		return nil, admissionError(ctx, t.ID)
	}

	item := p.newItem(ctx, t)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		item.handle.Cancel()
		err := fmt.Errorf("%w: task %q: pool %q is shut down: %w", bferrors.ErrRejected, t.ID, p.config.Name, bferrors.ErrClosed)
		p.reject(t.ID, err)
		return nil, err
	}

	if p.admitLocked(item) {
		p.mu.Unlock()
		atomic.AddInt64(&p.submitted, 1)
		return item.handle, nil
	}

	switch p.config.RejectionPolicy {
	case Block:
		w := &waiter{item: item, ready: make(chan struct{})}
		p.waiters = append(p.waiters, w)
		p.mu.Unlock()
		return p.awaitRoom(ctx, w)

	case DropOldest:
		if p.config.QueueCapacity > 0 {
			select {
			case oldest := <-p.queue:
				p.pending--
				p.enqueueLocked(item)
				p.mu.Unlock()
				atomic.AddInt64(&p.submitted, 1)
				p.drop(oldest, bferrors.Saturated("task %q evicted by %q", oldest.task.ID, t.ID))
				return item.handle, nil
			default:
			}
		}
		p.mu.Unlock()
		atomic.AddInt64(&p.submitted, 1)
		p.drop(item, bferrors.Saturated("task %q dropped: pool %q saturated", t.ID, p.config.Name))
		return item.handle, nil

	case DropNewest:
		p.mu.Unlock()
		atomic.AddInt64(&p.submitted, 1)
		p.drop(item, bferrors.Saturated("task %q dropped: pool %q saturated", t.ID, p.config.Name))
		return item.handle, nil

	case RunInCaller:
		p.mu.Unlock()
		atomic.AddInt64(&p.submitted, 1)
		atomic.AddInt64(&p.callerRuns, 1)
		p.execute(-1, item)
		return item.handle, nil

	default:
		p.mu.Unlock()
		item.handle.Cancel()
		err := bferrors.Saturated("task %q: pool %q saturated (workers=%d, queue=%d)",
			t.ID, p.config.Name, p.config.MaxSize, p.config.QueueCapacity)
		p.reject(t.ID, err)
		return nil, err
	}
}

// SubmitWithTimeout submits a task, bounding admission by timeout.
func (p *workerPool) SubmitWithTimeout(t task.Task, timeout time.Duration) (*Handle, error) {
	ctx, cancel := bfcontext.WithOptionalTimeout(context.Background(), timeout)
	defer cancel()
	return p.Submit(ctx, t)
}

// admitLocked places item with an idle worker, in the queue or on a new
// worker. It reports false when the pool is saturated.
func (p *workerPool) admitLocked(item *workItem) bool {
	if len(p.waiters) > 0 {
		return false
	}
	if p.hasRoomLocked() {
		p.enqueueLocked(item)
		if p.workers == 0 {
			p.spawnLocked(nil)
		}
		return true
	}
	if p.workers < p.config.MaxSize {
		p.spawnLocked(item)
		return true
	}
	return false
}

// hasRoomLocked reports whether an item can be enqueued without exceeding
// the queue capacity once every idle worker has taken one.
func (p *workerPool) hasRoomLocked() bool {
	return p.pending+p.busy < p.config.QueueCapacity+p.workers
}

func (p *workerPool) enqueueLocked(item *workItem) {
	p.pending++
	p.queue <- item
}

// admitWaitersLocked hands freed room to parked Block submitters in arrival order.
func (p *workerPool) admitWaitersLocked() {
	for len(p.waiters) > 0 && p.hasRoomLocked() {
		w := p.waiters[0]
		p.waiters[0] = nil
		p.waiters = p.waiters[1:]
		p.enqueueLocked(w.item)
		close(w.ready)
	}
}

func (p *workerPool) removeWaiterLocked(w *waiter) bool {
	for i, candidate := range p.waiters {
		if candidate == w {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// awaitRoom parks a Block submitter until it is admitted, refused by
// shutdown, or its wait times out.
func (p *workerPool) awaitRoom(ctx context.Context, w *waiter) (*Handle, error) {
	waitCtx, cancel := bfcontext.WithOptionalTimeout(ctx, p.config.BlockTimeout)
	defer cancel()

	select {
	case <-w.ready:
	case <-waitCtx.Done():
		p.mu.Lock()
		if p.removeWaiterLocked(w) {
			p.mu.Unlock()
			w.item.handle.Cancel()
			return nil, admissionError(waitCtx, w.item.task.ID)
		}
		p.mu.Unlock()
		// Admitted or refused concurrently; ready is already closed.
		<-w.ready
	}

	if w.err != nil {
		w.item.handle.Cancel()
		p.reject(w.item.task.ID, w.err)
		return nil, w.err
	}
	atomic.AddInt64(&p.submitted, 1)
	return w.item.handle, nil
}

func admissionError(ctx context.Context, taskID string) error {
	if bfcontext.IsTimedOut(ctx) {
		return fmt.Errorf("%w: task %q not admitted: %w", bferrors.ErrTimeout, taskID, ctx.Err())
	}
	return fmt.Errorf("%w: task %q not admitted: %w", bferrors.ErrCancelled, taskID, ctx.Err())
}

// spawnLocked starts a worker, optionally with a first task already claimed.
func (p *workerPool) spawnLocked(first *workItem) {
	p.workers++
	if p.workers > p.largest {
		p.largest = p.workers
	}
	if first != nil {
		p.busy++
	}
	id := p.nextID
	p.nextID++

	p.workerWg.Add(1)
	go p.runWorker(id, first)
}

// runWorker is the main loop for a worker.
func (p *workerPool) runWorker(id int, first *workItem) {
	defer p.workerWg.Done()
	p.logger.Debug("worker started", zap.Int("worker_id", id))

	if first != nil {
		p.work(id, first, true)
	}
	for {
		item, ok := p.next()
		if !ok {
			p.logger.Debug("worker stopped", zap.Int("worker_id", id))
			return
		}
		p.work(id, item, false)
	}
}

// next waits for the next queued item. It returns false when the worker
// should exit, either because the pool is draining and the queue is empty
// or because an excess worker stayed idle for KeepAlive.
func (p *workerPool) next() (*workItem, bool) {
	for {
		var (
			timer  *time.Timer
			expire <-chan time.Time
		)
		if p.isExcess() {
			timer = time.NewTimer(max(p.config.KeepAlive, minKeepAlive))
			expire = timer.C
		}

		select {
		case item := <-p.queue:
			stopTimer(timer)
			return item, true

		case <-p.closing:
			stopTimer(timer)
			select {
			case item := <-p.queue:
				return item, true
			default:
			}
			p.mu.Lock()
			p.workers--
			p.mu.Unlock()
			return nil, false

		case <-expire:
			if p.tryRetire() {
				return nil, false
			}
		}
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

func (p *workerPool) isExcess() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers > p.config.CoreSize
}

// tryRetire removes an idle excess worker when nothing is waiting for it.
func (p *workerPool) tryRetire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.workers <= p.config.CoreSize || p.pending > 0 || len(p.waiters) > 0 {
		return false
	}
	p.workers--
	p.logger.Debug("idle worker retired", zap.Int("workers", p.workers))
	return true
}

// work runs an item on a worker and releases its slot afterwards.
func (p *workerPool) work(id int, item *workItem, claimed bool) {
	if !claimed {
		p.mu.Lock()
		p.pending--
		p.busy++
		p.mu.Unlock()
	}

	p.execute(id, item)

	p.mu.Lock()
	p.busy--
	if !p.closed {
		p.admitWaitersLocked()
	}
	p.mu.Unlock()
}

// execute runs item and resolves its handle.
func (p *workerPool) execute(workerID int, item *workItem) {
	start := time.Now()
	outcome := Outcome{
		WorkerID:  workerID,
		CallerRan: workerID < 0,
		QueueWait: start.Sub(item.enqueued),
	}

	if err := item.ctx.Err(); err != nil {
		outcome.WorkerID = -1
		outcome.Err = fmt.Errorf("%w: task %q cancelled before start: %w", bferrors.ErrCancelled, item.task.ID, err)
		item.handle.resolve(outcome)
		return
	}

	if p.config.OnTaskStart != nil {
		p.config.OnTaskStart(workerID, item.task)
	}

	outcome.Value, outcome.Err = p.invoke(item)
	outcome.Duration = time.Since(start)

	atomic.AddInt64(&p.completed, 1)
	if outcome.Err != nil {
		atomic.AddInt64(&p.failed, 1)
	}
	if p.config.OnTaskComplete != nil {
		outcome.TaskID = item.task.ID
		p.config.OnTaskComplete(workerID, outcome)
	}
	item.handle.resolve(outcome)
}

// invoke calls the task action, applying TaskTimeout and converting errors
// and panics into TaskErrors.
func (p *workerPool) invoke(item *workItem) (value any, err error) {
	ctx, cancel := bfcontext.WithOptionalTimeout(item.ctx, p.config.TaskTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			p.logger.Error("task panicked",
				zap.String("task_id", item.task.ID),
				zap.Any("panic", r),
				zap.ByteString("stack", stack))
			if p.config.PanicHandler != nil {
				p.config.PanicHandler(item.task.ID, r)
			}
			value = nil
			err = &bferrors.TaskError{TaskID: item.task.ID, Panic: r, Stack: stack}
		}
	}()

	value, err = item.task.Action(ctx)
	if err != nil {
		return nil, &bferrors.TaskError{TaskID: item.task.ID, Cause: err}
	}
	return value, nil
}

// drop resolves an admitted item as rejected without running it.
func (p *workerPool) drop(item *workItem, err error) {
	p.reject(item.task.ID, err)
	item.handle.resolve(Outcome{WorkerID: -1, Err: err})
}

func (p *workerPool) reject(taskID string, err error) {
	atomic.AddInt64(&p.rejected, 1)
	p.logger.Debug("task rejected", zap.String("task_id", taskID), zap.Error(err))
	if p.config.OnReject != nil {
		p.config.OnReject(taskID, err)
	}
}

// Shutdown initiates a graceful shutdown of the pool.
func (p *workerPool) Shutdown() <-chan struct{} {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		waiters := p.waiters
		p.waiters = nil
		for _, w := range waiters {
			w.err = fmt.Errorf("%w: task %q: pool %q is shut down: %w",
				bferrors.ErrRejected, w.item.task.ID, p.config.Name, bferrors.ErrClosed)
			close(w.ready)
		}
		close(p.closing)
		p.mu.Unlock()

		p.logger.Debug("shutting down", zap.Int("blocked_submits", len(waiters)))

		go func() {
			p.workerWg.Wait()
			p.abort()
			close(p.done)
		}()
	})
	return p.done
}

// ShutdownNow stops the pool and cancels all outstanding work.
func (p *workerPool) ShutdownNow() <-chan struct{} {
	done := p.Shutdown()
	p.killOnce.Do(func() {
		p.abort()

		var drained []*workItem
		p.mu.Lock()
		for {
			select {
			case item := <-p.queue:
				p.pending--
				drained = append(drained, item)
				continue
			default:
			}
			break
		}
		p.mu.Unlock()

		for _, item := range drained {
			item.handle.resolve(Outcome{
				WorkerID: -1,
				Err: fmt.Errorf("%w: task %q discarded by shutdown: %w",
					bferrors.ErrCancelled, item.task.ID, context.Canceled),
			})
		}
		p.logger.Debug("shut down immediately", zap.Int("discarded", len(drained)))
	})
	return done
}

// ShutdownWithTimeout shuts down gracefully and escalates to ShutdownNow
// after timeout.
func (p *workerPool) ShutdownWithTimeout(timeout time.Duration) <-chan struct{} {
	done := p.Shutdown()
	go func() {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-done:
		case <-timer.C:
			p.logger.Warn("graceful shutdown timed out", zap.Duration("timeout", timeout))
			p.ShutdownNow()
		}
	}()
	return done
}

// Size returns the number of live workers.
func (p *workerPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers
}

// QueueSize returns the number of tasks waiting for a worker.
func (p *workerPool) QueueSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queuedLocked()
}

func (p *workerPool) queuedLocked() int {
	return max(0, p.pending+p.busy-p.workers)
}

// ActiveWorkers returns the number of workers currently executing tasks.
func (p *workerPool) ActiveWorkers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busy
}

// TotalSubmitted returns the number of submissions that produced a handle.
func (p *workerPool) TotalSubmitted() int64 {
	return atomic.LoadInt64(&p.submitted)
}

// TotalCompleted returns the number of tasks that finished executing.
func (p *workerPool) TotalCompleted() int64 {
	return atomic.LoadInt64(&p.completed)
}

// Stats returns a snapshot of the pool's counters.
func (p *workerPool) Stats() Stats {
	p.mu.Lock()
	s := Stats{
		CoreSize:        p.config.CoreSize,
		MaxSize:         p.config.MaxSize,
		QueueCapacity:   p.config.QueueCapacity,
		PoolSize:        p.workers,
		LargestPoolSize: p.largest,
		ActiveWorkers:   p.busy,
		Queued:          p.queuedLocked(),
		BlockedSubmits:  len(p.waiters),
	}
	p.mu.Unlock()

	s.Submitted = atomic.LoadInt64(&p.submitted)
	s.Completed = atomic.LoadInt64(&p.completed)
	s.Failed = atomic.LoadInt64(&p.failed)
	s.Rejected = atomic.LoadInt64(&p.rejected)
	s.CallerRuns = atomic.LoadInt64(&p.callerRuns)
	return s
}
