// Package orchestrator creates jobs by deterministic identity, runs
// registered handlers with bounded parallelism, and emits terminal events.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/askql-systems/askql/internal/lifecycle"
	"github.com/askql-systems/askql/internal/metrics"
	"github.com/askql-systems/askql/internal/planner"
	"github.com/askql-systems/askql/internal/provider"
	"github.com/askql-systems/askql/internal/sqlgen"
	"github.com/askql-systems/askql/internal/warehouse"
	"github.com/askql-systems/askql/pkg/types"
)

// Handler processes one job and returns its result.
type Handler func(ctx context.Context, job *types.Job) (*types.JobResult, error)

// JobID derives the deterministic job identity from type and fingerprint.
// Two requests with the same fingerprint resolve to the same job id, making
// creation idempotent by construction.
func JobID(jobType, fingerprint string) string {
	return jobType + ":" + fingerprint
}

type processor struct {
	handler Handler
	sem     *semaphore.Weighted
}

// Orchestrator owns job records, dispatches handlers, and fans terminal
// events out to listeners registered at startup.
type Orchestrator struct {
	store  provider.Store
	logger *slog.Logger

	mu        sync.Mutex
	procs     map[string]*processor
	listeners []func(types.JobUpdate)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an Orchestrator.
func New(store provider.Store) *Orchestrator {
	return &Orchestrator{
		store:  store,
		logger: slog.Default(),
		procs:  make(map[string]*processor),
	}
}

// SetLogger overrides the default logger.
func (o *Orchestrator) SetLogger(l *slog.Logger) {
	if l != nil {
		o.logger = l
	}
}

// RegisterProcessor associates a handler with a job type. Concurrency bounds
// how many jobs of that type run in parallel; values below 1 mean 1.
func (o *Orchestrator) RegisterProcessor(jobType string, h Handler, concurrency int64) {
	if concurrency < 1 {
		concurrency = 1
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.procs[jobType] = &processor{handler: h, sem: semaphore.NewWeighted(concurrency)}
}

// OnUpdate registers a listener for job updates. Listeners are registered
// once at startup, before Start.
func (o *Orchestrator) OnUpdate(fn func(types.JobUpdate)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, fn)
}

// Start begins accepting work. The context bounds the lifetime of all
// handler executions.
func (o *Orchestrator) Start(ctx context.Context) {
	o.ctx, o.cancel = context.WithCancel(ctx)
}

// Stop cancels in-flight handlers and waits for them to finish.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// CreateOrFind returns the existing job for (jobType, fingerprint) when one
// exists in a non-failed state, otherwise enqueues a new job. The returned
// bool reports whether a new job was created.
//
// The find-then-create sequence is not atomic: two near-simultaneous requests
// with the same fingerprint can both miss and both enqueue. That race is
// deliberately tolerated; the SQL-fingerprint cache still converges duplicate
// jobs onto at most one paid executor call.
func (o *Orchestrator) CreateOrFind(ctx context.Context, jobType, fp string, payload any) (*types.Job, bool, error) {
	id := JobID(jobType, fp)

	existing, err := o.store.GetJob(ctx, id)
	if err != nil && !errors.Is(err, provider.ErrNotFound) {
		return nil, false, fmt.Errorf("looking up job %q: %w", id, err)
	}
	if existing != nil && existing.Status() != types.JobFailed {
		return existing, false, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, false, fmt.Errorf("encoding job payload: %w", err)
	}

	job := &types.Job{
		ID:          id,
		Type:        jobType,
		Fingerprint: fp,
		Payload:     data,
		CreatedAt:   time.Now().UTC(),
	}
	if err := o.store.PutJob(ctx, *job); err != nil {
		return nil, false, fmt.Errorf("creating job %q: %w", id, err)
	}
	metrics.JobsCreated.Add(1)

	// Dispatch a copy so the snapshot returned to the caller is never
	// mutated by the running handler.
	queued := *job
	if err := o.dispatch(&queued); err != nil {
		return nil, false, err
	}
	return job, true, nil
}

func (o *Orchestrator) dispatch(job *types.Job) error {
	o.mu.Lock()
	proc, ok := o.procs[job.Type]
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("no processor registered for job type %q", job.Type)
	}
	if o.ctx == nil {
		return fmt.Errorf("orchestrator not started")
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := proc.sem.Acquire(o.ctx, 1); err != nil {
			return // shutting down before the job ever started
		}
		defer proc.sem.Release(1)
		o.run(proc, job)
	}()
	return nil
}

// run drives one job through processing to its terminal state.
func (o *Orchestrator) run(proc *processor, job *types.Job) {
	if lifecycle.IsTerminal(job.Status()) {
		return
	}

	started := time.Now().UTC()
	if err := o.store.StartJob(o.ctx, job.ID, started); err != nil {
		o.logger.Error("failed to mark job started", "job", job.ID, "error", err)
	}
	job.StartedAt = &started
	o.emit(types.JobUpdate{JobID: job.ID, Status: types.JobProcessing})

	result, err := proc.handler(o.ctx, job)
	finished := time.Now().UTC()

	if err != nil {
		reason := SanitizeFailure(err)
		o.logger.Error("job failed", "job", job.ID, "reason", reason, "error", err)
		// Whatever the handler persisted before failing stays persisted.
		if serr := o.store.CompleteJob(o.ctx, job.ID, nil, reason, finished); serr != nil {
			o.logger.Error("failed to record job failure", "job", job.ID, "error", serr)
		}
		metrics.JobsFailed.Add(1)
		o.emit(types.JobUpdate{JobID: job.ID, Status: types.JobFailed, Error: reason})
		return
	}

	if serr := o.store.CompleteJob(o.ctx, job.ID, result, "", finished); serr != nil {
		o.logger.Error("failed to record job completion", "job", job.ID, "error", serr)
	}
	metrics.JobsCompleted.Add(1)
	o.emit(types.JobUpdate{JobID: job.ID, Status: types.JobCompleted, Result: result})
}

func (o *Orchestrator) emit(update types.JobUpdate) {
	o.mu.Lock()
	listeners := o.listeners
	o.mu.Unlock()
	for _, fn := range listeners {
		fn(update)
	}
}

// SanitizeFailure maps an internal error to the user-visible failure reason.
// Abstention reasons pass through; everything else collapses to a generic
// message so raw errors never leak.
func SanitizeFailure(err error) string {
	var abst *planner.AbstentionError
	if errors.As(err, &abst) {
		metrics.Abstentions.Add(1)
		return abst.Reason
	}
	var ce *sqlgen.CompileError
	if errors.As(err, &ce) {
		return "the generated query plan could not be compiled"
	}
	var ee *warehouse.ExecutorError
	if errors.As(err, &ee) {
		return "query execution failed"
	}
	return "an internal error occurred while processing the question"
}
