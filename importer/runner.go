package importer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stampbook/stampbook/logger"
)

// Runner supervises background import jobs. One goroutine per job; all jobs
// share the runner's context so shutdown cancels in-flight scans.
type Runner struct {
	store        *Store
	orchestrator *Orchestrator
	log          *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRunner creates a runner whose jobs stop when Stop is called.
func NewRunner(store *Store, orchestrator *Orchestrator) *Runner {
	return NewRunnerWithContext(context.Background(), store, orchestrator)
}

// NewRunnerWithContext creates a runner derived from a parent context.
func NewRunnerWithContext(parent context.Context, store *Store, orchestrator *Orchestrator) *Runner {
	ctx, cancel := context.WithCancel(parent)
	return &Runner{
		store:        store,
		orchestrator: orchestrator,
		log:          logger.Named("importer.runner"),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// StartJob creates and persists a pending job for the user, then launches it
// in the background. The returned job is the snapshot at creation time.
func (r *Runner) StartJob(userID string) (*Job, error) {
	job := NewJob(userID)
	if err := r.store.CreateJob(job); err != nil {
		return nil, err
	}

	r.log.Infow("Import job started", "job_id", job.ID, "user_id", userID)

	r.wg.Add(1)
	go r.run(job)

	snapshot := *job
	return &snapshot, nil
}

func (r *Runner) run(job *Job) {
	defer r.wg.Done()
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Errorw("Import job panicked",
				"job_id", job.ID,
				"panic", rec)
			if !job.Status.Terminal() {
				if err := job.Fail(fmt.Sprintf("internal error: %v", rec)); err == nil {
					if err := r.store.UpdateJob(job); err != nil {
						r.log.Errorw("Failed to persist panicked job", "job_id", job.ID, "error", err)
					}
				}
			}
		}
	}()

	if err := r.orchestrator.Run(r.ctx, job); err != nil {
		r.log.Warnw("Import job did not complete",
			"job_id", job.ID,
			"error", err)
	}
}

// Stop cancels all running jobs and waits for them to persist their final
// state, with a timeout so shutdown never blocks indefinitely.
func (r *Runner) Stop() {
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.log.Infow("Runner stopped, all jobs exited cleanly")
	case <-time.After(30 * time.Second):
		r.log.Warnw("Runner stop timeout, jobs may still be finishing")
	}
}
