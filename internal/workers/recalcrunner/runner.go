package recalcrunner

import (
	"context"
	"errors"
	"log"
	"sync"

	"dealscore/internal/domain"
	"dealscore/internal/ports"
)

// Runner is the fire-and-forget handoff between request handlers and the
// orchestrator. Triggers land in a bounded queue drained by worker
// goroutines; nothing a worker does can fail the code that enqueued it.
type Runner struct {
	recalc ports.Recalculator
	jobs   chan ports.RecalcJob

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func New(recalc ports.Recalculator, queueSize int) *Runner {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Runner{recalc: recalc, jobs: make(chan ports.RecalcJob, queueSize)}
}

// Start launches the workers. They exit once Stop has drained the queue.
func (r *Runner) Start(ctx context.Context, concurrency int) {
	if concurrency < 1 {
		concurrency = 1
	}
	for i := 0; i < concurrency; i++ {
		r.wg.Add(1)
		go func(idx int) {
			defer r.wg.Done()
			for job := range r.jobs {
				r.process(ctx, idx, job)
			}
		}(i)
	}
}

// Trigger enqueues a recalculation without waiting. A full or stopped queue
// drops the trigger with a log line.
func (r *Runner) Trigger(recommendationID, triggerSource string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		log.Printf("recalc queue stopped: dropping %s (trigger=%s)", recommendationID, triggerSource)
		return
	}
	select {
	case r.jobs <- ports.RecalcJob{RecommendationID: recommendationID, TriggerSource: triggerSource}:
	default:
		log.Printf("recalc queue full: dropping %s (trigger=%s)", recommendationID, triggerSource)
	}
}

// Stop refuses new triggers, lets queued jobs finish and waits for workers.
// Safe to call more than once.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.jobs)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Runner) process(ctx context.Context, idx int, job ports.RecalcJob) {
	defer func() {
		if p := recover(); p != nil {
			log.Printf("recalc worker %d: panic on %s (trigger=%s): %v", idx, job.RecommendationID, job.TriggerSource, p)
		}
	}()
	if err := r.recalc.Recalculate(ctx, job.RecommendationID, job.TriggerSource); err != nil {
		logFailure(idx, job, err)
	}
}

func logFailure(idx int, job ports.RecalcJob, err error) {
	var rerr *domain.RecalculationError
	if errors.As(err, &rerr) && errors.Is(rerr.Err, domain.ErrNotFound) {
		log.Printf("recalc worker %d: %s (trigger=%s): recommendation not found, dropped", idx, job.RecommendationID, job.TriggerSource)
		return
	}
	log.Printf("recalc worker %d: job dropped: %v", idx, err)
}

// ProcessInline runs one recalculation on the caller's goroutine using the
// same recalculator the workers use.
func ProcessInline(ctx context.Context, recalc ports.Recalculator, recommendationID, triggerSource string) error {
	return recalc.Recalculate(ctx, recommendationID, triggerSource)
}

var _ ports.Trigger = (*Runner)(nil)
