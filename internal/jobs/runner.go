// Package jobs runs non-critical background work: cache invalidation,
// activity-event persistence, notifications. Execution is at-least-once, so
// every handler must be idempotent. Nothing a user request returns may
// depend on a job succeeding.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Handler processes one job payload. It is retried on error, so it must be
// idempotent.
type Handler func(ctx context.Context, payload []byte) error

// Options tune a single enqueue.
type Options struct {
	// MaxAttempts overrides the runner default when > 0.
	MaxAttempts int
	// Delay postpones the first attempt.
	Delay time.Duration
}

// Config tunes a Runner.
type Config struct {
	// Concurrency bounds parallel job execution. Default 5.
	Concurrency int
	// MaxAttempts is the default attempt budget per job. Default 3.
	MaxAttempts int
	// AttemptTimeout bounds each attempt. Default 30s.
	AttemptTimeout time.Duration
	// BackoffBase scales the 2^attempt retry backoff. Default 1s; tests
	// shrink it.
	BackoffBase time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 5
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 30 * time.Second
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	return c
}

type job struct {
	jobType     string
	payload     []byte
	attempt     int
	maxAttempts int
}

// Runner is an in-process background executor with bounded concurrency and
// exponential-backoff retries.
type Runner struct {
	cfg      Config
	log      *zap.Logger
	mu       sync.RWMutex
	handlers map[string]Handler

	ready   chan job
	stop    chan struct{}
	workers sync.WaitGroup
	pending sync.WaitGroup
}

// NewRunner creates a job runner; call Start before enqueueing.
func NewRunner(cfg Config, log *zap.Logger) *Runner {
	return &Runner{
		cfg:      cfg.withDefaults(),
		log:      log,
		handlers: make(map[string]Handler),
		ready:    make(chan job, 256),
		stop:     make(chan struct{}),
	}
}

// Register installs the handler for a job type. Enqueueing an unregistered
// type is an error.
func (r *Runner) Register(jobType string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[jobType] = handler
}

// Start launches the worker pool.
func (r *Runner) Start() {
	for i := 0; i < r.cfg.Concurrency; i++ {
		r.workers.Add(1)
		go r.work()
	}
}

// Stop shuts the pool down after in-flight jobs finish. Queued jobs that
// have not started are abandoned; they are non-critical by contract.
func (r *Runner) Stop() {
	close(r.stop)
	r.workers.Wait()
}

// Drain blocks until every enqueued job reached a terminal state. Test hook.
func (r *Runner) Drain() {
	r.pending.Wait()
}

// Enqueue schedules a job. The payload is marshalled to JSON. Never blocks
// the caller.
func (r *Runner) Enqueue(jobType string, payload interface{}, opts Options) error {
	r.mu.RLock()
	_, ok := r.handlers[jobType]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no handler registered for job type %q", jobType)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal job payload: %w", err)
	}

	maxAttempts := r.cfg.MaxAttempts
	if opts.MaxAttempts > 0 {
		maxAttempts = opts.MaxAttempts
	}

	j := job{jobType: jobType, payload: body, maxAttempts: maxAttempts}
	r.pending.Add(1)
	r.schedule(j, opts.Delay)
	return nil
}

func (r *Runner) schedule(j job, delay time.Duration) {
	if delay > 0 {
		time.AfterFunc(delay, func() { r.push(j) })
		return
	}
	r.push(j)
}

func (r *Runner) push(j job) {
	select {
	case r.ready <- j:
	default:
		// Queue full: hand off without blocking the enqueueing request.
		go func() {
			select {
			case r.ready <- j:
			case <-r.stop:
				r.pending.Done()
			}
		}()
	}
}

func (r *Runner) work() {
	defer r.workers.Done()
	for {
		select {
		case <-r.stop:
			return
		case j := <-r.ready:
			r.run(j)
		}
	}
}

func (r *Runner) run(j job) {
	r.mu.RLock()
	handler := r.handlers[j.jobType]
	r.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.AttemptTimeout)
	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("job panicked: %v", p)
			}
		}()
		return handler(ctx, j.payload)
	}()
	cancel()

	if err == nil {
		r.pending.Done()
		return
	}

	j.attempt++
	if j.attempt >= j.maxAttempts {
		r.log.Error("job failed after final attempt",
			zap.String("type", j.jobType),
			zap.Int("attempts", j.attempt),
			zap.Error(err))
		r.pending.Done()
		return
	}

	backoff := r.cfg.BackoffBase << uint(j.attempt)
	r.log.Warn("job attempt failed, retrying",
		zap.String("type", j.jobType),
		zap.Int("attempt", j.attempt),
		zap.Duration("backoff", backoff),
		zap.Error(err))
	r.schedule(j, backoff)
}
