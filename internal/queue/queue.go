// Package queue serializes every outbound provider call. One runner
// goroutine executes tasks in FIFO order with a minimum spacing between
// them, so token refreshes always complete before dependent calls and
// no two mutations of the same media interleave. Retriable failures are
// re-run with exponential backoff and the wait dictated by the
// provider's rate limiter.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/zoro-md/zoro/internal/domain"
	"github.com/zoro-md/zoro/internal/ratelimit"
)

// ErrClosed is returned for tasks submitted after shutdown
var ErrClosed = errors.New("queue closed")

// Request is one unit of outbound work
type Request struct {
	Source domain.Source
	Kind   string // short label for logs: "list", "search", "update", ...
	Fn     func(ctx context.Context) (any, error)
}

// Options tunes queue behavior; zero values take defaults
type Options struct {
	Spacing        time.Duration // minimum gap between task starts (default 250ms)
	TaskTimeout    time.Duration // soft timeout applied when the caller set none (default 15s)
	MaxAttempts    int           // total attempts for retriable failures (default 4)
	MaxAuthRetries int           // extra attempts after auth failures (default 2)
	RetryBase      time.Duration // first retry delay (default 1s)
	RetryMax       time.Duration // retry delay cap (default 30s)
}

func (o Options) withDefaults() Options {
	if o.Spacing <= 0 {
		o.Spacing = 250 * time.Millisecond
	}
	if o.TaskTimeout <= 0 {
		o.TaskTimeout = 15 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 4
	}
	if o.MaxAuthRetries <= 0 {
		o.MaxAuthRetries = 2
	}
	if o.RetryBase <= 0 {
		o.RetryBase = time.Second
	}
	if o.RetryMax <= 0 {
		o.RetryMax = 30 * time.Second
	}
	return o
}

type taskResult struct {
	value any
	err   error
}

type task struct {
	id     string
	ctx    context.Context
	req    Request
	result chan taskResult // buffered so a departed caller never blocks the runner
}

func (t *task) deliver(value any, err error) {
	t.result <- taskResult{value: value, err: err}
}

// Queue is the process-wide request serializer. Safe for concurrent use.
type Queue struct {
	tasks    chan *task
	done     chan struct{}
	stopped  chan struct{}
	pace     *rate.Limiter
	limiters *ratelimit.Registry
	opts     Options
	logger   *slog.Logger
}

// New starts the queue's runner goroutine
func New(limiters *ratelimit.Registry, opts Options, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()
	q := &Queue{
		tasks:    make(chan *task, 256),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		pace:     rate.NewLimiter(rate.Every(opts.Spacing), 1),
		limiters: limiters,
		opts:     opts,
		logger:   logger,
	}
	go q.loop()
	return q
}

// Close stops the runner after the current task. Queued tasks fail
// with ErrClosed.
func (q *Queue) Close() {
	select {
	case <-q.done:
	default:
		close(q.done)
	}
	<-q.stopped
}

// Do enqueues the request and blocks until it completes, the caller's
// context ends, or the queue closes. A task whose context is already
// done when it reaches the front is dropped unrun.
func (q *Queue) Do(ctx context.Context, req Request) (any, error) {
	t := &task{
		id:     uuid.NewString(),
		ctx:    ctx,
		req:    req,
		result: make(chan taskResult, 1),
	}

	select {
	case q.tasks <- t:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.done:
		return nil, ErrClosed
	}

	select {
	case r := <-t.result:
		return r.value, r.err
	case <-ctx.Done():
		// The task may still run to completion; its result is ignored
		return nil, ctx.Err()
	}
}

// Do runs a request through the queue and asserts the result type
func Do[T any](ctx context.Context, q *Queue, req Request) (T, error) {
	var zero T
	v, err := q.Do(ctx, req)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, errors.New("queue: unexpected result type")
	}
	return out, nil
}

func (q *Queue) loop() {
	defer close(q.stopped)
	for {
		select {
		case <-q.done:
			q.drain()
			return
		case t := <-q.tasks:
			// Drop tasks whose owner tore down while queued
			if err := t.ctx.Err(); err != nil {
				t.deliver(nil, err)
				continue
			}
			if err := q.pace.Wait(t.ctx); err != nil {
				t.deliver(nil, err)
				continue
			}
			q.run(t)
		}
	}
}

// drain fails everything still queued at shutdown
func (q *Queue) drain() {
	for {
		select {
		case t := <-q.tasks:
			t.deliver(nil, ErrClosed)
		default:
			return
		}
	}
}

// run executes one task with admission, retry, and backoff
func (q *Queue) run(t *task) {
	limiter := q.limiters.For(t.req.Source)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = q.opts.RetryBase
	bo.RandomizationFactor = 0.1
	bo.Multiplier = 2
	bo.MaxInterval = q.opts.RetryMax
	bo.MaxElapsedTime = 0
	bo.Reset()

	authRetries := 0
	for attempt := 1; ; attempt++ {
		// Window admission; wait out a full window before starting
		for {
			d := limiter.Reserve()
			if d.Allowed {
				break
			}
			q.logger.Debug("task delayed by rate limit",
				"id", t.id, "source", t.req.Source, "kind", t.req.Kind, "wait", d.Wait)
			if !sleepCtx(t.ctx, d.Wait) {
				t.deliver(nil, t.ctx.Err())
				return
			}
		}

		value, err := q.attempt(t)
		if err == nil {
			limiter.ResetAuthFailures()
			t.deliver(value, nil)
			return
		}
		if errors.Is(err, context.Canceled) {
			t.deliver(nil, err)
			return
		}

		isAuth := domain.IsAuthFailure(err)
		if isAuth {
			limiter.NoteAuthFailure()
			authRetries++
			if authRetries > q.opts.MaxAuthRetries {
				q.logger.Warn("task failed, auth retries exhausted",
					"id", t.id, "source", t.req.Source, "kind", t.req.Kind, "error", err)
				t.deliver(nil, err)
				return
			}
		} else {
			if !domain.IsRetriable(err) || attempt >= q.opts.MaxAttempts {
				t.deliver(nil, err)
				return
			}
		}

		delay := bo.NextBackOff()
		if wait := rateLimitWait(err, limiter); wait > delay {
			delay = wait
		}
		delay = limiter.ScaleByAuthFailures(delay)

		q.logger.Debug("task retrying",
			"id", t.id, "source", t.req.Source, "kind", t.req.Kind,
			"attempt", attempt, "delay", delay, "error", err)
		if !sleepCtx(t.ctx, delay) {
			t.deliver(nil, t.ctx.Err())
			return
		}
	}
}

// attempt runs the task function once under the soft timeout
func (q *Queue) attempt(t *task) (any, error) {
	ctx := t.ctx
	if _, has := ctx.Deadline(); !has {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.opts.TaskTimeout)
		defer cancel()
	}
	return t.req.Fn(ctx)
}

// rateLimitWait extracts the wait a quota rejection demands: the
// provider's Retry-After hint or the limiter's own window remainder
func rateLimitWait(err error, limiter *ratelimit.Limiter) time.Duration {
	if !domain.IsRateLimited(err) {
		return 0
	}
	var rl *domain.RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}
	if d := limiter.Check(); !d.Allowed {
		return d.Wait
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
