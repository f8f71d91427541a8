package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoro-md/zoro/internal/domain"
	"github.com/zoro-md/zoro/internal/logging"
	"github.com/zoro-md/zoro/internal/ratelimit"
)

func newTestQueue(t *testing.T, opts Options) (*Queue, *ratelimit.Registry) {
	t.Helper()
	if opts.Spacing == 0 {
		opts.Spacing = time.Millisecond
	}
	if opts.RetryBase == 0 {
		opts.RetryBase = time.Millisecond
	}
	reg := ratelimit.NewRegistry(logging.Null())
	q := New(reg, opts, logging.Null())
	t.Cleanup(q.Close)
	return q, reg
}

func TestSerialFIFOExecution(t *testing.T) {
	t.Parallel()

	q, _ := newTestQueue(t, Options{})

	var mu sync.Mutex
	var order []string
	var active, maxActive int32

	fn := func(label string, d time.Duration) func(context.Context) (any, error) {
		return func(ctx context.Context) (any, error) {
			n := atomic.AddInt32(&active, 1)
			if n > atomic.LoadInt32(&maxActive) {
				atomic.StoreInt32(&maxActive, n)
			}
			time.Sleep(d)
			mu.Lock()
			order = append(order, label)
			mu.Unlock()
			atomic.AddInt32(&active, -1)
			return label, nil
		}
	}

	var wg sync.WaitGroup
	run := func(label string, d time.Duration) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := q.Do(context.Background(), Request{Source: domain.SourceAniList, Kind: "test", Fn: fn(label, d)})
			if err != nil {
				t.Errorf("task %s: %v", label, err)
			}
			if got != label {
				t.Errorf("task %s returned %v", label, got)
			}
		}()
	}

	run("a", 50*time.Millisecond)
	time.Sleep(10 * time.Millisecond) // a is running; b and c enqueue behind it
	run("b", 0)
	time.Sleep(10 * time.Millisecond)
	run("c", 0)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Errorf("execution order = %v, want [a b c]", order)
	}
	if atomic.LoadInt32(&maxActive) != 1 {
		t.Errorf("max concurrent tasks = %d, want 1", maxActive)
	}
}

func TestRetryOnServerError(t *testing.T) {
	t.Parallel()

	q, _ := newTestQueue(t, Options{})

	var calls int32
	got, err := q.Do(context.Background(), Request{
		Source: domain.SourceMAL,
		Kind:   "list",
		Fn: func(ctx context.Context) (any, error) {
			if atomic.AddInt32(&calls, 1) == 1 {
				return nil, &domain.ProviderError{Source: domain.SourceMAL, Status: 502}
			}
			return "recovered", nil
		},
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got != "recovered" {
		t.Errorf("result = %v, want recovered", got)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	t.Parallel()

	q, _ := newTestQueue(t, Options{})

	var calls int32
	_, err := q.Do(context.Background(), Request{
		Source: domain.SourceAniList,
		Kind:   "update",
		Fn: func(ctx context.Context) (any, error) {
			atomic.AddInt32(&calls, 1)
			return nil, &domain.ProviderError{Source: domain.SourceAniList, Status: 400, Body: "bad variables"}
		},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (4xx must not retry)", calls)
	}
}

func TestAuthRetriesBounded(t *testing.T) {
	t.Parallel()

	q, reg := newTestQueue(t, Options{MaxAuthRetries: 2})

	var calls int32
	_, err := q.Do(context.Background(), Request{
		Source: domain.SourceMAL,
		Kind:   "list",
		Fn: func(ctx context.Context) (any, error) {
			atomic.AddInt32(&calls, 1)
			return nil, &domain.ProviderError{Source: domain.SourceMAL, Status: 401}
		},
	})
	if err == nil {
		t.Fatal("expected auth error to surface")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (initial + 2 auth retries)", calls)
	}
	if got := reg.For(domain.SourceMAL).AuthFailures(); got != 3 {
		t.Errorf("recorded auth failures = %d, want 3", got)
	}
}

func TestQueuedTaskDroppedOnCancel(t *testing.T) {
	t.Parallel()

	q, _ := newTestQueue(t, Options{})

	release := make(chan struct{})
	go q.Do(context.Background(), Request{
		Source: domain.SourceAniList,
		Kind:   "slow",
		Fn: func(ctx context.Context) (any, error) {
			<-release
			return nil, nil
		},
	})
	time.Sleep(10 * time.Millisecond) // the slow task is now running

	ctx, cancel := context.WithCancel(context.Background())
	var ran int32
	done := make(chan error, 1)
	go func() {
		_, err := q.Do(ctx, Request{
			Source: domain.SourceAniList,
			Kind:   "doomed",
			Fn: func(ctx context.Context) (any, error) {
				atomic.AddInt32(&ran, 1)
				return nil, nil
			},
		})
		done <- err
	}()
	time.Sleep(10 * time.Millisecond) // doomed is queued behind slow
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Do = %v, want context.Canceled", err)
	}
	close(release)
	time.Sleep(20 * time.Millisecond)
	if atomic.LoadInt32(&ran) != 0 {
		t.Error("cancelled queued task still ran")
	}
}

func TestInterTaskSpacing(t *testing.T) {
	t.Parallel()

	q, _ := newTestQueue(t, Options{Spacing: 40 * time.Millisecond})

	var starts []time.Time
	var mu sync.Mutex
	fn := func(ctx context.Context) (any, error) {
		mu.Lock()
		starts = append(starts, time.Now())
		mu.Unlock()
		return nil, nil
	}

	// First admission is immediate (burst 1); the second must wait
	for i := 0; i < 2; i++ {
		if _, err := q.Do(context.Background(), Request{Source: domain.SourceJikan, Kind: "trending", Fn: fn}); err != nil {
			t.Fatalf("Do: %v", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(starts) != 2 {
		t.Fatalf("got %d starts, want 2", len(starts))
	}
	if gap := starts[1].Sub(starts[0]); gap < 30*time.Millisecond {
		t.Errorf("inter-task gap = %v, want >= ~40ms", gap)
	}
}

func TestRateLimitDelaysAdmission(t *testing.T) {
	t.Parallel()

	q, reg := newTestQueue(t, Options{})
	reg.Configure(domain.SourceTMDB, ratelimit.Profile{
		Window:       60 * time.Millisecond,
		MaxRequests:  1,
		BufferFactor: 1.0,
		MinWait:      time.Millisecond,
	})

	var starts []time.Time
	var mu sync.Mutex
	fn := func(ctx context.Context) (any, error) {
		mu.Lock()
		starts = append(starts, time.Now())
		mu.Unlock()
		return nil, nil
	}

	for i := 0; i < 2; i++ {
		if _, err := q.Do(context.Background(), Request{Source: domain.SourceTMDB, Kind: "trending", Fn: fn}); err != nil {
			t.Fatalf("Do: %v", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if gap := starts[1].Sub(starts[0]); gap < 40*time.Millisecond {
		t.Errorf("admission gap = %v, want >= ~60ms window", gap)
	}
}

func TestTypedDo(t *testing.T) {
	t.Parallel()

	q, _ := newTestQueue(t, Options{})

	entries, err := Do[[]domain.Entry](context.Background(), q, Request{
		Source: domain.SourceAniList,
		Kind:   "list",
		Fn: func(ctx context.Context) (any, error) {
			return []domain.Entry{{ID: 7}}, nil
		},
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != 7 {
		t.Errorf("entries = %+v", entries)
	}
}

func TestCloseFailsQueuedTasks(t *testing.T) {
	t.Parallel()

	reg := ratelimit.NewRegistry(logging.Null())
	q := New(reg, Options{Spacing: time.Millisecond}, logging.Null())
	q.Close()

	_, err := q.Do(context.Background(), Request{
		Source: domain.SourceAniList,
		Kind:   "late",
		Fn:     func(ctx context.Context) (any, error) { return nil, nil },
	})
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Do after close = %v, want ErrClosed", err)
	}
}
