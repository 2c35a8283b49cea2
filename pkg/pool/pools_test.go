package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPoolRunsAllTasks(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	wp := NewWorkerPool[int](4)

	var count atomic.Int32
	done := make(chan struct{})
	go func() {
		wp.Run(ctx, func(_ context.Context, _ int) {
			count.Add(1)
		})
		close(done)
	}()

	for i := 0; i < 100; i++ {
		wp.Ingress() <- i
	}
	wp.CloseIngress()

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatalf("pool did not drain: %v", ctx.Err())
	}
	if got := count.Load(); got != 100 {
		t.Fatalf("handled %d tasks, want 100", got)
	}
}

func TestWorkerPoolBoundsConcurrency(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	const workers = 3
	wp := NewWorkerPool[int](workers)

	var active, peak int32
	var mu sync.Mutex
	done := make(chan struct{})
	go func() {
		wp.Run(ctx, func(_ context.Context, _ int) {
			n := atomic.AddInt32(&active, 1)
			mu.Lock()
			if n > peak {
				peak = n
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&active, -1)
		})
		close(done)
	}()

	for i := 0; i < 30; i++ {
		wp.Ingress() <- i
	}
	wp.CloseIngress()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if peak > workers {
		t.Fatalf("observed %d concurrent handlers, bound is %d", peak, workers)
	}
}

func TestPublishErrorNeverBlocks(t *testing.T) {
	wp := NewWorkerPool[int](1)
	for i := 0; i < 10; i++ {
		wp.PublishError(context.DeadlineExceeded)
	}
	select {
	case err := <-wp.Errors():
		if err == nil {
			t.Fatal("expected an error")
		}
	default:
		t.Fatal("expected at least one buffered error")
	}
}

func TestBufferPoolReturnsSizedBuffers(t *testing.T) {
	bp := NewBufferPool(2048)
	buf := bp.GetBuffer()
	if len(buf) != 2048 {
		t.Fatalf("buffer length %d, want 2048", len(buf))
	}
	bp.PutBuffer(buf)
}
