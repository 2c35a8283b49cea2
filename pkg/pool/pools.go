package pool

import (
	"context"
	"runtime"
	"sync"
)

// BufferPool recycles datagram receive buffers across handler tasks.
type BufferPool struct {
	bufferPool sync.Pool
}

func NewBufferPool(bufferSize int) *BufferPool {
	return &BufferPool{
		bufferPool: sync.Pool{
			New: func() any {
				return make([]byte, bufferSize)
			},
		},
	}
}

func (bp *BufferPool) GetBuffer() []byte {
	return bp.bufferPool.Get().([]byte)
}

func (bp *BufferPool) PutBuffer(buffer []byte) {
	bp.bufferPool.Put(buffer)
}

// WorkerPool runs independent request-handler tasks with bounded
// concurrency. Submitting beyond the queue capacity blocks the producer,
// which is the backpressure the dispatcher wants.
type WorkerPool[T any] struct {
	ingressChan chan T
	errorChan   chan error

	wg      sync.WaitGroup
	workers int
}

func NewWorkerPool[T any](workers int) *WorkerPool[T] {
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}
	return &WorkerPool[T]{
		ingressChan: make(chan T, workers),
		errorChan:   make(chan error, workers),
		workers:     workers,
	}
}

// Run blocks until the ingress channel is closed and drained, or ctx is
// cancelled. Each worker owns the tasks it dequeues; nothing is shared.
func (wp *WorkerPool[T]) Run(ctx context.Context, handler func(context.Context, T)) {
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go func() {
			defer wp.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case task, ok := <-wp.ingressChan:
					if !ok {
						return
					}
					handler(ctx, task)
				}
			}
		}()
	}
	wp.wg.Wait()
}

func (wp *WorkerPool[T]) Ingress() chan<- T {
	return wp.ingressChan
}

func (wp *WorkerPool[T]) CloseIngress() {
	close(wp.ingressChan)
}

func (wp *WorkerPool[T]) Errors() <-chan error {
	return wp.errorChan
}

// PublishError never blocks; when the error channel is full the error is
// dropped, handler failures are already logged at source.
func (wp *WorkerPool[T]) PublishError(err error) {
	select {
	case wp.errorChan <- err:
	default:
	}
}
