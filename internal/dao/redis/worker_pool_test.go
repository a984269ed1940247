package redis

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPoolExecutesTasks(t *testing.T) {
	p := newWorkerPool(4, 64)

	var counter int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		p.submit(func() {
			atomic.AddInt64(&counter, 1)
			wg.Done()
		})
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("tasks did not finish in time")
	}

	if got := atomic.LoadInt64(&counter); got != 200 {
		t.Fatalf("expected 200 executions, got %d", got)
	}
}

func TestWorkerPoolFullChannelFallsBackToSync(t *testing.T) {
	// 不启动 worker，缓冲区填满后 submit 应同步执行
	p := &workerPool{tasks: make(chan *cacheTask, 1)}
	p.tasks <- &cacheTask{}

	executed := false
	p.submit(func() { executed = true })
	if !executed {
		t.Fatal("expected synchronous fallback when channel is full")
	}
}

func TestWorkerPoolSurvivesPanic(t *testing.T) {
	p := newWorkerPool(1, 8)

	p.submit(func() { panic("boom") })

	done := make(chan struct{})
	p.submit(func() { close(done) })

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not recover after panic")
	}
}
