package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunPurgeNowSerializesRuns(t *testing.T) {
	svc := New(0)

	var inFlight atomic.Int32
	var maxInFlight atomic.Int32
	release := make(chan struct{})
	purge := func(context.Context) (any, error) {
		current := inFlight.Add(1)
		if current > maxInFlight.Load() {
			maxInFlight.Store(current)
		}
		<-release
		inFlight.Add(-1)
		return nil, nil
	}

	var wg sync.WaitGroup
	var rejected atomic.Int32
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.RunPurgeNow(context.Background(), purge); errors.Is(err, ErrAlreadyRunning) {
				rejected.Add(1)
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if maxInFlight.Load() != 1 {
		t.Fatalf("purge overlapped: max in flight %d", maxInFlight.Load())
	}
	if rejected.Load() != 4 {
		t.Fatalf("expected 4 rejected overlapping runs, got %d", rejected.Load())
	}

	// A later run is accepted again once the previous completed.
	if _, err := svc.RunPurgeNow(context.Background(), func(context.Context) (any, error) { return "ok", nil }); err != nil {
		t.Fatalf("sequential run rejected: %v", err)
	}
}

func TestEnqueueRunsJob(t *testing.T) {
	svc := New(0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx, nil)

	done := make(chan struct{})
	svc.Enqueue("test_job", func(context.Context) (any, error) {
		close(done)
		return nil, nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueued job never ran")
	}
}
