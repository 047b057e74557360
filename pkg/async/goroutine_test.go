package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func testLog() *logrus.Entry {
	log, _ := test.NewNullLogger()
	return logrus.NewEntry(log)
}

func TestSafeGo_Success(t *testing.T) {
	done := make(chan struct{})

	SafeGo(context.Background(), testLog(), time.Second, "test task", func(ctx context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("SafeGo did not execute function")
	}
}

func TestSafeGo_WithError(t *testing.T) {
	log, hook := test.NewNullLogger()
	done := make(chan struct{})

	SafeGo(context.Background(), logrus.NewEntry(log), time.Second, "test task", func(ctx context.Context) error {
		defer close(done)
		return errors.New("test error")
	})

	<-done
	deadline := time.Now().Add(time.Second)
	for hook.LastEntry() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if entry := hook.LastEntry(); entry == nil || entry.Level != logrus.WarnLevel {
		t.Errorf("Expected a warning to be logged, got %v", entry)
	}
}

func TestSafeGo_Timeout(t *testing.T) {
	completed := atomic.Bool{}
	canceled := make(chan struct{})

	SafeGo(context.Background(), testLog(), 50*time.Millisecond, "test task", func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			completed.Store(true)
			return nil
		case <-ctx.Done():
			close(canceled)
			return ctx.Err()
		}
	})

	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Error("Function should have been canceled by timeout")
	}
	if completed.Load() {
		t.Error("Function should not have completed")
	}
}

func TestSafeGo_PanicRecovery(t *testing.T) {
	log, hook := test.NewNullLogger()
	done := make(chan struct{})

	SafeGo(context.Background(), logrus.NewEntry(log), time.Second, "test task", func(ctx context.Context) error {
		defer close(done)
		panic("test panic")
	})

	<-done
	deadline := time.Now().Add(time.Second)
	for hook.LastEntry() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if entry := hook.LastEntry(); entry == nil || entry.Level != logrus.ErrorLevel {
		t.Errorf("Expected the panic to be logged, got %v", entry)
	}
}

func TestGroup_ResultsInStartOrder(t *testing.T) {
	g := NewGroup(testLog())

	g.Go(context.Background(), "slow", func(ctx context.Context) error {
		time.Sleep(50 * time.Millisecond)
		return nil
	})
	g.Go(context.Background(), "fast", func(ctx context.Context) error {
		return errors.New("fast failed")
	})

	results := g.Wait()
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].Name != "slow" || results[1].Name != "fast" {
		t.Errorf("Unexpected order: %v", results)
	}
	if results[0].Err != nil {
		t.Errorf("Expected slow to succeed, got %v", results[0].Err)
	}
	if results[1].Err == nil || results[1].Err.Error() != "fast failed" {
		t.Errorf("Expected fast to fail, got %v", results[1].Err)
	}
	if results[0].Duration < 50*time.Millisecond {
		t.Errorf("Expected duration >= 50ms, got %v", results[0].Duration)
	}
}

func TestGroup_FailureDoesNotCancelSiblings(t *testing.T) {
	g := NewGroup(testLog())
	ctx := context.Background()

	g.Go(ctx, "failing", func(ctx context.Context) error {
		return errors.New("boom")
	})
	g.Go(ctx, "sibling", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
			return nil
		}
	})

	results := g.Wait()
	if results[1].Err != nil {
		t.Errorf("Sibling should not be canceled, got %v", results[1].Err)
	}
	if results[0].Err == nil {
		t.Error("Expected the failing task to report its error")
	}
}

func TestGroup_PanicBecomesError(t *testing.T) {
	g := NewGroup(testLog())

	g.Go(context.Background(), "panicking", func(ctx context.Context) error {
		panic("kaboom")
	})
	g.Go(context.Background(), "fine", func(ctx context.Context) error {
		return nil
	})

	results := g.Wait()
	if !results[0].Panicked || results[0].Err == nil {
		t.Errorf("Expected panic to be reported, got %+v", results[0])
	}
	if results[1].Panicked || results[1].Err != nil {
		t.Errorf("Expected fine task to succeed, got %+v", results[1])
	}
}

func TestGroup_PanicWithError(t *testing.T) {
	sentinel := errors.New("sentinel")
	g := NewGroup(testLog())

	g.Go(context.Background(), "panicking", func(ctx context.Context) error {
		panic(sentinel)
	})

	results := g.Wait()
	if !errors.Is(results[0].Err, sentinel) {
		t.Errorf("Expected wrapped sentinel, got %v", results[0].Err)
	}
}

func TestGroup_OnDone(t *testing.T) {
	var mu sync.Mutex
	var seen []string

	g := NewGroup(testLog(), OnDone(func(r Result) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, r.Name)
	}))

	for _, name := range []string{"a", "b", "c"} {
		g.Go(context.Background(), name, func(ctx context.Context) error { return nil })
	}
	g.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 {
		t.Errorf("Expected 3 callbacks, got %v", seen)
	}
}

func TestGroup_WaitEmpty(t *testing.T) {
	if results := NewGroup(nil).Wait(); len(results) != 0 {
		t.Errorf("Expected no results, got %v", results)
	}
}
