package async

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/harness/pkg/observability"
)

// SafeGo executes a function in a goroutine with:
// - Context cancellation support
// - Panic recovery
// - Timeout enforcement
// - Error logging
//
// Use this instead of bare `go func()` for fire-and-forget background work.
// The config watcher delivers change notices through it.
func SafeGo(parentCtx context.Context, log *logrus.Entry, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer observability.RecoverPanic(log, taskName)

		if err := fn(ctx); err != nil {
			// Logged only, the caller decides if this is critical
			log.WithField("task", taskName).WithError(err).Warn("Background task failed")
		}
	}()
}

// Result is the outcome of one task run by a Group
type Result struct {
	Name     string
	Err      error
	Panicked bool
	Duration time.Duration
}

// Group runs named tasks, one goroutine per task, and collects their
// results. A failing or panicking task never cancels the other tasks.
//
// Example:
//
//	g := NewGroup(log)
//	for _, inst := range instances {
//	    g.Go(ctx, inst.Name, inst.Start)
//	}
//	results := g.Wait()
type Group struct {
	log *logrus.Entry
	eg  errgroup.Group

	mu      sync.Mutex
	results []*Result
	onDone  func(Result)
}

// GroupOption configures a Group
type GroupOption func(*Group)

// OnDone registers a callback invoked from the task goroutine as each task
// finishes
func OnDone(fn func(Result)) GroupOption {
	return func(g *Group) {
		g.onDone = fn
	}
}

// NewGroup creates an empty task group
func NewGroup(log *logrus.Entry, opts ...GroupOption) *Group {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	g := &Group{log: log}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Go starts fn in a new goroutine. A panic in fn is recovered, logged and
// reported as the task's error.
func (g *Group) Go(ctx context.Context, name string, fn func(context.Context) error) {
	result := &Result{Name: name}

	g.mu.Lock()
	g.results = append(g.results, result)
	g.mu.Unlock()

	g.eg.Go(func() error {
		started := time.Now()
		err := g.run(ctx, name, fn, result)

		g.mu.Lock()
		result.Err = err
		result.Duration = time.Since(started)
		done := *result
		g.mu.Unlock()

		if g.onDone != nil {
			g.onDone(done)
		}
		// Errors are kept per task, never propagated to the errgroup
		return nil
	})
}

func (g *Group) run(ctx context.Context, name string, fn func(context.Context) error, result *Result) error {
	err := observability.Guard(g.log.WithField("task", name), name, func() error {
		return fn(ctx)
	})
	var perr *observability.PanicError
	if errors.As(err, &perr) {
		g.mu.Lock()
		result.Panicked = true
		g.mu.Unlock()
	}
	return err
}

// Wait blocks until every started task has returned and reports their
// results in the order the tasks were started
func (g *Group) Wait() []Result {
	_ = g.eg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()

	results := make([]Result, len(g.results))
	for i, r := range g.results {
		results[i] = *r
	}
	return results
}
