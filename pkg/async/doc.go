// Package async provides safe concurrent execution primitives.
//
// # Overview
//
// SafeGo runs fire-and-forget background work with panic recovery, a
// timeout and error logging. The config watcher uses it for change notices.
//
// Group runs one goroutine per named task and collects every task's result.
// It is how the harness runs plugin start hooks: tasks are independent, a
// failing task does not cancel its siblings, and a panic becomes the task's
// error instead of crashing the process.
//
//	g := async.NewGroup(log, async.OnDone(func(r async.Result) {
//		log.Infof("%s finished: %v", r.Name, r.Err)
//	}))
//	g.Go(ctx, "magic", start)
//	results := g.Wait()
//
// # Related Packages
//
//   - pkg/harness: starts plugin instances through a Group
//   - pkg/config: delivers config change notices through SafeGo
//   - pkg/observability: panic recovery and logging
package async
