// Package harness loads plugins from configuration and drives their
// lifecycle.
//
// A Loader reads configuration sections, resolves each requested plugin's
// requires and conflicts constraints, runs init hooks sequentially in
// dependency order, runs every start hook in its own goroutine, and collects
// the outcomes into a Report once all of them returned:
//
//	loader := harness.New("router", registry, harness.WithSink(sink))
//	if err := loader.Read("router.cfg"); err != nil {
//		return err
//	}
//	if _, err := loader.LoadAll(); err != nil {
//		return err
//	}
//	report, err := loader.Run(ctx)
//
// Instances move through Declared, Loaded, Initialized, Started and Stopped.
// Failed is reachable from every non-terminal state. Init and deinit run
// once per module; start runs once per instance, so [example:one] and
// [example:two] share one init but get two start goroutines.
//
// A failing start hook is recorded in the report and never cancels the
// others. Init failures abort Load after deinitializing, in reverse order,
// the modules that call had initialized.
package harness
