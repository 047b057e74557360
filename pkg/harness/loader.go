package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/harness/pkg/async"
	"github.com/platinummonkey/harness/pkg/config"
	"github.com/platinummonkey/harness/pkg/dependencies"
	"github.com/platinummonkey/harness/pkg/observability"
	"github.com/platinummonkey/harness/pkg/plugins"
)

// ErrStarted is returned by Load and StartAll once the start phase began
var ErrStarted = errors.New("harness: start phase already began")

// Option configures a Loader
type Option func(*Loader)

// WithStore uses an existing configuration store
func WithStore(store *config.Store) Option {
	return func(l *Loader) {
		l.store = store
	}
}

// WithSink uses an existing log sink
func WithSink(sink *observability.Sink) Option {
	return func(l *Loader) {
		l.sink = sink
	}
}

// WithMetrics records lifecycle metrics in Prometheus
func WithMetrics(m *observability.Metrics) Option {
	return func(l *Loader) {
		l.metrics = m
	}
}

// WithOTelMetrics records lifecycle metrics through OpenTelemetry
func WithOTelMetrics(m *observability.OTelMetrics) Option {
	return func(l *Loader) {
		l.otel = m
	}
}

// WithTracer traces loads and lifecycle hooks
func WithTracer(tracer trace.Tracer) Option {
	return func(l *Loader) {
		l.tracer = tracer
	}
}

// Loader reads plugin configuration, loads plugin modules in dependency
// order, and drives every instance through init, start and deinit.
//
// Read, Load and LoadAll run on the calling goroutine and must not be called
// concurrently. Start hooks run concurrently, one goroutine per instance.
type Loader struct {
	program  string
	runID    string
	store    *config.Store
	registry *plugins.Registry
	resolver *dependencies.Resolver
	sink     *observability.Sink
	metrics  *observability.Metrics
	otel     *observability.OTelMetrics
	tracer   trace.Tracer
	log      *logrus.Entry

	mu        sync.Mutex
	instances map[config.SectionKey]*Instance
	order     []*Instance
	started   bool
	group     *async.Group

	joinOnce sync.Once
	report   *Report
}

// New creates a loader for program, loading modules from registry
func New(program string, registry *plugins.Registry, opts ...Option) *Loader {
	l := &Loader{
		program:   program,
		runID:     uuid.NewString(),
		registry:  registry,
		instances: make(map[config.SectionKey]*Instance),
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.store == nil {
		l.store = config.NewStore()
	}
	if l.sink == nil {
		l.sink = observability.NewSink(nil, logrus.InfoLevel, l.runID)
	} else {
		l.runID = l.sink.RunID()
	}
	if l.tracer == nil {
		l.tracer = observability.Tracer()
	}
	l.log = l.sink.Base()

	l.resolver = dependencies.NewResolver(dependencies.ModulesFunc(l.openModule), l.store)
	return l
}

// RunID identifies this harness run in logs and the report
func (l *Loader) RunID() string {
	return l.runID
}

// Store returns the configuration store
func (l *Loader) Store() *config.Store {
	return l.store
}

// Registry returns the module registry
func (l *Loader) Registry() *plugins.Registry {
	return l.registry
}

// Graph returns the dependency graph of every resolved module
func (l *Loader) Graph() *dependencies.DependencyGraph {
	return l.resolver.Graph()
}

// Sink returns the harness log sink
func (l *Loader) Sink() *observability.Sink {
	return l.sink
}

// Read replaces the configuration with the file or directory at path
func (l *Loader) Read(path string) error {
	if err := l.store.Read(path); err != nil {
		return err
	}
	l.log.WithField("path", path).Debugf("Read %d configuration section(s)", len(l.store.Available()))
	return nil
}

// Available returns the declared sections, excluding DEFAULT
func (l *Loader) Available() []config.SectionKey {
	return l.store.Available()
}

// Instances returns the loaded instances in load order
func (l *Loader) Instances() []*Instance {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Instance(nil), l.order...)
}

// Program returns the program identity, preferring the DEFAULT section
func (l *Loader) Program() string {
	return l.store.Defaults().GetDefault("program", l.program)
}

func (l *Loader) openModule(name string) (*plugins.Module, error) {
	library, err := l.store.Library(name)
	if err != nil {
		return nil, err
	}
	return l.registry.Load(name, library)
}

// section picks the section for Load. Without a key the unkeyed section is
// used, or the only keyed one.
func (l *Loader) section(name string, key []string) (*config.Section, error) {
	switch len(key) {
	case 0:
	case 1:
		return l.store.Get(name, key[0])
	default:
		return nil, fmt.Errorf("harness: at most one key, got %d", len(key))
	}

	if section, err := l.store.Get(name, ""); err == nil {
		return section, nil
	}
	sections := l.store.Sections(name)
	switch len(sections) {
	case 0:
		return nil, &config.Error{Kind: config.KindNotFound, Section: name, Msg: "section does not exist"}
	case 1:
		return sections[0], nil
	}
	keys := make([]string, 0, len(sections))
	for _, s := range sections {
		keys = append(keys, s.Key)
	}
	return nil, &config.Error{
		Kind:    config.KindAmbiguous,
		Section: name,
		Msg:     fmt.Sprintf("several keyed sections (%s), a key is required", strings.Join(keys, ", ")),
	}
}

// Load loads and initializes the plugin for section name (and key, if
// given) together with everything it requires. Modules not yet initialized
// run init in dependency order. If an init fails, every module this call
// initialized is deinitialized in reverse order and the error is returned.
// A failed Load leaves the instance set unchanged.
func (l *Loader) Load(name string, key ...string) (*Instance, error) {
	l.mu.Lock()
	started := l.started
	l.mu.Unlock()
	if started {
		return nil, ErrStarted
	}

	section, err := l.section(strings.ToLower(name), key)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	inst, ok := l.instances[section.SectionKey()]
	l.mu.Unlock()
	if ok {
		return inst, nil
	}

	ctx, span := l.tracer.Start(context.Background(), "harness.load",
		trace.WithAttributes(attribute.String("plugin.section", section.String())))
	defer span.End()

	inst, err = l.load(ctx, section)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.metrics.LoadFailed(errorKind(err))
		l.log.WithField("section", section.String()).WithError(err).Error("Failed to load plugin")
		return nil, err
	}
	return inst, nil
}

func (l *Loader) load(ctx context.Context, section *config.Section) (*Instance, error) {
	before := l.loadedModules()

	modules, err := l.resolver.Resolve(section.Name)
	if err != nil {
		l.release(before)
		return nil, err
	}

	var initialized []*plugins.Module
	for _, module := range modules {
		if l.resolver.IsInitialized(module.Name) {
			continue
		}

		err := l.resolver.CheckConflicts(module)
		if err == nil {
			err = l.initModule(ctx, module)
		}
		if err != nil {
			l.rollback(ctx, initialized)
			l.release(before)
			return nil, err
		}

		l.resolver.MarkInitialized(module)
		initialized = append(initialized, module)
	}
	l.resolver.Commit(modules)

	root := modules[len(modules)-1]
	inst := newInstance(section, root, l.observe)
	l.metrics.Transition(inst.Name, "", Declared.String())
	for _, next := range []State{Loaded, Initialized} {
		if err := inst.transition(next, nil); err != nil {
			return nil, err
		}
	}

	l.mu.Lock()
	l.instances[section.SectionKey()] = inst
	l.order = append(l.order, inst)
	l.mu.Unlock()

	l.log.WithField("section", inst.String()).Infof("Loaded plugin %s v%s", root.Library, root.Manifest.Version)
	return inst, nil
}

// LoadAll loads every available section in declaration order and stops at
// the first failure
func (l *Loader) LoadAll() ([]*Instance, error) {
	var loaded []*Instance
	for _, k := range l.store.Available() {
		inst, err := l.Load(k.Name, k.Key)
		if err != nil {
			return loaded, err
		}
		loaded = append(loaded, inst)
	}
	return loaded, nil
}

func (l *Loader) env(module *plugins.Module) *plugins.Env {
	return &plugins.Env{
		Name:    module.Name,
		Program: l.Program(),
		Config:  l.store,
		Sink:    l.sink,
		Log:     l.sink.Entry(module.Name, ""),
	}
}

func (l *Loader) initModule(ctx context.Context, module *plugins.Module) (err error) {
	initializer, ok := module.Plugin.(plugins.Initializer)
	if !ok {
		return nil
	}

	ctx, span := l.tracer.Start(ctx, "plugin.init", trace.WithAttributes(attribute.String("plugin.name", module.Name)))
	defer span.End()

	env := l.env(module)
	begin := time.Now()
	defer func() {
		l.metrics.ObserveInit(module.Name, time.Since(begin), err)
		l.otel.RecordInit(ctx, module.Name, time.Since(begin), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	err = observability.Guard(env.Log, "init", func() error {
		return initializer.Init(env)
	})
	if err != nil {
		return plugins.Wrap(plugins.KindInitFailed, module.Name, err)
	}

	env.Log.Debug("Initialized plugin module")
	return nil
}

func (l *Loader) deinitModule(ctx context.Context, module *plugins.Module) (err error) {
	deinitializer, ok := module.Plugin.(plugins.Deinitializer)
	if !ok {
		return nil
	}

	_, span := l.tracer.Start(ctx, "plugin.deinit", trace.WithAttributes(attribute.String("plugin.name", module.Name)))
	defer span.End()

	env := l.env(module)
	begin := time.Now()
	err = observability.Guard(env.Log, "deinit", func() error {
		return deinitializer.Deinit(env)
	})
	l.metrics.ObserveDeinit(module.Name, time.Since(begin), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return plugins.Wrap(plugins.KindDeinitFailed, module.Name, err)
	}
	return nil
}

// rollback deinitializes modules in reverse order of initialization
func (l *Loader) rollback(ctx context.Context, initialized []*plugins.Module) {
	for i := len(initialized) - 1; i >= 0; i-- {
		module := initialized[i]
		if err := l.deinitModule(ctx, module); err != nil {
			l.log.WithError(err).Warn("Deinit failed during rollback")
		}
		l.resolver.Unmark(module.Name)
	}
}

func (l *Loader) loadedModules() map[string]bool {
	names := make(map[string]bool)
	for _, module := range l.registry.Modules() {
		names[module.Name] = true
	}
	return names
}

// release drops modules opened since before from the registry cache
func (l *Loader) release(before map[string]bool) {
	for _, module := range l.registry.Modules() {
		if before[module.Name] {
			continue
		}
		if l.registry.Release(module.Name) {
			l.log.WithField("plugin", module.Name).Debug("Released plugin module")
		}
	}
}

// StartAll starts every initialized instance with a start hook, one
// goroutine each. Hooks receive ctx unchanged and are never cancelled by
// the harness. After StartAll no more plugins can be loaded.
func (l *Loader) StartAll(ctx context.Context) error {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return ErrStarted
	}
	l.started = true
	instances := append([]*Instance(nil), l.order...)

	byName := make(map[string]*Instance, len(instances))
	for _, inst := range instances {
		byName[inst.String()] = inst
	}
	l.group = async.NewGroup(l.log, async.OnDone(func(r async.Result) {
		l.finish(byName[r.Name], r)
	}))
	group := l.group
	l.mu.Unlock()

	ctx = observability.WithRunID(ctx, l.runID)

	count := 0
	for _, inst := range instances {
		if inst.State() != Initialized || !inst.Startable() {
			continue
		}
		if err := inst.transition(Started, nil); err != nil {
			return err
		}
		l.otel.RecordStarted(ctx, inst.Name)

		inst := inst
		group.Go(ctx, inst.String(), func(ctx context.Context) error {
			return l.runInstance(ctx, inst)
		})
		count++
	}

	l.log.Infof("Started %d plugin instance(s)", count)
	return nil
}

func (l *Loader) runInstance(ctx context.Context, inst *Instance) error {
	ctx, span := l.tracer.Start(ctx, "plugin.start", trace.WithAttributes(
		attribute.String("plugin.name", inst.Name),
		attribute.String("plugin.key", inst.Key),
	))
	defer span.End()

	rt := &plugins.Runtime{
		Name:    inst.Name,
		Key:     inst.Key,
		Section: inst.Section,
		Log:     observability.UpdateLoggerWithTraceContext(ctx, l.sink.Entry(inst.Name, inst.Key)),
	}
	ctx = observability.WithLogger(ctx, rt.Log)

	err := inst.Module.Plugin.(plugins.Starter).Start(ctx, rt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// finish records the outcome of a start hook
func (l *Loader) finish(inst *Instance, r async.Result) {
	if inst == nil {
		return
	}

	l.metrics.ObserveStart(inst.Name, r.Duration, r.Err)
	l.otel.RecordRuntime(context.Background(), inst.Name, inst.Key, r.Duration, r.Err)

	log := l.sink.Entry(inst.Name, inst.Key)
	if r.Err != nil {
		err := plugins.Wrap(plugins.KindStartFailed, inst.Name, r.Err)
		if r.Panicked {
			err.Msg = "start hook panicked"
		}
		_ = inst.transition(Failed, err)
		log.WithError(r.Err).Error("Plugin instance failed")
		return
	}
	// the instance stays Started until Join has deinitialized its module
	log.Debug("Plugin start hook returned")
}

// Join waits for every start hook to return, then deinitializes every
// initialized module in reverse initialization order and reports the
// outcome of each instance. Later calls return the same report.
func (l *Loader) Join() *Report {
	l.joinOnce.Do(func() {
		l.mu.Lock()
		l.started = true
		group := l.group
		l.mu.Unlock()

		if group != nil {
			group.Wait()
		}

		var failures []ModuleReport
		modules := l.resolver.Initialized()
		for i := len(modules) - 1; i >= 0; i-- {
			module := modules[i]
			if err := l.deinitModule(context.Background(), module); err != nil {
				l.log.WithError(err).Error("Failed to deinitialize plugin module")
				failures = append(failures, ModuleReport{Plugin: module.Name, Error: err.Error(), err: err})
			}
			l.resolver.Unmark(module.Name)
		}

		for _, inst := range l.Instances() {
			if state := inst.State(); state == Initialized || state == Started {
				_ = inst.transition(Stopped, nil)
			}
		}

		report := newReport(l.runID, l.Instances(), failures, true)
		l.mu.Lock()
		l.report = report
		l.mu.Unlock()

		l.log.WithField("outcome", report.Outcome).Infof("Harness run finished with %d failed instance(s)", len(report.Failed()))
	})

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.report
}

// Run starts every instance and waits for all of them
func (l *Loader) Run(ctx context.Context) (*Report, error) {
	if err := l.StartAll(ctx); err != nil {
		return nil, err
	}
	report := l.Join()
	return report, report.Err()
}

// Snapshot reports the current state of every instance. After Join it
// returns the final report.
func (l *Loader) Snapshot() *Report {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.report != nil {
		return l.report
	}
	return newReport(l.runID, append([]*Instance(nil), l.order...), nil, false)
}

func (l *Loader) observe(inst *Instance, from, to State) {
	l.metrics.Transition(inst.Name, from.String(), to.String())
	l.otel.RecordTransition(context.Background(), inst.Name, to.String())
	l.sink.Entry(inst.Name, inst.Key).Debugf("%s -> %s", from, to)
}

func errorKind(err error) string {
	var perr *plugins.Error
	if errors.As(err, &perr) {
		return string(perr.Kind)
	}
	var cerr *config.Error
	if errors.As(err, &cerr) {
		return "config " + string(cerr.Kind)
	}
	return "other"
}
