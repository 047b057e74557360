// Package fixtures provides plugin modules for tests: the example, magic,
// bad_one and bad_two modules, and programmable recorders that record the
// lifecycle calls they receive.
package fixtures

import (
	"context"
	"fmt"
	"sync"

	"github.com/platinummonkey/harness/pkg/plugins"
	"github.com/platinummonkey/harness/pkg/version"
)

// Config declares sections for the fixture modules
const Config = `[DEFAULT]
logging_folder =

[example:one]
[example:two]

[magic]
message = Some kind of
`

// Register adds the fixture modules to a catalog
func Register(c *plugins.Catalog) error {
	factories := map[string]plugins.Factory{
		"example": func() plugins.Plugin { return &Example{} },
		"magic":   func() plugins.Plugin { return &Magic{} },
		"bad_one": func() plugins.Plugin {
			return &Passive{Meta: Manifest("1.0.0", []string{"foobar"})}
		},
		"bad_two": func() plugins.Plugin {
			return &Passive{Meta: Manifest("1.0.0", []string{"magic (>>1.2.3)"})}
		},
	}
	for library, factory := range factories {
		if err := c.Register(library, factory); err != nil {
			return err
		}
	}
	return nil
}

// Manifest builds a manifest for the harness's ABI
func Manifest(v string, requires []string, conflicts ...string) plugins.Manifest {
	return plugins.Manifest{
		ABIVersion: plugins.ABIVersion,
		Brief:      "test fixture",
		Version:    version.MustParse(v),
		Requires:   requires,
		Conflicts:  conflicts,
	}
}

// Example starts, logs its key and returns
type Example struct{}

func (p *Example) Manifest() *plugins.Manifest {
	m := Manifest("1.0.0", nil)
	m.Brief = "An example plugin"
	return &m
}

func (p *Example) Init(env *plugins.Env) error {
	env.Log.Infof("initializing %d example section(s)", len(env.Sections()))
	return nil
}

func (p *Example) Deinit(env *plugins.Env) error {
	env.Log.Info("deinitializing example")
	return nil
}

func (p *Example) Start(ctx context.Context, rt *plugins.Runtime) error {
	rt.Log.Infof("example %s started", rt.Key)
	return nil
}

// Magic fails to start when its suki option is "bad"
type Magic struct{}

func (p *Magic) Manifest() *plugins.Manifest {
	m := Manifest("1.2.3", nil)
	m.Brief = "A magic plugin"
	return &m
}

func (p *Magic) Init(env *plugins.Env) error {
	env.Log.Info("initializing magic")
	return nil
}

func (p *Magic) Start(ctx context.Context, rt *plugins.Runtime) error {
	if rt.Section.GetDefault("suki", "") == "bad" {
		return fmt.Errorf("you said a bad suki")
	}
	rt.Log.Infof("magic message: %s", rt.Section.GetDefault("message", ""))
	return nil
}

// Passive has a manifest and no lifecycle hooks
type Passive struct {
	Meta plugins.Manifest
}

func (p *Passive) Manifest() *plugins.Manifest {
	return &p.Meta
}

// Trace records lifecycle calls in order
type Trace struct {
	mu     sync.Mutex
	events []string
}

// Add records an event
func (t *Trace) Add(event string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

// Events returns the recorded events
func (t *Trace) Events() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.events...)
}

// Index returns the position of event, or -1
func (t *Trace) Index(event string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, e := range t.events {
		if e == event {
			return i
		}
	}
	return -1
}

// Count returns how many times event was recorded
func (t *Trace) Count(event string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, e := range t.events {
		if e == event {
			n++
		}
	}
	return n
}

// Recorder records "init:<name>" and "deinit:<name>" and fails with the
// configured errors
type Recorder struct {
	Meta      plugins.Manifest
	Trace     *Trace
	InitErr   error
	DeinitErr error
}

func (p *Recorder) Manifest() *plugins.Manifest {
	return &p.Meta
}

func (p *Recorder) Init(env *plugins.Env) error {
	p.Trace.Add("init:" + env.Name)
	return p.InitErr
}

func (p *Recorder) Deinit(env *plugins.Env) error {
	p.Trace.Add("deinit:" + env.Name)
	return p.DeinitErr
}

// StartRecorder is a Recorder with a start hook recording "start:<name>:<key>".
// Run, when set, is the body of the hook.
type StartRecorder struct {
	*Recorder
	Run func(ctx context.Context, rt *plugins.Runtime) error
}

func (p *StartRecorder) Start(ctx context.Context, rt *plugins.Runtime) error {
	p.Trace.Add("start:" + rt.Name + ":" + rt.Key)
	if p.Run != nil {
		return p.Run(ctx, rt)
	}
	return nil
}
