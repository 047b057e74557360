package harness

import (
	"fmt"
	"sync"
	"time"

	"github.com/platinummonkey/harness/pkg/config"
	"github.com/platinummonkey/harness/pkg/plugins"
)

// Instance is one plugin instance, bound to one configuration section.
// Instances of the same plugin name share one module.
type Instance struct {
	Name    string
	Key     string
	Module  *plugins.Module
	Section *config.Section

	mu        sync.Mutex
	state     State
	err       error
	startedAt time.Time
	stoppedAt time.Time

	observe func(inst *Instance, from, to State)
}

func newInstance(section *config.Section, module *plugins.Module, observe func(*Instance, State, State)) *Instance {
	return &Instance{
		Name:    section.Name,
		Key:     section.Key,
		Module:  module,
		Section: section,
		state:   Declared,
		observe: observe,
	}
}

// SectionKey identifies the instance's section
func (i *Instance) SectionKey() config.SectionKey {
	return config.SectionKey{Name: i.Name, Key: i.Key}
}

func (i *Instance) String() string {
	return i.SectionKey().String()
}

// State returns the current lifecycle state
func (i *Instance) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Err returns the error recorded when the instance failed
func (i *Instance) Err() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.err
}

// Runtime returns how long the start hook ran, or has been running
func (i *Instance) Runtime() time.Duration {
	i.mu.Lock()
	defer i.mu.Unlock()
	switch {
	case i.startedAt.IsZero():
		return 0
	case i.stoppedAt.IsZero():
		return time.Since(i.startedAt)
	}
	return i.stoppedAt.Sub(i.startedAt)
}

// Startable reports whether the module declares a start hook
func (i *Instance) Startable() bool {
	_, _, start := plugins.Hooks(i.Module.Plugin)
	return start
}

func (i *Instance) transition(next State, err error) error {
	i.mu.Lock()
	from := i.state
	if !from.CanTransition(next) {
		i.mu.Unlock()
		return fmt.Errorf("instance %s: invalid transition %s -> %s", i, from, next)
	}
	i.state = next
	if next == Failed {
		i.err = err
	}
	now := time.Now()
	switch {
	case next == Started:
		i.startedAt = now
	case from == Started:
		i.stoppedAt = now
	}
	i.mu.Unlock()

	if i.observe != nil {
		i.observe(i, from, next)
	}
	return nil
}
