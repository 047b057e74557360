package harness

import (
	"errors"
	"io"

	"gopkg.in/yaml.v3"
)

// Outcome values of a report
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeRunning = "running"
)

// InstanceReport is the outcome of one instance
type InstanceReport struct {
	Plugin  string  `yaml:"plugin" json:"plugin"`
	Key     string  `yaml:"key,omitempty" json:"key,omitempty"`
	State   State   `yaml:"state" json:"state"`
	Runtime float64 `yaml:"runtime_seconds,omitempty" json:"runtime_seconds,omitempty"`
	Error   string  `yaml:"error,omitempty" json:"error,omitempty"`

	err error
}

// ModuleReport records a module whose deinit failed
type ModuleReport struct {
	Plugin string `yaml:"plugin" json:"plugin"`
	Error  string `yaml:"error" json:"error"`

	err error
}

// Report is the aggregate outcome of a harness run
type Report struct {
	RunID     string           `yaml:"run_id" json:"run_id"`
	Outcome   string           `yaml:"outcome" json:"outcome"`
	Instances []InstanceReport `yaml:"instances" json:"instances"`
	Modules   []ModuleReport   `yaml:"deinit_failures,omitempty" json:"deinit_failures,omitempty"`
}

func newReport(runID string, instances []*Instance, modules []ModuleReport, final bool) *Report {
	r := &Report{RunID: runID, Modules: modules}

	for _, inst := range instances {
		entry := InstanceReport{
			Plugin:  inst.Name,
			Key:     inst.Key,
			State:   inst.State(),
			Runtime: inst.Runtime().Seconds(),
			err:     inst.Err(),
		}
		if entry.err != nil {
			entry.Error = entry.err.Error()
		}
		r.Instances = append(r.Instances, entry)
	}

	switch {
	case r.Err() != nil:
		r.Outcome = OutcomeFailure
	case final:
		r.Outcome = OutcomeSuccess
	default:
		r.Outcome = OutcomeRunning
	}
	return r
}

// Err joins every instance and deinit failure, or returns nil
func (r *Report) Err() error {
	var errs []error
	for _, entry := range r.Instances {
		if entry.err != nil {
			errs = append(errs, entry.err)
		}
	}
	for _, m := range r.Modules {
		if m.err != nil {
			errs = append(errs, m.err)
		}
	}
	return errors.Join(errs...)
}

// Failed returns the instances that ended in the Failed state
func (r *Report) Failed() []InstanceReport {
	var failed []InstanceReport
	for _, entry := range r.Instances {
		if entry.State == Failed {
			failed = append(failed, entry)
		}
	}
	return failed
}

// Instance returns the entry for a section
func (r *Report) Instance(plugin, key string) (InstanceReport, bool) {
	for _, entry := range r.Instances {
		if entry.Plugin == plugin && entry.Key == key {
			return entry, true
		}
	}
	return InstanceReport{}, false
}

// WriteYAML renders the report
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}
