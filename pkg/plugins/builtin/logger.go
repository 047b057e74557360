package builtin

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/harness/pkg/config"
	"github.com/platinummonkey/harness/pkg/plugins"
	"github.com/platinummonkey/harness/pkg/version"
)

// Logger points the harness log sink at <logging_folder>/<program>.log, or
// at stdout when no logging folder is configured.
//
//	[logger]
//	level = debug   # logrus level, default info
//	format = json   # text or json, default text
type Logger struct {
	mu       sync.Mutex
	file     *os.File
	previous io.Writer
}

func (p *Logger) Manifest() *plugins.Manifest {
	return &plugins.Manifest{
		ABIVersion: plugins.ABIVersion,
		Brief:      "Logging functions",
		Version:    version.New(0, 0, 1),
	}
}

// Init applies the logger section to the sink. Options are validated and the
// log file opened before the sink is touched, so a failed Init leaves it as
// it was.
func (p *Logger) Init(env *plugins.Env) error {
	if env.Sink == nil {
		return fmt.Errorf("no log sink")
	}

	var opts *sinkOptions
	if sections := env.Sections(); len(sections) > 0 {
		r := config.NewOptionReader(sections[0], nil, map[string]string{
			"level":  "info",
			"format": "text",
		})
		var err error
		if opts, err = readSinkOptions(env.Name, r); err != nil {
			return err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	folder := ""
	if defaults := env.Defaults(); defaults != nil {
		folder = defaults.GetDefault("logging_folder", "")
	}

	var out io.Writer = os.Stdout
	path := "stdout"
	if folder != "" {
		program := env.Program
		if program == "" {
			program = "harness"
		}
		path = filepath.Join(folder, program+".log")

		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		p.file = file
		out = file
	}

	if opts != nil {
		env.Sink.SetLevel(opts.level)
		env.Sink.SetFormatter(opts.formatter)
	}
	p.previous = env.Sink.SetOutput(out)
	env.Log.Debugf("logging to %s", path)
	return nil
}

func (p *Logger) Deinit(env *plugins.Env) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.previous != nil && env.Sink != nil {
		env.Sink.SetOutput(p.previous)
		p.previous = nil
	}

	if p.file == nil {
		return nil
	}
	err := p.file.Close()
	p.file = nil
	return err
}

type sinkOptions struct {
	level     logrus.Level
	formatter logrus.Formatter
}

func readSinkOptions(section string, r *config.OptionReader) (*sinkOptions, error) {
	levelName, err := r.String("level")
	if err != nil {
		return nil, err
	}
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		return nil, &config.Error{Kind: config.KindInvalidValue, Section: section, Option: "level", Msg: fmt.Sprintf("unknown level '%s'", levelName)}
	}

	format, err := r.String("format")
	if err != nil {
		return nil, err
	}
	opts := &sinkOptions{level: level}
	switch format {
	case "text":
		opts.formatter = &logrus.TextFormatter{FullTimestamp: true}
	case "json":
		opts.formatter = &logrus.JSONFormatter{}
	default:
		return nil, &config.Error{Kind: config.KindInvalidValue, Section: section, Option: "format", Msg: fmt.Sprintf("must be text or json, was '%s'", format)}
	}
	return opts, nil
}
