package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/harness/pkg/async"
	"github.com/platinummonkey/harness/pkg/observability"
)

// changeTimeout bounds one ChangeFunc call
const changeTimeout = 10 * time.Second

// ChangeFunc is called with the name of a changed configuration file. A
// returned error is logged.
type ChangeFunc func(ctx context.Context, name string) error

// Watch reports writes, creations, removals and renames of the configuration
// at path (a file, or a directory of DefaultPattern files) until ctx is done.
// The running configuration is never reloaded. Each onChange call runs in
// its own goroutine, and watcher errors are logged to log.
func Watch(ctx context.Context, path string, log *logrus.Entry, onChange ChangeFunc) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	// Watch the parent directory of a single file so editors that replace
	// the file through a rename are still seen.
	dir, match := path, DefaultPattern
	if !info.IsDir() {
		dir, match = filepath.Dir(path), filepath.Base(path)
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	log = log.WithField("watch", dir)
	go func() {
		defer watcher.Close()
		defer observability.RecoverPanic(log, "config watcher")
		watchLoop(ctx, watcher.Events, watcher.Errors, match, log, onChange)
	}()

	return nil
}

func watchLoop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, match string, log *logrus.Entry, onChange ChangeFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if ok, _ := filepath.Match(match, filepath.Base(event.Name)); !ok {
				continue
			}
			name := event.Name
			async.SafeGo(ctx, log.WithField("file", name), changeTimeout, "config change", func(ctx context.Context) error {
				return onChange(ctx, name)
			})
		case err, ok := <-errs:
			if !ok {
				return
			}
			log.WithError(err).Warn("Configuration watcher error")
		}
	}
}
