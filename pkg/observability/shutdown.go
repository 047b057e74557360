package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultShutdownTimeout = 30 * time.Second

// ShutdownFunc releases one resource once the harness run is over
type ShutdownFunc func(context.Context) error

type namedShutdown struct {
	name string
	fn   ShutdownFunc
}

// ShutdownManager tears down what outlives the plugin instances: the admin
// server first, so no request sees a half-closed harness, then every
// registered function concurrently. Both phases share one timeout.
type ShutdownManager struct {
	logger  *logrus.Entry
	server  *http.Server
	timeout time.Duration

	mu    sync.Mutex
	funcs []namedShutdown
}

// NewShutdownManager creates a shutdown manager. server may be nil and a
// zero timeout means 30s.
func NewShutdownManager(logger *logrus.Entry, server *http.Server, timeout time.Duration) *ShutdownManager {
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	return &ShutdownManager{
		logger:  logger,
		server:  server,
		timeout: timeout,
	}
}

// RegisterShutdownFunc registers fn under name for the second phase
func (sm *ShutdownManager) RegisterShutdownFunc(name string, fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.funcs = append(sm.funcs, namedShutdown{name: name, fn: fn})
}

// Shutdown runs both phases and joins every failure. It stops waiting when
// the timeout expires.
func (sm *ShutdownManager) Shutdown(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, sm.timeout)
	defer cancel()

	if sm.server != nil {
		sm.logger.Debug("Stopping admin endpoint")
		if err := sm.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("admin endpoint shutdown: %w", err)
		}
	}

	sm.mu.Lock()
	funcs := append([]namedShutdown(nil), sm.funcs...)
	sm.mu.Unlock()

	errs := make([]error, len(funcs))
	var wg sync.WaitGroup
	for i, f := range funcs {
		wg.Add(1)
		go func(i int, f namedShutdown) {
			defer wg.Done()
			if err := f.fn(ctx); err != nil {
				sm.logger.WithError(err).WithField("resource", f.name).Error("Shutdown failed")
				errs[i] = fmt.Errorf("%s: %w", f.name, err)
			}
		}(i, f)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		sm.logger.Warn("Shutdown timeout reached")
		return fmt.Errorf("shutdown: %w", ctx.Err())
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	sm.logger.Debug("Shutdown complete")
	return nil
}
