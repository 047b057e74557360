package plugins

import (
	"fmt"
)

// ErrorKind classifies plugin errors
type ErrorKind string

const (
	KindNotFound          ErrorKind = "not found"
	KindAbiMismatch       ErrorKind = "abi mismatch"
	KindBadManifest       ErrorKind = "invalid manifest"
	KindMissingDependency ErrorKind = "missing dependency"
	KindCyclicDependency  ErrorKind = "cyclic dependency"
	KindConflict          ErrorKind = "conflict"
	KindVersionMismatch   ErrorKind = "version mismatch"
	KindInitFailed        ErrorKind = "init failed"
	KindStartFailed       ErrorKind = "start failed"
	KindDeinitFailed      ErrorKind = "deinit failed"
)

// Sentinels for errors.Is
var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrAbiMismatch       = &Error{Kind: KindAbiMismatch}
	ErrBadManifest       = &Error{Kind: KindBadManifest}
	ErrMissingDependency = &Error{Kind: KindMissingDependency}
	ErrCyclicDependency  = &Error{Kind: KindCyclicDependency}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrVersionMismatch   = &Error{Kind: KindVersionMismatch}
	ErrInitFailed        = &Error{Kind: KindInitFailed}
	ErrStartFailed       = &Error{Kind: KindStartFailed}
	ErrDeinitFailed      = &Error{Kind: KindDeinitFailed}
)

// Error is a plugin error
type Error struct {
	Kind   ErrorKind
	Plugin string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Plugin != "" {
		msg = fmt.Sprintf("plugin %s: %s", e.Plugin, msg)
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Errorf creates a plugin error of the given kind
func Errorf(kind ErrorKind, plugin, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Plugin: plugin, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates a plugin error of the given kind around err
func Wrap(kind ErrorKind, plugin string, err error) *Error {
	return &Error{Kind: kind, Plugin: plugin, Err: err}
}
