package observability

import (
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// PanicError is returned by Guard when the guarded hook panicked
type PanicError struct {
	Where string
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when a hook panicked with an error
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// Guard runs fn and turns a panic into a *PanicError. Plugin hooks run
// through Guard so a misbehaving plugin fails its own instance instead of
// the whole process.
func Guard(log *logrus.Entry, where string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			perr := &PanicError{Where: where, Value: r, Stack: debug.Stack()}
			logPanic(log, perr)
			err = perr
		}
	}()
	return fn()
}

// RecoverPanic logs a panic and swallows it. Use it deferred in goroutines
// whose failure has nowhere else to go.
func RecoverPanic(log *logrus.Entry, where string) {
	if r := recover(); r != nil {
		logPanic(log, &PanicError{Where: where, Value: r, Stack: debug.Stack()})
	}
}

func logPanic(log *logrus.Entry, perr *PanicError) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log.WithFields(logrus.Fields{
		"panic": perr.Value,
		"stack": string(perr.Stack),
		"where": perr.Where,
	}).Error("Recovered from panic")
}
