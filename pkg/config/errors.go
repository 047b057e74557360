package config

import "fmt"

// ErrorKind classifies configuration errors
type ErrorKind string

const (
	KindSyntax        ErrorKind = "syntax"
	KindBadSection    ErrorKind = "bad section"
	KindDuplicate     ErrorKind = "duplicate section"
	KindNotFound      ErrorKind = "not found"
	KindAmbiguous     ErrorKind = "ambiguous"
	KindMissingOption ErrorKind = "missing option"
	KindInvalidValue  ErrorKind = "invalid value"
)

// Sentinels for errors.Is. Only the kind is compared.
var (
	ErrSyntax        = &Error{Kind: KindSyntax}
	ErrBadSection    = &Error{Kind: KindBadSection}
	ErrDuplicate     = &Error{Kind: KindDuplicate}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrAmbiguous     = &Error{Kind: KindAmbiguous}
	ErrMissingOption = &Error{Kind: KindMissingOption}
	ErrInvalidValue  = &Error{Kind: KindInvalidValue}
)

// Error is a configuration error
type Error struct {
	Kind    ErrorKind
	Section string // "name" or "name:key"
	Option  string
	File    string
	Line    int
	Msg     string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}

	switch {
	case e.File != "" && e.Line > 0:
		msg = fmt.Sprintf("%s:%d: %s", e.File, e.Line, msg)
	case e.Option != "" && e.Section != "":
		msg = fmt.Sprintf("option %s in [%s]: %s", e.Option, e.Section, msg)
	case e.Section != "":
		msg = fmt.Sprintf("section [%s]: %s", e.Section, msg)
	}

	if e.Err != nil {
		return msg + ": " + e.Err.Error()
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

func syntaxError(file string, line int, format string, args ...interface{}) *Error {
	return &Error{Kind: KindSyntax, File: file, Line: line, Msg: fmt.Sprintf(format, args...)}
}
