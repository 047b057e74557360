package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// MaxSocketPathLen is the longest usable unix socket path (sun_path minus NUL)
	MaxSocketPathLen = 107

	// MaxPathLen is the longest filesystem path accepted by Path
	MaxPathLen = 4096
)

// TCPAddress is a host and port pair
type TCPAddress struct {
	Host string
	Port int
}

// IsZero reports whether the address is unset
func (a TCPAddress) IsZero() bool {
	return a.Host == "" && a.Port == 0
}

func (a TCPAddress) String() string {
	if a.Port == 0 {
		return a.Host
	}
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// OptionReader validates and coerces the options of one section.
// Required options must be present and non-empty; optional options fall
// back to their default when missing or empty.
type OptionReader struct {
	section  *Section
	required map[string]struct{}
	defaults map[string]string
}

// NewOptionReader creates a reader for section
func NewOptionReader(section *Section, required []string, defaults map[string]string) *OptionReader {
	r := &OptionReader{
		section:  section,
		required: make(map[string]struct{}, len(required)),
		defaults: make(map[string]string, len(defaults)),
	}
	for _, option := range required {
		r.required[strings.ToLower(option)] = struct{}{}
	}
	for option, value := range defaults {
		r.defaults[strings.ToLower(option)] = value
	}
	return r
}

// IsRequired reports whether option is required
func (r *OptionReader) IsRequired(option string) bool {
	_, ok := r.required[strings.ToLower(option)]
	return ok
}

// String returns the option value, applying the required/default policy
func (r *OptionReader) String(option string) (string, error) {
	option = strings.ToLower(option)
	required := r.IsRequired(option)

	value, err := r.section.Get(option)
	if err != nil {
		if !isKind(err, KindMissingOption) {
			return "", err
		}
		if required {
			return "", r.errorf(KindMissingOption, option, "is required")
		}
	}

	if value == "" {
		if required {
			return "", r.errorf(KindMissingOption, option, "is required and needs a value")
		}
		value = r.defaults[option]
	}

	return value, nil
}

// Int returns the option as an integer. Empty optional values yield 0.
func (r *OptionReader) Int(option string) (int, error) {
	value, err := r.String(option)
	if err != nil || value == "" {
		return 0, err
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, r.errorf(KindInvalidValue, option, "needs an integer, was '%s'", value)
	}
	return n, nil
}

// Bool returns the option as a boolean
func (r *OptionReader) Bool(option string) (bool, error) {
	value, err := r.String(option)
	if err != nil || value == "" {
		return false, err
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, r.errorf(KindInvalidValue, option, "needs a boolean, was '%s'", value)
	}
	return b, nil
}

// Duration returns the option as a duration. Bare integers are seconds.
func (r *OptionReader) Duration(option string) (time.Duration, error) {
	value, err := r.String(option)
	if err != nil || value == "" {
		return 0, err
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, r.errorf(KindInvalidValue, option, "needs a duration, was '%s'", value)
	}
	return d, nil
}

// TCPPort returns the option as a TCP port in 1..65535. An empty optional
// value without default yields 0.
func (r *OptionReader) TCPPort(option string) (int, error) {
	value, err := r.String(option)
	if err != nil || value == "" {
		return 0, err
	}

	port, err := strconv.ParseInt(value, 0, 64)
	if err != nil || port < 1 || port > 65535 {
		return 0, r.errorf(KindInvalidValue, option, "needs value between 1 and 65535 inclusive, was '%s'", value)
	}
	return int(port), nil
}

// TCPAddress returns the option as host[:port]. When the port is missing
// defaultPort is used if positive; otherwise requirePort makes it an error.
func (r *OptionReader) TCPAddress(option string, requirePort bool, defaultPort int) (TCPAddress, error) {
	value, err := r.String(option)
	if err != nil || value == "" {
		return TCPAddress{}, err
	}

	host, port, err := splitAddrPort(value)
	if err != nil {
		return TCPAddress{}, r.errorf(KindInvalidValue, option, "is incorrect (%v)", err)
	}

	if port == 0 {
		switch {
		case defaultPort > 0:
			port = defaultPort
		case requirePort:
			return TCPAddress{}, r.errorf(KindInvalidValue, option, "is incorrect (TCP port missing)")
		}
	}

	return TCPAddress{Host: host, Port: port}, nil
}

// NamedSocket returns the option as a unix socket path that is about to be
// created. The path must fit in a socket address and must not exist yet.
func (r *OptionReader) NamedSocket(option string) (string, error) {
	value, err := r.String(option)
	if err != nil || value == "" {
		return "", err
	}

	if len(value) > MaxSocketPathLen {
		return "", r.errorf(KindInvalidValue, option, "socket file path can be at most %d characters (was %d)", MaxSocketPathLen, len(value))
	}
	if _, err := os.Stat(value); err == nil {
		return "", r.errorf(KindInvalidValue, option, "socket file '%s' already exists, cannot start", value)
	}
	return value, nil
}

// Path returns the option as a filesystem path no longer than MaxPathLen
func (r *OptionReader) Path(option string) (string, error) {
	value, err := r.String(option)
	if err != nil || value == "" {
		return "", err
	}
	if len(value) > MaxPathLen {
		return "", r.errorf(KindInvalidValue, option, "path can be at most %d characters (was %d)", MaxPathLen, len(value))
	}
	return value, nil
}

func (r *OptionReader) errorf(kind ErrorKind, option, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Section: r.section.String(),
		Option:  strings.ToLower(option),
		Msg:     fmt.Sprintf(format, args...),
	}
}

// splitAddrPort splits "host", "host:port", "[v6]" and "[v6]:port".
// A bare IPv6 address without brackets is taken as host only.
func splitAddrPort(value string) (string, int, error) {
	if strings.HasPrefix(value, "[") {
		end := strings.IndexByte(value, ']')
		if end < 0 {
			return "", 0, fmt.Errorf("invalid IPv6 address %q", value)
		}
		host := value[1:end]
		rest := value[end+1:]
		if rest == "" {
			return host, 0, nil
		}
		if !strings.HasPrefix(rest, ":") {
			return "", 0, fmt.Errorf("invalid address %q", value)
		}
		port, err := parsePort(rest[1:])
		return host, port, err
	}

	if strings.Count(value, ":") > 1 {
		if net.ParseIP(value) == nil {
			return "", 0, fmt.Errorf("invalid IPv6 address %q", value)
		}
		return value, 0, nil
	}

	host, portStr, found := strings.Cut(value, ":")
	if !found {
		return host, 0, nil
	}
	port, err := parsePort(portStr)
	return host, port, err
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid TCP port %q", s)
	}
	return port, nil
}

func isKind(err error, kind ErrorKind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
