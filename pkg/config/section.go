package config

import (
	"fmt"
	"sort"
	"strings"
)

// maxInterpolationDepth bounds nested {var} expansion
const maxInterpolationDepth = 8

// SectionKey identifies a section. Key is empty for unkeyed sections.
type SectionKey struct {
	Name string `yaml:"name" json:"name"`
	Key  string `yaml:"key,omitempty" json:"key,omitempty"`
}

func (k SectionKey) String() string {
	if k.Key == "" {
		return k.Name
	}
	return k.Name + ":" + k.Key
}

// Section is a named configuration section holding option values.
// Options missing from the section fall back to the DEFAULT section.
type Section struct {
	Name string
	Key  string

	options  map[string]string
	defaults *Section
}

func newSection(name, key string, defaults *Section) *Section {
	return &Section{
		Name:     name,
		Key:      key,
		options:  make(map[string]string),
		defaults: defaults,
	}
}

// SectionKey returns the (name, key) pair of the section
func (s *Section) SectionKey() SectionKey {
	return SectionKey{Name: s.Name, Key: s.Key}
}

func (s *Section) String() string {
	return s.SectionKey().String()
}

// Has reports whether the option is set in the section or in DEFAULT
func (s *Section) Has(option string) bool {
	_, ok := s.lookup(strings.ToLower(option))
	return ok
}

// Get returns the interpolated value of an option
func (s *Section) Get(option string) (string, error) {
	option = strings.ToLower(option)
	raw, ok := s.lookup(option)
	if !ok {
		return "", &Error{Kind: KindMissingOption, Section: s.String(), Option: option, Msg: "not set"}
	}

	value, err := s.interpolate(raw, 0)
	if err != nil {
		return "", &Error{Kind: KindInvalidValue, Section: s.String(), Option: option, Msg: "interpolation failed", Err: err}
	}
	return value, nil
}

// GetDefault returns the option value or def if the option is not set
func (s *Section) GetDefault(option, def string) string {
	value, err := s.Get(option)
	if err != nil {
		return def
	}
	return value
}

// Set assigns a raw option value
func (s *Section) Set(option, value string) {
	s.options[strings.ToLower(option)] = value
}

// Options returns the option names set directly in the section, sorted
func (s *Section) Options() []string {
	names := make([]string, 0, len(s.options))
	for name := range s.options {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Section) lookup(option string) (string, bool) {
	if value, ok := s.options[option]; ok {
		return value, true
	}
	if s.defaults != nil && s.defaults != s {
		value, ok := s.defaults.options[option]
		return value, ok
	}
	return "", false
}

func (s *Section) interpolate(value string, depth int) (string, error) {
	if !strings.Contains(value, "{") {
		return value, nil
	}
	if depth >= maxInterpolationDepth {
		return "", fmt.Errorf("interpolation too deep in %q", value)
	}

	var b strings.Builder
	rest := value
	for {
		start := strings.IndexByte(rest, '{')
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[start:], '}')
		if end < 0 {
			return "", fmt.Errorf("unterminated variable in %q", value)
		}
		end += start

		b.WriteString(rest[:start])
		name := strings.ToLower(rest[start+1 : end])
		raw, ok := s.lookup(name)
		if !ok {
			return "", fmt.Errorf("unknown variable %q", name)
		}
		expanded, err := s.interpolate(raw, depth+1)
		if err != nil {
			return "", err
		}
		b.WriteString(expanded)
		rest = rest[end+1:]
	}

	return b.String(), nil
}

func (s *Section) clone(defaults *Section) *Section {
	c := newSection(s.Name, s.Key, defaults)
	for k, v := range s.options {
		c.options[k] = v
	}
	return c
}
