package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
)

const (
	// DefaultSection is the reserved bootstrap section. Its options are
	// visible in every other section and it is never reported as available.
	DefaultSection = "default"

	// DefaultPattern selects configuration files when reading a directory
	DefaultPattern = "*.cfg"

	// LibraryOption names the module a section is loaded from
	LibraryOption = "library"
)

var identRegex = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Option configures a Store
type Option func(*Store)

// WithReserved rejects the given words as section and option names
func WithReserved(words ...string) Option {
	return func(s *Store) {
		for _, w := range words {
			s.reserved[strings.ToLower(w)] = struct{}{}
		}
	}
}

// WithoutKeys rejects keyed sections such as [name:key]
func WithoutKeys() Option {
	return func(s *Store) {
		s.allowKeys = false
	}
}

// Store holds the configuration sections of one harness run.
// A failed read leaves the previous contents untouched.
type Store struct {
	mu        sync.RWMutex
	doc       *document
	seed      map[string]string
	reserved  map[string]struct{}
	allowKeys bool
}

type document struct {
	defaults *Section
	sections map[SectionKey]*Section
	order    []SectionKey
	// options set for DEFAULT by a file, as opposed to seeded ones
	fileDefaults map[string]struct{}
}

// NewStore creates an empty configuration store
func NewStore(opts ...Option) *Store {
	s := &Store{
		seed:      make(map[string]string),
		reserved:  make(map[string]struct{}),
		allowKeys: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.doc = s.newDocument()
	return s
}

// SetDefault seeds a DEFAULT option. Seeded values survive later reads
// and may be overridden by a [DEFAULT] section in a file.
func (s *Store) SetDefault(option, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	option = strings.ToLower(option)
	s.seed[option] = value
	if _, set := s.doc.fileDefaults[option]; !set {
		s.doc.defaults.Set(option, value)
	}
}

// Defaults returns the DEFAULT section
func (s *Store) Defaults() *Section {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.defaults
}

// Read replaces the configuration with the contents of a file, or of all
// files matching DefaultPattern when path is a directory.
func (s *Store) Read(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &Error{Kind: KindNotFound, File: path, Msg: "cannot read configuration", Err: err}
	}
	if info.IsDir() {
		return s.ReadDir(path, DefaultPattern)
	}

	doc := s.newDocument()
	if err := s.parseFile(doc, path); err != nil {
		return err
	}
	return s.commit(doc)
}

// ReadDir replaces the configuration with all files in dir matching pattern.
// The files are treated as a single document.
func (s *Store) ReadDir(dir, pattern string) error {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return &Error{Kind: KindSyntax, File: dir, Msg: "bad pattern", Err: err}
	}
	sort.Strings(matches)

	doc := s.newDocument()
	for _, path := range matches {
		if err := s.parseFile(doc, path); err != nil {
			return err
		}
	}
	return s.commit(doc)
}

// ReadFrom adds the sections read from r to the current configuration
func (s *Store) ReadFrom(r io.Reader, name string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return &Error{Kind: KindSyntax, File: name, Msg: "read failed", Err: err}
	}

	s.mu.RLock()
	doc := s.doc.clone()
	s.mu.RUnlock()

	if err := s.parse(doc, string(data), name); err != nil {
		return err
	}
	return s.commit(doc)
}

// Available returns the declared sections in declaration order,
// excluding DEFAULT.
func (s *Store) Available() []SectionKey {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]SectionKey, len(s.doc.order))
	copy(result, s.doc.order)
	return result
}

// Empty reports whether no sections are declared
func (s *Store) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.doc.order) == 0
}

// Has reports whether any section with the given name exists
func (s *Store) Has(name string) bool {
	return len(s.Sections(name)) > 0
}

// Get returns the section identified by (name, key)
func (s *Store) Get(name, key string) (*Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k := SectionKey{Name: strings.ToLower(name), Key: strings.ToLower(key)}
	section, ok := s.doc.sections[k]
	if !ok {
		return nil, &Error{Kind: KindNotFound, Section: k.String(), Msg: "section does not exist"}
	}
	return section, nil
}

// Sections returns every section named name, in declaration order
func (s *Store) Sections(name string) []*Section {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name = strings.ToLower(name)
	var result []*Section
	for _, k := range s.doc.order {
		if k.Name == name {
			result = append(result, s.doc.sections[k])
		}
	}
	return result
}

// Library returns the module name configured for sections named name
func (s *Store) Library(name string) (string, error) {
	sections := s.Sections(name)
	if len(sections) == 0 {
		return "", &Error{Kind: KindNotFound, Section: name, Msg: "section does not exist"}
	}
	return sections[0].Get(LibraryOption)
}

func (s *Store) newDocument() *document {
	doc := &document{
		sections:     make(map[SectionKey]*Section),
		fileDefaults: make(map[string]struct{}),
	}
	doc.defaults = newSection(DefaultSection, "", nil)
	for k, v := range s.seed {
		doc.defaults.Set(k, v)
	}
	return doc
}

func (d *document) clone() *document {
	c := &document{
		defaults:     d.defaults.clone(nil),
		sections:     make(map[SectionKey]*Section, len(d.sections)),
		order:        append([]SectionKey(nil), d.order...),
		fileDefaults: make(map[string]struct{}, len(d.fileDefaults)),
	}
	for k, section := range d.sections {
		c.sections[k] = section.clone(c.defaults)
	}
	for k := range d.fileDefaults {
		c.fileDefaults[k] = struct{}{}
	}
	return c
}

func (s *Store) commit(doc *document) error {
	if err := checkLibraries(doc); err != nil {
		return err
	}

	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
	return nil
}

// checkLibraries defaults the library option to the section name and makes
// sure all sections sharing a name agree on it.
func checkLibraries(doc *document) error {
	libraries := make(map[string]SectionKey)
	for _, k := range doc.order {
		section := doc.sections[k]
		if _, ok := section.options[LibraryOption]; !ok {
			section.Set(LibraryOption, section.Name)
		}
		library := section.options[LibraryOption]

		first, seen := libraries[k.Name]
		if !seen {
			libraries[k.Name] = k
			continue
		}
		if other := doc.sections[first].options[LibraryOption]; other != library {
			return &Error{
				Kind:    KindBadSection,
				Section: k.String(),
				Msg:     fmt.Sprintf("library %q does not match library %q in section [%s]", library, other, first),
			}
		}
	}
	return nil
}

func (s *Store) parseFile(doc *document, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &Error{Kind: KindNotFound, File: path, Msg: "cannot read configuration", Err: err}
	}
	return s.parse(doc, string(data), path)
}

func (s *Store) parse(doc *document, data, file string) error {
	if data != "" && !strings.HasSuffix(data, "\n") {
		return syntaxError(file, strings.Count(data, "\n")+1, "unterminated last line")
	}

	lines := strings.Split(strings.TrimSuffix(data, "\n"), "\n")
	if data == "" {
		lines = nil
	}

	var current *Section
	for i, raw := range lines {
		lineNo := i + 1
		line := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))

		if line == "" || line[0] == '#' || line[0] == ';' {
			continue
		}

		if line[0] == '[' {
			section, err := s.parseHeader(doc, line, file, lineNo)
			if err != nil {
				return err
			}
			current = section
			continue
		}

		if current == nil {
			return syntaxError(file, lineNo, "option outside of a section")
		}

		option, value, err := s.parseOption(line, file, lineNo)
		if err != nil {
			return err
		}

		if current == doc.defaults {
			if _, dup := doc.fileDefaults[option]; dup {
				return syntaxError(file, lineNo, "option %q repeated in [DEFAULT]", option)
			}
			doc.fileDefaults[option] = struct{}{}
		} else if _, exists := current.options[option]; exists {
			return syntaxError(file, lineNo, "option %q repeated in [%s]", option, current)
		}
		current.Set(option, value)
	}

	return nil
}

func (s *Store) parseHeader(doc *document, line, file string, lineNo int) (*Section, error) {
	if !strings.HasSuffix(line, "]") {
		return nil, syntaxError(file, lineNo, "unterminated section header %q", line)
	}

	header := strings.TrimSpace(line[1 : len(line)-1])
	name, key, hasKey := strings.Cut(header, ":")
	name = strings.ToLower(strings.TrimSpace(name))
	key = strings.ToLower(strings.TrimSpace(key))

	if !identRegex.MatchString(name) {
		return nil, &Error{Kind: KindBadSection, File: file, Line: lineNo, Msg: fmt.Sprintf("illegal section name %q", name)}
	}
	if _, reserved := s.reserved[name]; reserved {
		return nil, &Error{Kind: KindBadSection, File: file, Line: lineNo, Msg: fmt.Sprintf("section name %q is reserved", name)}
	}

	if hasKey {
		switch {
		case !s.allowKeys:
			return nil, &Error{Kind: KindBadSection, File: file, Line: lineNo, Msg: fmt.Sprintf("section keys not allowed: [%s]", header)}
		case name == DefaultSection:
			return nil, &Error{Kind: KindBadSection, File: file, Line: lineNo, Msg: "DEFAULT section cannot have a key"}
		case !identRegex.MatchString(key):
			return nil, &Error{Kind: KindBadSection, File: file, Line: lineNo, Msg: fmt.Sprintf("illegal section key %q", key)}
		}
	}

	if name == DefaultSection {
		return doc.defaults, nil
	}

	k := SectionKey{Name: name, Key: key}
	if _, exists := doc.sections[k]; exists {
		return nil, &Error{Kind: KindDuplicate, File: file, Line: lineNo, Section: k.String(), Msg: fmt.Sprintf("duplicate section [%s]", k)}
	}

	section := newSection(name, key, doc.defaults)
	doc.sections[k] = section
	doc.order = append(doc.order, k)
	return section, nil
}

func (s *Store) parseOption(line, file string, lineNo int) (string, string, error) {
	idx := strings.IndexAny(line, "=:")
	if idx < 0 {
		return "", "", syntaxError(file, lineNo, "malformed line %q", line)
	}

	option := strings.ToLower(strings.TrimSpace(line[:idx]))
	value := strings.TrimSpace(line[idx+1:])

	if !identRegex.MatchString(option) {
		return "", "", syntaxError(file, lineNo, "illegal option name %q", option)
	}
	if _, reserved := s.reserved[option]; reserved {
		return "", "", syntaxError(file, lineNo, "option name %q is reserved", option)
	}
	if err := checkBraces(value); err != nil {
		return "", "", syntaxError(file, lineNo, "%v", err)
	}
	if strings.HasSuffix(value, `\`) {
		return "", "", syntaxError(file, lineNo, "line continuation is not supported")
	}

	return option, value, nil
}

func checkBraces(value string) error {
	open := false
	for _, ch := range value {
		switch ch {
		case '{':
			if open {
				return fmt.Errorf("nested variable in %q", value)
			}
			open = true
		case '}':
			open = false
		}
	}
	if open {
		return fmt.Errorf("incomplete variable interpolation in %q", value)
	}
	return nil
}
