package plugins

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
)

const (
	// BuiltinScheme prefixes the location of compile-time registered modules
	BuiltinScheme = "builtin:"

	// SharedObjectExt is the file extension of shared object modules
	SharedObjectExt = ".so"

	// SymbolName is the symbol a shared object module exports
	SymbolName = "Plugin"

	defaultLocationCacheSize = 128
)

// Opener opens a shared object module
type Opener func(path string) (Plugin, error)

// Module is a loaded, validated plugin module. It is cached per plugin name
// and shared by every instance of that name.
type Module struct {
	Name     string
	Library  string
	Location string
	Plugin   Plugin
	Manifest *Manifest
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithCatalog sets the catalog of compile-time registered modules
func WithCatalog(c *Catalog) RegistryOption {
	return func(r *Registry) {
		r.catalog = c
	}
}

// WithOpener replaces the shared object opener
func WithOpener(open Opener) RegistryOption {
	return func(r *Registry) {
		r.open = open
	}
}

// Registry locates, opens and validates plugin modules. Builtin modules are
// found in the catalog, shared objects as <dir>/<library>.so on the search path.
type Registry struct {
	catalog   *Catalog
	dirs      []string
	open      Opener
	locations *lru.Cache[string, string]
	mu        sync.Mutex
	loaded    map[string]*Module
	log       *logrus.Logger
}

// NewRegistry creates a new plugin registry
func NewRegistry(dirs []string, log *logrus.Logger, opts ...RegistryOption) *Registry {
	if log == nil {
		log = logrus.New()
	}

	locations, err := lru.New[string, string](defaultLocationCacheSize)
	if err != nil {
		panic(err)
	}

	r := &Registry{
		catalog:   DefaultCatalog,
		dirs:      dirs,
		open:      openSharedObject,
		locations: locations,
		loaded:    make(map[string]*Module),
		log:       log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SearchPath returns the directories searched for shared objects
func (r *Registry) SearchPath() []string {
	return append([]string(nil), r.dirs...)
}

// Resolve maps a library name to a module location
func (r *Registry) Resolve(library string) (string, error) {
	if !nameRegex.MatchString(library) {
		return "", Errorf(KindNotFound, library, "invalid library name")
	}

	if location, ok := r.locations.Get(library); ok {
		return location, nil
	}

	location := ""
	if r.catalog.Has(library) {
		location = BuiltinScheme + library
	} else {
		for _, dir := range r.dirs {
			path := filepath.Join(dir, library+SharedObjectExt)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				location = path
				break
			}
		}
	}

	if location == "" {
		return "", Errorf(KindNotFound, library, "not registered and not found in %s", strings.Join(r.dirs, string(os.PathListSeparator)))
	}

	r.locations.Add(library, location)
	return location, nil
}

// Load opens and validates the module for a plugin name. A second call for
// the same name returns the cached module. Invalid modules are not retained.
func (r *Registry) Load(name, library string) (*Module, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if module, ok := r.loaded[name]; ok {
		return module, nil
	}

	location, err := r.Resolve(library)
	if err != nil {
		return nil, err
	}

	p, err := r.openLocation(library, location)
	if err != nil {
		return nil, &Error{Kind: KindNotFound, Plugin: name, Msg: "cannot open " + location, Err: err}
	}
	if p == nil {
		return nil, Errorf(KindBadManifest, name, "%s returned no plugin", location)
	}

	manifest := p.Manifest()
	if err := ValidateManifest(name, manifest); err != nil {
		r.log.WithFields(logrus.Fields{
			"plugin":   name,
			"location": location,
		}).Debugf("Rejected plugin module: %v", err)
		return nil, err
	}

	module := &Module{
		Name:     name,
		Library:  library,
		Location: location,
		Plugin:   p,
		Manifest: manifest,
	}
	r.loaded[name] = module

	r.log.WithFields(logrus.Fields{
		"plugin":   name,
		"location": location,
	}).Debugf("Loaded plugin module %s v%s (ABI %s)", library, manifest.Version, manifest.ABIVersion)

	return module, nil
}

// Loaded returns a cached module by plugin name
func (r *Registry) Loaded(name string) (*Module, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	module, ok := r.loaded[name]
	return module, ok
}

// Modules returns all cached modules, sorted by name
func (r *Registry) Modules() []*Module {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]*Module, 0, len(r.loaded))
	for _, module := range r.loaded {
		result = append(result, module)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// Release drops a cached module. Callers must only release modules no
// instance refers to. Shared objects stay mapped for the process lifetime.
func (r *Registry) Release(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.loaded[name]; !ok {
		return false
	}
	delete(r.loaded, name)
	return true
}

func (r *Registry) openLocation(library, location string) (Plugin, error) {
	if strings.HasPrefix(location, BuiltinScheme) {
		return r.catalog.New(library)
	}
	if r.open == nil {
		return nil, fmt.Errorf("shared object loading is disabled")
	}
	return r.open(location)
}
