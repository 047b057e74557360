package plugins

import (
	"fmt"
	"sort"
	"sync"
)

// Factory creates a plugin module
type Factory func() Plugin

// Catalog holds compile-time registered plugin modules by library name
type Catalog struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{factories: make(map[string]Factory)}
}

// DefaultCatalog is the package-level catalog used by Register
var DefaultCatalog = NewCatalog()

// Register adds a module factory to the catalog
func (c *Catalog) Register(library string, factory Factory) error {
	if library == "" {
		return fmt.Errorf("cannot register plugin without a library name")
	}
	if factory == nil {
		return fmt.Errorf("cannot register nil factory for %s", library)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.factories[library]; exists {
		return fmt.Errorf("plugin already registered: %s", library)
	}

	c.factories[library] = factory
	return nil
}

// Unregister removes a module factory from the catalog
func (c *Catalog) Unregister(library string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.factories[library]; !exists {
		return fmt.Errorf("plugin not found: %s", library)
	}

	delete(c.factories, library)
	return nil
}

// Has checks if a module is registered
func (c *Catalog) Has(library string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, exists := c.factories[library]
	return exists
}

// New creates a fresh module from its factory
func (c *Catalog) New(library string) (Plugin, error) {
	c.mu.RLock()
	factory, exists := c.factories[library]
	c.mu.RUnlock()

	if !exists {
		return nil, Errorf(KindNotFound, library, "no such builtin module")
	}
	return factory(), nil
}

// List returns the registered library names, sorted
func (c *Catalog) List() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]string, 0, len(c.factories))
	for library := range c.factories {
		result = append(result, library)
	}
	sort.Strings(result)
	return result
}

// Count returns the number of registered modules
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.factories)
}

// Register adds a module factory to DefaultCatalog
func Register(library string, factory Factory) error {
	return DefaultCatalog.Register(library, factory)
}

// MustRegister is Register for package init functions
func MustRegister(library string, factory Factory) {
	if err := Register(library, factory); err != nil {
		panic(err)
	}
}
