package plugins

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/harness/pkg/version"
)

type manifestPlugin struct {
	manifest *Manifest
}

func (p *manifestPlugin) Manifest() *Manifest { return p.manifest }

func newTestCatalog(t *testing.T, manifests map[string]*Manifest) *Catalog {
	t.Helper()
	c := NewCatalog()
	for name, m := range manifests {
		m := m
		require.NoError(t, c.Register(name, func() Plugin { return &manifestPlugin{manifest: m} }))
	}
	return c
}

func goodManifest() *Manifest {
	return &Manifest{ABIVersion: ABIVersion, Version: version.New(1, 0, 0)}
}

func TestNewRegistry(t *testing.T) {
	dirs := []string{"/tmp/plugins"}
	r := NewRegistry(dirs, nil)

	assert.NotNil(t, r)
	assert.Equal(t, dirs, r.SearchPath())
	assert.NotNil(t, r.log)
	assert.Same(t, DefaultCatalog, r.catalog)
	assert.Empty(t, r.Modules())
}

func TestRegistry_ResolveBuiltin(t *testing.T) {
	c := newTestCatalog(t, map[string]*Manifest{"magic": goodManifest()})
	r := NewRegistry(nil, logrus.New(), WithCatalog(c))

	location, err := r.Resolve("magic")
	require.NoError(t, err)
	assert.Equal(t, "builtin:magic", location)
}

func TestRegistry_ResolveSearchPath(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(second, "magic.so"), nil, 0644))
	require.NoError(t, os.Mkdir(filepath.Join(first, "magic.so"), 0755))

	r := NewRegistry([]string{first, second}, nil, WithCatalog(NewCatalog()))

	location, err := r.Resolve("magic")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(second, "magic.so"), location)

	// cached: still resolves after the file is gone
	require.NoError(t, os.Remove(location))
	cached, err := r.Resolve("magic")
	require.NoError(t, err)
	assert.Equal(t, location, cached)
}

func TestRegistry_ResolveNotFound(t *testing.T) {
	r := NewRegistry([]string{t.TempDir()}, nil, WithCatalog(NewCatalog()))

	_, err := r.Resolve("nothing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Resolve("../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_LoadIsCached(t *testing.T) {
	created := 0
	c := NewCatalog()
	require.NoError(t, c.Register("magic", func() Plugin {
		created++
		return &manifestPlugin{manifest: goodManifest()}
	}))
	r := NewRegistry(nil, nil, WithCatalog(c))

	first, err := r.Load("magic", "magic")
	require.NoError(t, err)
	second, err := r.Load("magic", "magic")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, created)
	assert.Equal(t, "builtin:magic", first.Location)

	loaded, ok := r.Loaded("magic")
	assert.True(t, ok)
	assert.Same(t, first, loaded)
}

func TestRegistry_LoadLibraryOption(t *testing.T) {
	c := newTestCatalog(t, map[string]*Manifest{"magic": goodManifest()})
	r := NewRegistry(nil, nil, WithCatalog(c))

	module, err := r.Load("wizard", "magic")
	require.NoError(t, err)
	assert.Equal(t, "wizard", module.Name)
	assert.Equal(t, "magic", module.Library)
}

func TestRegistry_AbiMismatchNotRetained(t *testing.T) {
	bad := goodManifest()
	bad.ABIVersion = 0x0200
	c := newTestCatalog(t, map[string]*Manifest{"future": bad})
	r := NewRegistry(nil, nil, WithCatalog(c))

	_, err := r.Load("future", "future")
	assert.ErrorIs(t, err, ErrAbiMismatch)

	_, ok := r.Loaded("future")
	assert.False(t, ok)
	assert.Empty(t, r.Modules())
}

func TestRegistry_NilManifest(t *testing.T) {
	c := newTestCatalog(t, map[string]*Manifest{"empty": nil})
	r := NewRegistry(nil, nil, WithCatalog(c))

	_, err := r.Load("empty", "empty")
	assert.ErrorIs(t, err, ErrBadManifest)
}

func TestRegistry_SharedObject(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "remote.so")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	var opened []string
	opener := func(p string) (Plugin, error) {
		opened = append(opened, p)
		return &manifestPlugin{manifest: goodManifest()}, nil
	}
	r := NewRegistry([]string{dir}, nil, WithCatalog(NewCatalog()), WithOpener(opener))

	module, err := r.Load("remote", "remote")
	require.NoError(t, err)
	assert.Equal(t, path, module.Location)
	assert.Equal(t, []string{path}, opened)
}

func TestRegistry_SharedObjectOpenFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.so"), nil, 0644))

	opener := func(string) (Plugin, error) { return nil, errors.New("invalid ELF header") }
	r := NewRegistry([]string{dir}, nil, WithCatalog(NewCatalog()), WithOpener(opener))

	_, err := r.Load("broken", "broken")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "invalid ELF header")
}

func TestRegistry_Release(t *testing.T) {
	c := newTestCatalog(t, map[string]*Manifest{"magic": goodManifest(), "example": goodManifest()})
	r := NewRegistry(nil, nil, WithCatalog(c))

	_, err := r.Load("magic", "magic")
	require.NoError(t, err)
	_, err = r.Load("example", "example")
	require.NoError(t, err)

	modules := r.Modules()
	require.Len(t, modules, 2)
	assert.Equal(t, "example", modules[0].Name)

	assert.True(t, r.Release("magic"))
	assert.False(t, r.Release("magic"))
	_, ok := r.Loaded("magic")
	assert.False(t, ok)
}
