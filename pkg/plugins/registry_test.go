package plugins

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_Register(t *testing.T) {
	c := NewCatalog()

	require.NoError(t, c.Register("magic", func() Plugin { return hooklessPlugin{} }))
	assert.True(t, c.Has("magic"))
	assert.Equal(t, 1, c.Count())

	err := c.Register("magic", func() Plugin { return hooklessPlugin{} })
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	assert.Error(t, c.Register("", func() Plugin { return hooklessPlugin{} }))
	assert.Error(t, c.Register("nil", nil))
}

func TestCatalog_New(t *testing.T) {
	c := NewCatalog()
	created := 0
	require.NoError(t, c.Register("magic", func() Plugin {
		created++
		return hooklessPlugin{}
	}))

	p, err := c.New("magic")
	require.NoError(t, err)
	assert.NotNil(t, p)
	assert.Equal(t, 1, created)

	_, err = c.New("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalog_Unregister(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.Register("magic", func() Plugin { return hooklessPlugin{} }))

	require.NoError(t, c.Unregister("magic"))
	assert.False(t, c.Has("magic"))
	assert.Error(t, c.Unregister("magic"))
}

func TestCatalog_List(t *testing.T) {
	c := NewCatalog()
	for _, name := range []string{"magic", "example", "logger"} {
		require.NoError(t, c.Register(name, func() Plugin { return hooklessPlugin{} }))
	}

	assert.Equal(t, []string{"example", "logger", "magic"}, c.List())
}

func TestCatalog_ConcurrentAccess(t *testing.T) {
	c := NewCatalog()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = c.Register(fmt.Sprintf("p%d", i), func() Plugin { return hooklessPlugin{} })
		}(i)
		go func(i int) {
			defer wg.Done()
			_ = c.Has(fmt.Sprintf("p%d", i))
			_ = c.List()
		}(i)
	}

	wg.Wait()
	assert.Equal(t, 50, c.Count())
}
