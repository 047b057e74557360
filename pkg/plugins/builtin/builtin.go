// Package builtin registers the logger and keepalive plugins in
// plugins.DefaultCatalog.
package builtin

import (
	"github.com/platinummonkey/harness/pkg/plugins"
)

func init() {
	plugins.MustRegister("logger", func() plugins.Plugin { return &Logger{} })
	plugins.MustRegister("keepalive", func() plugins.Plugin { return &Keepalive{} })
}

// Register adds the builtin plugins to a catalog
func Register(c *plugins.Catalog) error {
	if err := c.Register("logger", func() plugins.Plugin { return &Logger{} }); err != nil {
		return err
	}
	return c.Register("keepalive", func() plugins.Plugin { return &Keepalive{} })
}
