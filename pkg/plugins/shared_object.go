//go:build cgo && (linux || darwin || freebsd)

package plugins

import (
	"fmt"
	"plugin"
)

// openSharedObject opens a module built with -buildmode=plugin. The module
// exports SymbolName as a Plugin value or a func() Plugin.
func openSharedObject(path string) (Plugin, error) {
	so, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}

	sym, err := so.Lookup(SymbolName)
	if err != nil {
		return nil, err
	}

	switch v := sym.(type) {
	case *Plugin:
		return *v, nil
	case func() Plugin:
		return v(), nil
	case Plugin:
		return v, nil
	default:
		return nil, fmt.Errorf("symbol %s has unsupported type %T", SymbolName, sym)
	}
}
