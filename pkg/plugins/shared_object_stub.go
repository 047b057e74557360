//go:build !cgo || !(linux || darwin || freebsd)

package plugins

import (
	"fmt"
)

func openSharedObject(path string) (Plugin, error) {
	return nil, fmt.Errorf("shared object plugins are not supported on this platform: %s", path)
}
