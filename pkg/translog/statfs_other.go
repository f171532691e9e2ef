//go:build !linux

package translog

import "fmt"

// statfsFreeBytes has no portable implementation outside Linux; Meridian
// targets Linux hosts the same way the rest of this codebase does.
// Callers on other platforms must supply a Config.FreeSpace override.
func statfsFreeBytes(dir string) (uint64, error) {
	return 0, fmt.Errorf("translog: DefaultFreeSpacer is unsupported on this platform, supply Config.FreeSpace for %s", dir)
}
