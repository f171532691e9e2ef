//go:build linux

package translog

import "syscall"

// statfsFreeBytes reports free bytes on the filesystem backing dir.
func statfsFreeBytes(dir string) (uint64, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(dir, &st); err != nil {
		return 0, err
	}
	return uint64(st.Bavail) * uint64(st.Bsize), nil
}
