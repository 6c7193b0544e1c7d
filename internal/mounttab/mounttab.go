// Package mounttab answers "is this source currently mounted" from the live
// mount table. The table is the single source of truth and is re-read on
// every query; exit codes of mount commands are never trusted instead.
package mounttab

import (
	"io"
	"os"

	"github.com/moby/sys/mountinfo"
)

const mountinfoPath = "/proc/self/mountinfo"

// Mounted reports whether an entry whose mount source equals source exists
// in the mount table.
func Mounted(source string) (bool, error) {
	f, err := os.Open(mountinfoPath)
	if err != nil {
		return false, err
	}
	defer f.Close()
	return mountedIn(f, source)
}

func mountedIn(r io.Reader, source string) (bool, error) {
	mounts, err := mountinfo.GetMountsFromReader(r, func(m *mountinfo.Info) (skip, stop bool) {
		if m.Source != source {
			return true, false
		}
		return false, true
	})
	if err != nil {
		return false, err
	}
	return len(mounts) > 0, nil
}
