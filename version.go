package main

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strconv"

	"github.com/jsmint89/crouton/internal/tlog"
)

const gitVersionNotSet = "[GitVersion not set - please compile using make]"

// GitVersion is the version according to git, set at build time.
var GitVersion = gitVersionNotSet

func init() {
	versionFromBuildInfo()
}

// printVersion prints a version string like this:
// mount-chroot v1.2-7-g1234abc; go1.21.5 linux/amd64
func printVersion() {
	fmt.Printf("%s %s; %s %s/%s\n",
		tlog.ProgramName, GitVersion, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// versionFromBuildInfo tries to get some information out of the information
// baked in by the Go compiler. Does nothing when the version was set at
// build time.
func versionFromBuildInfo() {
	if GitVersion != gitVersionNotSet {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		tlog.Debug.Println("versionFromBuildInfo: ReadBuildInfo() failed")
		return
	}
	var vcsRevision string
	var vcsModified bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			vcsRevision = s.Value
		case "vcs.modified":
			vcsModified, _ = strconv.ParseBool(s.Value)
		}
	}
	GitVersion = info.Main.Version
	if GitVersion == "(devel)" && vcsRevision != "" {
		GitVersion = fmt.Sprintf("vcs.revision=%s", vcsRevision)
	}
	if vcsModified {
		GitVersion += "-dirty"
	}
}
