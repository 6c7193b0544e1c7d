package main

import (
	"fmt"
	"os"

	"github.com/jsmint89/crouton/internal/tlog"
)

const tUsage = "" +
	"Usage: " + tlog.ProgramName + " [OPTIONS] NAME [NAME ...]\n" +
	"\n" +
	"Mounts one or more chroots, each backed by an encrypted directory.\n" +
	"The mapping is created on first use and an interactive passphrase\n" +
	"prompt protects it. Must be run as root.\n"

// helpShort is what gets displayed when passed "-h" or on syntax error.
func helpShort() {
	fmt.Fprintf(os.Stderr, "%s\nOptions:\n", tUsage)
	flagSet.PrintDefaults()
}
