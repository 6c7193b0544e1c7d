package main

import (
	"flag"
	"os"

	"github.com/jsmint89/crouton/internal/tlog"
)

const (
	// defaultChroots is where chroot storage lives unless -c says otherwise.
	defaultChroots = "/mnt/stateful_partition/crouton/chroots"
	// secureDir is the root-only directory the decrypted views are exposed
	// under. Each chroot gets secureDir/NAME as its mount point.
	secureDir = "/var/run/crouton/mnt"
	// defaultPipeMin is the first ecryptfs-utils version that reliably
	// accepts a piped passphrase for a signature registered in the same
	// run. Older versions must re-prompt on the terminal themselves.
	// Overridable with -pipemin since the exact threshold is a policy of
	// the installed driver, not of this tool.
	defaultPipeMin = 104
)

// argContainer stores the parsed CLI options and arguments
type argContainer struct {
	chroots                                       string
	encrypt, create, print, quiet, debug, version bool
	pipemin                                       int
	// targets are the chroot names, in command-line order.
	targets []string
}

var flagSet *flag.FlagSet

// parseCliOpts - parse command line options (i.e. arguments that start with "-")
func parseCliOpts(osArgs []string) (args argContainer) {
	flagSet = flag.NewFlagSet(tlog.ProgramName, flag.ContinueOnError)
	flagSet.Usage = helpShort
	flagSet.StringVar(&args.chroots, "c", defaultChroots, "directory the chroots are stored in")
	flagSet.BoolVar(&args.encrypt, "e", false, "encrypt the chroot on this mount if it is not encrypted yet")
	flagSet.BoolVar(&args.create, "n", false, "create the chroot storage if it does not exist")
	flagSet.BoolVar(&args.print, "p", false, "print the resolved mount point for each chroot instead of diagnostics")
	flagSet.BoolVar(&args.quiet, "q", false, "silence informational messages")
	flagSet.BoolVar(&args.debug, "d", false, "enable debug output")
	flagSet.BoolVar(&args.version, "version", false, "print version and exit")
	flagSet.IntVar(&args.pipemin, "pipemin", defaultPipeMin,
		"minimum driver version trusted to accept a piped passphrase for a just-registered signature")
	if err := flagSet.Parse(osArgs[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		// flag has already printed the problem and the usage text.
		os.Exit(1)
	}
	args.targets = flagSet.Args()
	return args
}
