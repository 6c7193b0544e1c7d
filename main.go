package main

import (
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/crypto/ssh/terminal"
	"golang.org/x/sys/unix"

	"github.com/jsmint89/crouton/internal/ecryptfs"
	"github.com/jsmint89/crouton/internal/mounttab"
	"github.com/jsmint89/crouton/internal/readpassword"
	"github.com/jsmint89/crouton/internal/tlog"
)

func main() {
	os.Exit(run(os.Args))
}

func run(osArgs []string) int {
	args := parseCliOpts(osArgs)
	if args.version {
		printVersion()
		return 0
	}
	if args.debug {
		tlog.Debug.Enabled = true
	}
	// Print mode replaces the human-readable diagnostics.
	if args.quiet || args.print {
		tlog.Info.Enabled = false
	}
	if len(args.targets) == 0 {
		tlog.Fatal.Printf("no chroot name given")
		helpShort()
		return 1
	}
	if unix.Geteuid() != 0 {
		tlog.Fatal.Printf("%s must be run as root", tlog.ProgramName)
		return 1
	}
	restoreEcho := guardTerminal(int(os.Stdin.Fd()))
	defer restoreEcho()

	m := &mounter{
		drv:              ecryptfs.New(),
		mtab:             liveMountTable{},
		chroots:          args.chroots,
		secure:           secureDir,
		uid:              0,
		gid:              0,
		readPassphrase:   readpassword.Twice,
		shadowFile:       "/etc/shadow",
		setupPasswordCmd: "chromeos-setdevpasswd",
		interactive:      terminal.IsTerminal(int(os.Stdin.Fd())),
		pipeMin:          args.pipemin,
		encrypt:          args.encrypt,
		create:           args.create,
		print:            args.print,
	}
	// One chroot failing must not keep the others from being processed.
	ret := 0
	for _, name := range args.targets {
		if err := m.mountOne(name); err != nil {
			tlog.Warn.Printf("%s: %v", name, err)
			ret = 1
		}
	}
	return ret
}

// Hooks around the terminal and process-exit syscalls so guardTerminal and
// watchSignals can run under test.
var (
	termIsTerminal = terminal.IsTerminal
	termGetState   = terminal.GetState
	termRestore    = terminal.Restore
	termExit       = os.Exit
)

// guardTerminal captures the terminal state before any passphrase prompt can
// disable echo, and makes sure it is restored however we exit: the returned
// func handles the normal path, the signal watcher covers interrupt and
// hang-up.
func guardTerminal(fd int) func() {
	if !termIsTerminal(fd) {
		return func() {}
	}
	state, err := termGetState(fd)
	if err != nil {
		tlog.Warn.Printf("cannot save terminal state: %v", err)
		return func() {}
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	go watchSignals(ch, fd, state)
	return func() {
		termRestore(fd, state)
	}
}

// watchSignals restores the terminal before dying from a signal.
func watchSignals(ch <-chan os.Signal, fd int, state *terminal.State) {
	s := <-ch
	termRestore(fd, state)
	tlog.Warn.Printf("caught %v, exiting", s)
	termExit(1)
}

// liveMountTable queries /proc/self/mountinfo.
type liveMountTable struct{}

func (liveMountTable) Mounted(source string) (bool, error) {
	return mounttab.Mounted(source)
}
