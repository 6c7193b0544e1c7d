// Package readpassword asks the user for a new encryption passphrase on the
// terminal.
package readpassword

import (
	"bytes"
	"fmt"
	"os"

	"golang.org/x/crypto/ssh/terminal"

	"github.com/jsmint89/crouton/internal/tlog"
)

// readPassword reads one line with terminal echo disabled. Swapped out by
// tests.
var readPassword = func(fd int) ([]byte, error) {
	return terminal.ReadPassword(fd)
}

// Twice prompts for a new passphrase until the user enters a non-empty one
// and confirms it identically. Empty entries and mismatched confirmations
// re-prompt, read errors abort.
func Twice() (string, error) {
	fd := int(os.Stdin.Fd())
	for {
		p1, err := prompt(fd, "Choose an encryption passphrase: ")
		if err != nil {
			return "", err
		}
		if len(p1) == 0 {
			tlog.Warn.Println("Passphrase must not be empty")
			continue
		}
		p2, err := prompt(fd, "Please confirm: ")
		if err != nil {
			return "", err
		}
		if !bytes.Equal(p1, p2) {
			tlog.Warn.Println("Passphrases do not match, try again")
			continue
		}
		return string(p1), nil
	}
}

func prompt(fd int, msg string) ([]byte, error) {
	fmt.Fprint(os.Stderr, msg)
	p, err := readPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("could not read passphrase: %v", err)
	}
	return p, nil
}
