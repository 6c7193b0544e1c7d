// Package ecryptfs drives the external eCryptfs userspace tools. It does not
// implement any cryptography itself; it registers passphrases and mounts
// mappings by calling out to ecryptfs-utils.
package ecryptfs

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// Driver holds the command names of the external tools. They are fields so
// tests can point them at fakes.
type Driver struct {
	// AddPassphraseCmd registers a passphrase in the kernel keyring and
	// prints the resulting signature.
	AddPassphraseCmd string
	// MountCmd performs the actual mount.
	MountCmd string
	// HelperCmd is the mount helper, only queried for its version.
	HelperCmd string
	// FSType is passed to MountCmd via -t.
	FSType string
}

// New returns a Driver using the standard ecryptfs-utils commands.
func New() *Driver {
	return &Driver{
		AddPassphraseCmd: "ecryptfs-add-passphrase",
		MountCmd:         "mount",
		HelperCmd:        "mount.ecryptfs",
		FSType:           "ecryptfs",
	}
}

// AddPassphrase registers the passphrase with the driver and returns the
// signature token it reports.
func (d *Driver) AddPassphrase(passphrase string) (string, error) {
	cmd := exec.Command(d.AddPassphraseCmd)
	cmd.Stdin = strings.NewReader(passphrase + "\n")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s: %v", d.AddPassphraseCmd, err)
	}
	sig := ParseSignature(string(out))
	if sig == "" {
		return "", fmt.Errorf("%s did not return a signature", d.AddPassphraseCmd)
	}
	return sig, nil
}

// Mount mounts the mapping at source onto target. When passphrase is
// non-empty it is piped to the mount command, otherwise stdin stays attached
// to our own stdin so the driver can prompt on the terminal. The combined
// output is returned as diagnostics in both cases.
//
// The returned error reflects the command's exit status, which some driver
// versions get wrong. Callers must verify the mount against the mount table
// instead of trusting it.
func (d *Driver) Mount(source, target, options, passphrase string) (string, error) {
	cmd := exec.Command(d.MountCmd, "-t", d.FSType, "-o", options, source, target)
	var diag bytes.Buffer
	if passphrase != "" {
		cmd.Stdin = strings.NewReader(passphrase + "\n")
		cmd.Stdout = &diag
		cmd.Stderr = &diag
	} else {
		cmd.Stdin = os.Stdin
		cmd.Stdout = io.MultiWriter(os.Stdout, &diag)
		cmd.Stderr = io.MultiWriter(os.Stderr, &diag)
	}
	err := cmd.Run()
	return diag.String(), err
}

// Version returns the numeric ecryptfs-utils version of the mount helper.
func (d *Driver) Version() (int, error) {
	out, err := exec.Command(d.HelperCmd, "--version").CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("%s --version: %v", d.HelperCmd, err)
	}
	v := ParseVersion(string(out))
	if v == 0 {
		return 0, fmt.Errorf("cannot find a version number in %q", strings.TrimSpace(string(out)))
	}
	return v, nil
}

// Options builds the mount option string for a registered signature. The
// signature is used for both content and filename encryption.
func Options(sig string) string {
	return fmt.Sprintf("ecryptfs_sig=%s,ecryptfs_fnek_sig=%s"+
		",ecryptfs_cipher=aes,ecryptfs_key_bytes=16"+
		",ecryptfs_enable_filename_crypto=y", sig, sig)
}

// sigRe matches the bracketed signature token in ecryptfs-add-passphrase
// output, e.g. "Inserted auth tok with sig [f5a2898e0e3db3e7] into ...".
var sigRe = regexp.MustCompile(`\[([0-9a-fA-F]+)\]`)

// ParseSignature extracts the signature token from driver output. Returns ""
// when there is none.
func ParseSignature(out string) string {
	m := sigRe.FindStringSubmatch(out)
	if m == nil {
		return ""
	}
	return m[1]
}

// ParseVersion extracts the last integer from a --version output like
// "mount.ecryptfs (ecryptfs-utils) 111". Returns 0 when there is none.
func ParseVersion(out string) int {
	fields := strings.Fields(out)
	for i := len(fields) - 1; i >= 0; i-- {
		// Take the leading digits so "111-3ubuntu1" still parses.
		f := fields[i]
		j := 0
		for j < len(f) && f[j] >= '0' && f[j] <= '9' {
			j++
		}
		if j == 0 {
			continue
		}
		v, err := strconv.Atoi(f[:j])
		if err == nil && v > 0 {
			return v
		}
	}
	return 0
}

// diagPrefix is noise the mount command puts in front of its actual error
// messages.
const diagPrefix = "mount: "

// StripDiag cleans driver diagnostics for the user: the uninteresting
// "mount: " prefix is removed from each line and blank lines are dropped.
func StripDiag(diag string) string {
	var lines []string
	for _, line := range strings.Split(diag, "\n") {
		line = strings.TrimPrefix(line, diagPrefix)
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
