package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/jsmint89/crouton/internal/chroot"
	"github.com/jsmint89/crouton/internal/ecryptfs"
	"github.com/jsmint89/crouton/internal/tlog"
)

// driver is the external encrypted-filesystem tooling. See internal/ecryptfs
// for the real one.
type driver interface {
	AddPassphrase(passphrase string) (sig string, err error)
	Mount(source, target, options, passphrase string) (diag string, err error)
	Version() (int, error)
}

// mountTable answers "is this source currently mounted". Queried fresh
// before and after every mount attempt.
type mountTable interface {
	Mounted(source string) (bool, error)
}

// mounter processes one chroot at a time, strictly sequentially: mounting
// and migration mutate privileged filesystem state and talk to the terminal,
// neither of which may interleave.
type mounter struct {
	drv  driver
	mtab mountTable
	// chroots is the storage root, secure the mount point parent.
	chroots, secure string
	// uid/gid own the secure directory and fresh storage. Root in
	// production.
	uid, gid         int
	readPassphrase   func() (string, error)
	shadowFile       string
	setupPasswordCmd string
	// interactive is true when stdin is a terminal. Without one we cannot
	// ask for a passphrase, so targets that are not mounted yet fail.
	interactive            bool
	pipeMin                int
	encrypt, create, print bool
}

// mountOne takes the chroot through classify -> ensure mount -> migrate.
func (m *mounter) mountOne(name string) error {
	t, err := chroot.Resolve(m.chroots, m.secure, name, m.encrypt, m.create)
	if err != nil {
		return err
	}
	tlog.Debug.Printf("%s: %v plain=%q storage=%q", name, t.State, t.Plain, t.Storage)
	switch t.State {
	case chroot.NotFound:
		if m.print {
			// Null placeholder so callers can match output lines to names.
			fmt.Println()
		}
		return fmt.Errorf("chroot not found in %s (use -n to create it)", m.chroots)
	case chroot.Unencrypted:
		// Informational only, the chroot is usable where it is.
		tlog.Info.Printf("%s is not encrypted; pass -e to encrypt it on mount", name)
		if m.print {
			fmt.Println(t.Plain)
		}
		return nil
	}
	if err := m.ensureMounted(t); err != nil {
		return err
	}
	if t.State == chroot.Migrating {
		if err := migrate(t.Plain, t.MountPoint); err != nil {
			return err
		}
	}
	if m.print {
		fmt.Println(t.MountPoint)
	}
	return nil
}

// ensureMounted gets the encrypted mapping attached at its mount point,
// registering a passphrase first if the mapping has no signature yet.
func (m *mounter) ensureMounted(t *chroot.Target) error {
	mounted, err := m.mtab.Mounted(t.Storage)
	if err != nil {
		return fmt.Errorf("mount table: %w", err)
	}
	if mounted {
		tlog.Debug.Printf("%s is already mounted at %s", t.Storage, t.MountPoint)
		return nil
	}
	if !m.interactive {
		return fmt.Errorf("refusing to mount: standard input is not a terminal, cannot ask for a passphrase")
	}
	if err := m.ensureRootPassword(); err != nil {
		return err
	}
	if err := m.prepareMountPoint(t.MountPoint); err != nil {
		return err
	}

	sig := chroot.Signature(t.Storage)
	passphrase := ""
	if sig == "" {
		// No passphrase registered yet. Set up the mapping: storage dir,
		// passphrase prompt, signature registration, rename commit.
		if err := m.makeStorage(t.Storage); err != nil {
			return err
		}
		pw, err := m.readPassphrase()
		if err != nil {
			return err
		}
		sig, err = m.drv.AddPassphrase(pw)
		if err != nil {
			return fmt.Errorf("passphrase registration failed: %w", err)
		}
		newStorage := chroot.WithSignature(t.Storage, sig)
		if newStorage == t.Storage {
			return fmt.Errorf("signature %q leaves the storage path unchanged", sig)
		}
		// Atomic rename is the commit point: either the storage carries the
		// signature afterwards or nothing changed.
		if err := os.Rename(t.Storage, newStorage); err != nil {
			return fmt.Errorf("cannot commit signature: %w", err)
		}
		t.Storage = newStorage
		passphrase = m.pipedPassphrase(pw)
	}

	diag, mountErr := m.drv.Mount(t.Storage, t.MountPoint, ecryptfs.Options(sig), passphrase)
	// The driver's exit status is unreliable, only the mount table counts.
	mounted, err = m.mtab.Mounted(t.Storage)
	if err != nil {
		return fmt.Errorf("mount table: %w", err)
	}
	if !mounted {
		if d := ecryptfs.StripDiag(diag); d != "" {
			tlog.Warn.Printf("driver said:\n%s", d)
		}
		if mountErr != nil {
			return fmt.Errorf("mounting %s failed: %w", t.Storage, mountErr)
		}
		return fmt.Errorf("mounting %s failed", t.Storage)
	}
	tlog.Info.Printf("%s%s mounted at %s%s", tlog.ColorGreen, t.Name, t.MountPoint, tlog.ColorReset)
	return nil
}

// pipedPassphrase decides how the just-registered passphrase reaches the
// mount command. Driver versions below pipeMin garble a piped passphrase for
// a mapping created in the same run, so there we return "" and the driver
// prompts on the terminal itself.
func (m *mounter) pipedPassphrase(pw string) string {
	ver, err := m.drv.Version()
	if err != nil {
		tlog.Warn.Printf("cannot determine driver version: %v", err)
		ver = 0
	}
	if ver < m.pipeMin {
		tlog.Debug.Printf("driver version %d < %d, not piping the passphrase", ver, m.pipeMin)
		tlog.Info.Printf("Please enter the passphrase again when the driver asks for it.")
		return ""
	}
	return pw
}

// prepareMountPoint makes the mount point and its parent exist, owned by the
// superuser and traversable by nobody else. Re-applied even when the
// directories survived an earlier partial run.
func (m *mounter) prepareMountPoint(mountPoint string) error {
	for _, dir := range []string{filepath.Dir(mountPoint), mountPoint} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
		if err := os.Chown(dir, m.uid, m.gid); err != nil {
			return fmt.Errorf("chown %s: %w", dir, err)
		}
		if err := os.Chmod(dir, 0700); err != nil {
			return fmt.Errorf("chmod %s: %w", dir, err)
		}
	}
	return nil
}

func (m *mounter) makeStorage(storage string) error {
	if err := os.MkdirAll(storage, 0700); err != nil {
		return err
	}
	return os.Chown(storage, m.uid, m.gid)
}

// ensureRootPassword runs the password-setup helper when the system has no
// root password yet. Passphrase entry happens on a root-owned terminal, so a
// passwordless root would defeat the encryption.
func (m *mounter) ensureRootPassword() error {
	ok, err := hasRootPassword(m.shadowFile)
	if err != nil {
		return fmt.Errorf("cannot check for a root password: %w", err)
	}
	if ok {
		return nil
	}
	tlog.Info.Printf("No root password is set, setting one up first.")
	cmd := exec.Command(m.setupPasswordCmd)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", m.setupPasswordCmd, err)
	}
	return nil
}

func hasRootPassword(shadowFile string) (bool, error) {
	data, err := os.ReadFile(shadowFile)
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Split(line, ":")
		if len(fields) < 2 || fields[0] != "root" {
			continue
		}
		pw := fields[1]
		// "*" and "!"-prefixed hash fields mean the account is locked:
		// no password will ever match, same as an empty field.
		return pw != "" && pw != "*" && !strings.HasPrefix(pw, "!"), nil
	}
	return false, nil
}
