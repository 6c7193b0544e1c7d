// Package chroot resolves chroot names to their storage paths, mount points
// and lifecycle state.
//
// Storage naming scheme, relative to the storage root:
//
//	name              unencrypted content, used in place
//	name.ecryptfs     encrypted mapping, no passphrase registered yet
//	name.ecryptfs:SIG encrypted mapping with registered signature SIG
package chroot

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// encSuffix marks a storage directory as an encrypted mapping.
	encSuffix = ".ecryptfs"
	// sigSep separates the marker from the registered signature.
	sigSep = ":"
)

// Target is one resolved chroot.
type Target struct {
	Name string
	// Plain is the unencrypted storage directory. Empty unless the state is
	// Unencrypted or Migrating.
	Plain string
	// Storage is the (possibly not yet existing) encrypted storage
	// directory. Empty for NotFound and Unencrypted.
	Storage string
	// MountPoint is where the decrypted view is exposed once mounted.
	MountPoint string
	State      State
}

// Resolve inspects the storage root for the given name and classifies the
// target. The directory is re-read on every call, never cached.
func Resolve(root, secure, name string, encrypt, create bool) (*Target, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	plain := filepath.Join(root, name)
	plainExists, err := isDir(plain)
	if err != nil {
		return nil, err
	}
	enc, encExists, err := findEncrypted(root, name)
	if err != nil {
		return nil, err
	}
	t := &Target{
		Name:       name,
		MountPoint: filepath.Join(secure, name),
		State: Classify(Facts{
			PlainExists:     plainExists,
			EncryptedExists: encExists,
			Encrypt:         encrypt,
			Create:          create,
		}),
	}
	switch t.State {
	case Unencrypted:
		t.Plain = plain
	case Migrating:
		t.Plain = plain
		t.Storage = enc
		if !encExists {
			t.Storage = filepath.Join(root, name+encSuffix)
		}
	case Encrypted:
		t.Storage = enc
	case Create:
		t.Storage = filepath.Join(root, name+encSuffix)
	}
	return t, nil
}

// Signature extracts the registered signature from a storage path. Empty
// means no passphrase has been registered yet.
func Signature(storage string) string {
	base := filepath.Base(storage)
	i := strings.Index(base, sigSep)
	if i < 0 {
		return ""
	}
	return base[i+len(sigSep):]
}

// WithSignature returns the storage path with the signature appended. The
// actual rename is the caller's commit point.
func WithSignature(storage, sig string) string {
	return storage + sigSep + sig
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("invalid chroot name %q", name)
	}
	if strings.ContainsAny(name, "/"+sigSep) || strings.Contains(name, encSuffix) {
		return fmt.Errorf("invalid chroot name %q", name)
	}
	return nil
}

func isDir(dir string) (bool, error) {
	fi, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !fi.IsDir() {
		return false, fmt.Errorf("%s is not a directory", dir)
	}
	return true, nil
}

// findEncrypted looks for the encrypted storage variant of "name". More than
// one match violates the single-active-storage invariant and is an error.
func findEncrypted(root, name string) (path string, ok bool, err error) {
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	marker := name + encSuffix
	var matches []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if e.Name() == marker || strings.HasPrefix(e.Name(), marker+sigSep) {
			matches = append(matches, filepath.Join(root, e.Name()))
		}
	}
	switch len(matches) {
	case 0:
		return "", false, nil
	case 1:
		return matches[0], true, nil
	}
	return "", false, fmt.Errorf("%s has %d encrypted storage directories, expected one: %v",
		name, len(matches), matches)
}
