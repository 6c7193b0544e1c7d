package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/jsmint89/crouton/internal/tlog"
)

// migrate moves everything from the old unencrypted directory into the
// mounted encrypted view, then removes the emptied directory. The first
// failed entry aborts the migration with the remaining entries untouched;
// the source is never deleted while it still holds anything.
func migrate(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("migration: %w", err)
	}
	tlog.Info.Printf("Moving %d entries into the encrypted chroot, this may take a while.", len(entries))
	for i, e := range entries {
		tlog.Info.Printf("  (%d/%d) %s", i+1, len(entries), e.Name())
		if err := moveEntry(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
			return fmt.Errorf("migration aborted at %q, old directory kept: %w", e.Name(), err)
		}
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("migration: cannot remove emptied directory: %w", err)
	}
	tlog.Info.Printf("Migration done, %s removed.", src)
	return nil
}

// moveEntry renames src to dst. The encrypted view is a different
// filesystem, so the usual outcome is EXDEV and a copy-then-delete. The
// source entry is only deleted after it was copied completely.
func moveEntry(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var lerr *os.LinkError
	if !errors.As(err, &lerr) || lerr.Err != unix.EXDEV {
		return err
	}
	return copyEntry(src, dst)
}

// copyEntry is the cross-filesystem fallback. An interrupted earlier run may
// have left a partial copy at dst; the source is still complete, so throw the
// partial copy away and start over.
func copyEntry(src, dst string) error {
	if err := os.RemoveAll(dst); err != nil {
		return err
	}
	if err := copyTree(src, dst); err != nil {
		return err
	}
	return os.RemoveAll(src)
}

// copyTree copies src to dst recursively, preserving mode, ownership and
// symlink targets. dst must not exist yet.
func copyTree(src, dst string) error {
	fi, err := os.Lstat(src)
	if err != nil {
		return err
	}
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return fmt.Errorf("no stat information for %s", src)
	}
	switch {
	case fi.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}
		if err := os.Symlink(target, dst); err != nil {
			return err
		}
		return os.Lchown(dst, int(st.Uid), int(st.Gid))
	case fi.IsDir():
		if err := os.Mkdir(dst, fi.Mode().Perm()); err != nil {
			return err
		}
		entries, err := os.ReadDir(src)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := copyTree(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
				return err
			}
		}
		return fixMeta(dst, fi, st)
	case fi.Mode().IsRegular():
		if err := copyFile(src, dst, fi.Mode().Perm()); err != nil {
			return err
		}
		return fixMeta(dst, fi, st)
	case fi.Mode()&(os.ModeDevice|os.ModeNamedPipe|os.ModeSocket) != 0:
		if err := unix.Mknod(dst, st.Mode, int(st.Rdev)); err != nil {
			return &os.PathError{Op: "mknod", Path: dst, Err: err}
		}
		return fixMeta(dst, fi, st)
	}
	return fmt.Errorf("cannot copy %s: unsupported file type %v", src, fi.Mode())
}

// fixMeta restores ownership and permission bits, setuid/setgid/sticky
// included. Chown strips setuid bits, so the chmod must come second.
func fixMeta(path string, fi os.FileInfo, st *syscall.Stat_t) error {
	if err := os.Chown(path, int(st.Uid), int(st.Gid)); err != nil {
		return err
	}
	mode := fi.Mode().Perm() | fi.Mode()&(os.ModeSetuid|os.ModeSetgid|os.ModeSticky)
	return os.Chmod(path, mode)
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
