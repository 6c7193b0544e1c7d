package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestMigrate(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFile(t, filepath.Join(src, "etc", "passwd"), "root:x\n")
	writeFile(t, filepath.Join(src, ".profile"), "export PS1\n")
	if err := os.Symlink("etc/passwd", filepath.Join(src, "link")); err != nil {
		t.Fatal(err)
	}

	if err := migrate(src, dst); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Errorf("source directory still exists (err=%v)", err)
	}
	for _, f := range []string{"etc/passwd", ".profile", "link"} {
		if _, err := os.Lstat(filepath.Join(dst, f)); err != nil {
			t.Errorf("entry %s missing after migration: %v", f, err)
		}
	}
}

// When one entry cannot be moved, the source keeps everything that was not
// moved yet and is not deleted.
func TestMigrateAborts(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFile(t, filepath.Join(src, "clash", "inner"), "x\n")
	// A non-empty directory of the same name at the destination makes the
	// rename fail.
	writeFile(t, filepath.Join(dst, "clash", "other"), "y\n")

	if err := migrate(src, dst); err == nil {
		t.Fatal("expected migration to fail")
	}
	if _, err := os.Stat(src); err != nil {
		t.Errorf("source directory was deleted: %v", err)
	}
	if _, err := os.Stat(filepath.Join(src, "clash", "inner")); err != nil {
		t.Errorf("unmoved entry was deleted: %v", err)
	}
}

func TestMigrateEmpty(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	if err := migrate(src, dst); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Errorf("empty source directory not removed (err=%v)", err)
	}
}

// copyEntry is the EXDEV fallback of moveEntry; exercise it directly since
// tests cannot easily span two filesystems. A leftover partial copy from an
// interrupted run must not block it.
func TestCopyEntryReplacesPartial(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "home")
	writeFile(t, filepath.Join(src, "user", ".profile"), "export PS1\n")
	writeFile(t, filepath.Join(src, "user", "notes"), "hello\n")
	// The interrupted run copied only part of the entry.
	writeFile(t, filepath.Join(dst, "user", ".profile"), "export PS1\n")

	if err := copyEntry(src, dst); err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{"user/.profile", "user/notes"} {
		if _, err := os.Stat(filepath.Join(dst, f)); err != nil {
			t.Errorf("entry %s missing after retry: %v", f, err)
		}
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Errorf("copied source not removed (err=%v)", err)
	}
}

func TestCopyTree(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "copy")
	writeFile(t, filepath.Join(src, "bin", "sh"), "#!/bin/sh\n")
	if err := os.Chmod(filepath.Join(src, "bin", "sh"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("/bin/sh", filepath.Join(src, "sh")); err != nil {
		t.Fatal(err)
	}

	if err := copyTree(src, dst); err != nil {
		t.Fatal(err)
	}
	fi, err := os.Stat(filepath.Join(dst, "bin", "sh"))
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm() != 0755 {
		t.Errorf("mode %#o, want 0755", fi.Mode().Perm())
	}
	target, err := os.Readlink(filepath.Join(dst, "sh"))
	if err != nil {
		t.Fatal(err)
	}
	if target != "/bin/sh" {
		t.Errorf("symlink target %q, want /bin/sh", target)
	}
	// The source is untouched; deletion is moveEntry's job.
	if _, err := os.Stat(filepath.Join(src, "bin", "sh")); err != nil {
		t.Errorf("source modified: %v", err)
	}
}
