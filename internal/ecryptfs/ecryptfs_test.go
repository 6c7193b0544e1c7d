package ecryptfs

import "testing"

func TestParseSignature(t *testing.T) {
	testcases := []struct {
		out string
		sig string
	}{
		{"Inserted auth tok with sig [f5a2898e0e3db3e7] into the user session keyring\n", "f5a2898e0e3db3e7"},
		{"Passphrase: \nInserted auth tok with sig [abc123] into the user session keyring\n", "abc123"},
		{"Error: Your kernel userspace keyring is full\n", ""},
		{"", ""},
	}
	for _, tc := range testcases {
		if sig := ParseSignature(tc.out); sig != tc.sig {
			t.Errorf("ParseSignature(%q) = %q, want %q", tc.out, sig, tc.sig)
		}
	}
}

func TestParseVersion(t *testing.T) {
	testcases := []struct {
		out string
		v   int
	}{
		{"mount.ecryptfs (ecryptfs-utils) 111\n", 111},
		{"mount.ecryptfs (ecryptfs-utils) 111-3ubuntu1\n", 111},
		{"ecryptfs-utils version 83", 83},
		{"no number here", 0},
		{"", 0},
	}
	for _, tc := range testcases {
		if v := ParseVersion(tc.out); v != tc.v {
			t.Errorf("ParseVersion(%q) = %d, want %d", tc.out, v, tc.v)
		}
	}
}

func TestOptions(t *testing.T) {
	want := "ecryptfs_sig=abc123,ecryptfs_fnek_sig=abc123" +
		",ecryptfs_cipher=aes,ecryptfs_key_bytes=16" +
		",ecryptfs_enable_filename_crypto=y"
	if got := Options("abc123"); got != want {
		t.Errorf("Options: got %q, want %q", got, want)
	}
}

func TestStripDiag(t *testing.T) {
	testcases := []struct {
		in, out string
	}{
		{"mount: wrong fs type, bad option\n", "wrong fs type, bad option"},
		{"mount: foo\nmount: bar\n\n", "foo\nbar"},
		{"keyctl_search: Required key not available\n", "keyctl_search: Required key not available"},
		{"\n\n", ""},
	}
	for _, tc := range testcases {
		if got := StripDiag(tc.in); got != tc.out {
			t.Errorf("StripDiag(%q) = %q, want %q", tc.in, got, tc.out)
		}
	}
}
