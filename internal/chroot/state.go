package chroot

// State is the lifecycle state of a chroot's backing storage.
type State int

const (
	// NotFound - neither storage variant exists and creation was not
	// requested.
	NotFound State = iota
	// Unencrypted - only the plain directory exists and encryption was not
	// requested. The chroot is used in place, nothing to mount.
	Unencrypted
	// Encrypted - an encrypted mapping exists and is the only storage.
	Encrypted
	// Migrating - a plain directory must be moved into an encrypted mapping.
	// The mapping may not exist yet (first "-e" mount) or may be left over
	// from an interrupted earlier migration.
	Migrating
	// Create - no storage exists, a fresh encrypted mapping is synthesized.
	Create
)

func (s State) String() string {
	switch s {
	case NotFound:
		return "NotFound"
	case Unencrypted:
		return "Unencrypted"
	case Encrypted:
		return "Encrypted"
	case Migrating:
		return "Migrating"
	case Create:
		return "Create"
	}
	return "INVALID"
}

// Facts are the filesystem observations and flags that Classify decides on.
type Facts struct {
	// PlainExists - a plain (unencrypted) storage directory exists.
	PlainExists bool
	// EncryptedExists - an encrypted mapping directory exists, with or
	// without a registered signature.
	EncryptedExists bool
	// Encrypt - the user passed "-e".
	Encrypt bool
	// Create - the user passed "-n".
	Create bool
}

// Classify maps existence checks and flags to a lifecycle state. It is a pure
// function; whether the mapping is currently attached at its mount point is
// decided separately against the live mount table.
func Classify(f Facts) State {
	switch {
	case f.PlainExists && (f.EncryptedExists || f.Encrypt):
		return Migrating
	case f.PlainExists:
		return Unencrypted
	case f.EncryptedExists:
		return Encrypted
	case f.Create:
		return Create
	}
	return NotFound
}
