// Package password hashes and verifies user passwords and enforces the
// length policy for new ones.
//
// [Argon2] is the default and encodes hashes as PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Bcrypt] reads and writes standard $2a$/$2b$ hashes, optionally with a
// SHA-256 pre-hash for inputs longer than 72 bytes. [Multi] verifies either
// format and always hashes with Argon2id; NeedsUpgrade tells the caller to
// re-hash after the next successful signin.
//
// Every hasher applies a [Policy] (8 to 128 characters by default) to Hash.
// Policy errors match [ErrPolicy]. Verify only bounds input size, so a
// tightened policy never locks out existing users.
//
// This package never stores passwords and never logs them.
package password
