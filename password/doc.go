// Package password hashes and checks account passwords.
//
// # Algorithms
//
// [Argon2] encodes argon2id hashes as PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Bcrypt] reads and writes standard $2a$/$2b$ hashes and rejects input above 72
// bytes instead of truncating it. [Migrating] combines the two so that accounts
// created under bcrypt keep verifying after argon2id becomes the primary scheme.
//
// # Policy
//
// [Policy] validates new passwords (length, character classes, optional entropy
// estimate) before they are hashed.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive hashes.
//   - Import any other webster package.
//   - Log plaintext passwords.
package password
