// Package password hashes and verifies account credentials.
//
// # Output format
//
// New digests are argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<key>
//
// Legacy bcrypt digests are accepted by [Codec.Verify] and flagged by
// [Codec.NeedsRehash]. Digests produced with weaker argon2 parameters are also
// flagged so the caller can re-hash on the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (minimum
// length, required fields) is enforced by the account registry.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive digests.
//   - Import any other sehatauth package.
//   - Log plaintext passwords.
package password
