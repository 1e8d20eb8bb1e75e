// Package password hashes and verifies administrator passwords.
//
// [Bcrypt] is the default hasher and takes its cost from the stored security policy.
// [Argon2] produces PHC-encoded argon2id hashes for installations that opt into it.
// [Verifier] hashes with one of them and verifies any hash either of them produced, so a
// store can hold a mix while hashes are upgraded on login.
//
// Plaintexts are used byte-for-byte without normalization. Minimum length is counted in
// characters (runes) and enforced only when hashing.
package password
