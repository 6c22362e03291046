// Package journal models the server-side data the sync engine mirrors: a
// journal per collection holding an append-only, hash-linked sequence of
// encrypted entries, plus the per-account UserInfo record carrying the
// wrapped asymmetric key pair.
//
// Every entry's uid is the keyed integrity tag of its ciphertext
// concatenated with its predecessor's uid, so a holder of the integrity
// key can verify that a fetched sequence is exactly the sequence that was
// written: any reordering, insertion, or truncation changes a downstream
// uid and is caught by recomputation.
package journal
