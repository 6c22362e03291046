// Package crypto implements the key hierarchy and encryption primitives
// for the quillsync protocol.
//
// A password and salt are stretched into a master key with scrypt. Each
// journal derives its own symmetric manager from the master key; the
// manager expands independent cipher and integrity subkeys through keyed
// HMAC-SHA256 so the same secret is never used for both purposes.
// Asymmetric (RSA-OAEP) operations exist only to wrap journal keys for
// sharing, never to encrypt bulk content.
//
// Example:
//
//	master, err := crypto.DeriveKey("salt", "password")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cm, err := crypto.NewSymmetricManager(crypto.SystemRandom(), master, journalUID, crypto.CurrentVersion)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ct, err := cm.Encrypt([]byte("hello"))
package crypto
