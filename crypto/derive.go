package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// Scrypt cost parameters for master-key derivation. Fixed by the wire
// format: changing them changes every derived key.
const (
	scryptN = 16384
	scryptR = 8
	scryptP = 1
)

// DerivedKeySize is the length in bytes of a derived master key.
const DerivedKeySize = 190

// TagSize is the length in bytes of an HMAC-SHA256 integrity tag.
const TagSize = sha256.Size

// DeriveKey stretches a password and salt into a master key using scrypt.
// The derivation is deterministic: the same (salt, password) pair always
// produces the same key.
func DeriveKey(salt, password string) ([]byte, error) {
	key, err := scrypt.Key([]byte(password), []byte(salt), scryptN, scryptR, scryptP, DerivedKeySize)
	if err != nil {
		return nil, fmt.Errorf("scrypt derivation failed: %w", err)
	}
	return key, nil
}

// hmac256 computes HMAC-SHA256 over message using key.
func hmac256(key, message []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return mac.Sum(nil)
}
