package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"encoding/hex"
	"fmt"
	"io"
)

// CurrentVersion is the newest crypto scheme version this client writes
// and the maximum it will read.
const CurrentVersion uint16 = 2

// Domain-separation labels for subkey expansion.
var (
	labelCipher    = []byte("aes")
	labelIntegrity = []byte("hmac")
)

// SymmetricManager performs authenticated symmetric operations for one
// journal. It is an immutable value: the base key and both subkeys are
// finalized at construction and never change.
//
// Version 1 is the legacy scheme: the base key is used directly, unsalted,
// and integrity tags omit the version byte. Versions >= 2 bind the key to
// the journal's uid before subkey expansion so a key is never shared
// across journals.
type SymmetricManager struct {
	version      uint16
	key          []byte
	cipherKey    []byte
	integrityKey []byte
	rand         RandomSource
}

// NewSymmetricManager derives a manager from a base key and a
// journal-specific salt (normally the journal uid). Construction fails
// with a *VersionTooNewError when version exceeds CurrentVersion.
func NewSymmetricManager(rnd RandomSource, baseKey []byte, salt string, version uint16) (*SymmetricManager, error) {
	if version > CurrentVersion {
		return nil, &VersionTooNewError{Version: version}
	}
	if len(baseKey) == 0 {
		return nil, fmt.Errorf("%w: empty base key", ErrCrypto)
	}

	key := baseKey
	if version > 1 {
		key = hmac256([]byte(salt), baseKey)
	}
	return newFromKey(rnd, key, version), nil
}

// FromDerivedKey builds a manager directly from an already-derived journal
// key, skipping salting. Used for shared journals whose key arrived
// wrapped under our public key.
func FromDerivedKey(rnd RandomSource, key []byte, version uint16) (*SymmetricManager, error) {
	if version > CurrentVersion {
		return nil, &VersionTooNewError{Version: version}
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: empty key", ErrCrypto)
	}
	return newFromKey(rnd, key, version), nil
}

func newFromKey(rnd RandomSource, key []byte, version uint16) *SymmetricManager {
	if rnd == nil {
		rnd = SystemRandom()
	}
	// Own the key so Wipe never zeroes a slice the caller still holds
	// (the version-1 path passes the account master key straight through).
	key = append([]byte(nil), key...)
	return &SymmetricManager{
		version:      version,
		key:          key,
		cipherKey:    hmac256(labelCipher, key),
		integrityKey: hmac256(labelIntegrity, key),
		rand:         rnd,
	}
}

// Version reports the scheme version the manager operates under.
func (m *SymmetricManager) Version() uint16 { return m.version }

// Key exposes the derived journal key so it can be wrapped for sharing.
func (m *SymmetricManager) Key() []byte { return m.key }

// Encrypt encrypts plaintext under AES-256-CBC with a fresh random IV
// prepended to the ciphertext. Two encryptions of the same plaintext
// never produce the same output.
func (m *SymmetricManager) Encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(m.cipherKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}

	padded := padPKCS7(plaintext, aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := io.ReadFull(m.rand, iv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEntropy, err)
	}

	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)
	return out, nil
}

// Decrypt splits the leading IV and decrypts the remainder. Malformed or
// truncated input fails with ErrDecryption.
func (m *SymmetricManager) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < 2*aes.BlockSize || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d", ErrDecryption, len(ciphertext))
	}

	block, err := aes.NewCipher(m.cipherKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}

	iv := ciphertext[:aes.BlockSize]
	body := ciphertext[aes.BlockSize:]
	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, body)

	unpadded, err := unpadPKCS7(plain, aes.BlockSize)
	if err != nil {
		return nil, err
	}
	return unpadded, nil
}

// IntegrityTag computes the keyed integrity function over content. For
// versions >= 2 the version byte is appended to the input; version 1
// omits it, a legacy compatibility carve-out.
func (m *SymmetricManager) IntegrityTag(content []byte) []byte {
	if m.version == 1 {
		return hmac256(m.integrityKey, content)
	}
	versioned := make([]byte, 0, len(content)+1)
	versioned = append(versioned, content...)
	versioned = append(versioned, byte(m.version))
	return hmac256(m.integrityKey, versioned)
}

// IntegrityTagHex is IntegrityTag encoded as a lowercase hex string, the
// form used for entry uids on the wire.
func (m *SymmetricManager) IntegrityTagHex(content []byte) string {
	return hex.EncodeToString(m.IntegrityTag(content))
}

// VerifyTag reports whether tag matches content under the integrity key,
// in constant time.
func (m *SymmetricManager) VerifyTag(content, tag []byte) bool {
	return hmac.Equal(m.IntegrityTag(content), tag)
}

// Wipe erases the manager's key material. The manager must not be used
// afterwards.
func (m *SymmetricManager) Wipe() {
	ZeroBytes(m.key)
	ZeroBytes(m.cipherKey)
	ZeroBytes(m.integrityKey)
}

func padPKCS7(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(append([]byte{}, data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpadPKCS7(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("%w: bad padded length %d", ErrDecryption, len(data))
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("%w: bad padding", ErrDecryption)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrDecryption)
		}
	}
	return data[:len(data)-n], nil
}
