package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestAsymmetricWrapUnwrap(t *testing.T) {
	am := NewAsymmetricManager(SystemRandom())

	kp, err := am.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error: %v", err)
	}
	if len(kp.PublicKey) == 0 || len(kp.PrivateKey) == 0 {
		t.Fatal("GenerateKeyPair() returned empty key material")
	}

	journalKey := make([]byte, DerivedKeySize)
	for i := range journalKey {
		journalKey[i] = byte(i)
	}

	wrapped, err := am.EncryptBytes(kp.PublicKey, journalKey)
	if err != nil {
		t.Fatalf("EncryptBytes() error: %v", err)
	}

	unwrapped, err := am.DecryptBytes(kp.PrivateKey, wrapped)
	if err != nil {
		t.Fatalf("DecryptBytes() error: %v", err)
	}
	if !bytes.Equal(journalKey, unwrapped) {
		t.Error("unwrapped key does not match original")
	}
}

func TestAsymmetricOversizedPayload(t *testing.T) {
	am := NewAsymmetricManager(SystemRandom())

	kp, err := am.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error: %v", err)
	}

	// RSA-3072 OAEP-SHA256 bounds plaintext to 384-2*32-2 = 318 bytes.
	oversized := make([]byte, 512)
	if _, err := am.EncryptBytes(kp.PublicKey, oversized); !errors.Is(err, ErrCrypto) {
		t.Errorf("EncryptBytes(oversized) error = %v, want ErrCrypto", err)
	}
}

func TestAsymmetricMalformedKeys(t *testing.T) {
	am := NewAsymmetricManager(SystemRandom())

	if _, err := am.EncryptBytes([]byte("not a key"), []byte("content")); !errors.Is(err, ErrCrypto) {
		t.Errorf("EncryptBytes(bad key) error = %v, want ErrCrypto", err)
	}
	if _, err := am.DecryptBytes([]byte("not a key"), []byte("content")); !errors.Is(err, ErrCrypto) {
		t.Errorf("DecryptBytes(bad key) error = %v, want ErrCrypto", err)
	}
}

func TestAsymmetricKeyPairsUnique(t *testing.T) {
	am := NewAsymmetricManager(SystemRandom())

	kp1, err := am.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error: %v", err)
	}
	kp2, err := am.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error: %v", err)
	}
	if bytes.Equal(kp1.PublicKey, kp2.PublicKey) {
		t.Error("two generated key pairs share a public key")
	}
}
