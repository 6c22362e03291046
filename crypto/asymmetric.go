package crypto

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
)

// rsaBits is the modulus size for generated key pairs. Key pairs only ever
// wrap journal keys, so 3072 bits comfortably bounds every payload.
const rsaBits = 3072

// KeyPair holds a DER-encoded RSA key pair: the public key in PKIX (SPKI)
// form and the private key in PKCS#8 form.
type KeyPair struct {
	PublicKey  []byte
	PrivateKey []byte
}

// Wipe erases the private half of the key pair.
func (kp *KeyPair) Wipe() {
	ZeroBytes(kp.PrivateKey)
}

// AsymmetricManager wraps and unwraps symmetric journal keys under RSA-OAEP
// so a collection can be shared without re-encrypting its content.
type AsymmetricManager struct {
	rand RandomSource
}

// NewAsymmetricManager returns a manager drawing randomness from rnd.
func NewAsymmetricManager(rnd RandomSource) *AsymmetricManager {
	if rnd == nil {
		rnd = SystemRandom()
	}
	return &AsymmetricManager{rand: rnd}
}

// GenerateKeyPair creates a fresh RSA-3072 key pair.
func (a *AsymmetricManager) GenerateKeyPair() (*KeyPair, error) {
	priv, err := rsa.GenerateKey(a.rand, rsaBits)
	if err != nil {
		return nil, fmt.Errorf("%w: key generation: %v", ErrCrypto, err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: encode public key: %v", ErrCrypto, err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("%w: encode private key: %v", ErrCrypto, err)
	}

	return &KeyPair{PublicKey: pubDER, PrivateKey: privDER}, nil
}

// EncryptBytes encrypts content under the DER-encoded public key using
// RSA-OAEP with SHA-256. Content larger than the modulus allows (minus
// padding overhead) is rejected; callers must chunk oversized payloads.
func (a *AsymmetricManager) EncryptBytes(publicKey, content []byte) ([]byte, error) {
	parsed, err := x509.ParsePKIXPublicKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: parse public key: %v", ErrCrypto, err)
	}
	rsaPub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA public key", ErrCrypto)
	}

	ct, err := rsa.EncryptOAEP(sha256.New(), a.rand, rsaPub, content, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}
	return ct, nil
}

// DecryptBytes decrypts content under the DER-encoded PKCS#8 private key.
func (a *AsymmetricManager) DecryptBytes(privateKey, content []byte) ([]byte, error) {
	parsed, err := x509.ParsePKCS8PrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: parse private key: %v", ErrCrypto, err)
	}
	rsaPriv, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA private key", ErrCrypto)
	}

	plain, err := rsa.DecryptOAEP(sha256.New(), nil, rsaPriv, content, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}
	return plain, nil
}
