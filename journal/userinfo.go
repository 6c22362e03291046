package journal

import (
	"encoding/hex"
	"fmt"

	"github.com/quillsync/quillsync/crypto"
)

// userInfoSalt is the fixed salt for the account-level symmetric manager
// guarding the wrapped private key.
const userInfoSalt = "userInfo"

// UserInfo is the per-account record holding the asymmetric key pair: the
// public key in the clear, the private key encrypted under the account's
// derived key. Created once per account, rewritten only when the key pair
// is reissued.
type UserInfo struct {
	Owner               string `json:"owner"`
	Version             uint16 `json:"version"`
	PublicKey           []byte `json:"publicKey"`
	EncryptedPrivateKey []byte `json:"encryptedPrivateKey"`
	IntegrityTag        string `json:"integrityTag"`
}

// NewUserInfo creates an empty record for owner at the current version.
func NewUserInfo(owner string) *UserInfo {
	return &UserInfo{Owner: owner, Version: crypto.CurrentVersion}
}

// CryptoManager derives the account-level symmetric manager from the
// master key. All UserInfo blobs use a fixed salt so the manager is
// independent of any journal.
func (u *UserInfo) CryptoManager(rnd crypto.RandomSource, derived []byte) (*crypto.SymmetricManager, error) {
	return crypto.NewSymmetricManager(rnd, derived, userInfoSalt, u.Version)
}

// SetKeyPair stores keyPair in the record: private key encrypted, and an
// integrity tag binding public and encrypted private key together.
func (u *UserInfo) SetKeyPair(cm *crypto.SymmetricManager, keyPair *crypto.KeyPair) error {
	encPriv, err := cm.Encrypt(keyPair.PrivateKey)
	if err != nil {
		return err
	}
	u.PublicKey = append([]byte{}, keyPair.PublicKey...)
	u.EncryptedPrivateKey = encPriv
	u.IntegrityTag = hex.EncodeToString(cm.IntegrityTag(u.tagInput()))
	return nil
}

// KeyPair verifies the record's integrity tag and unwraps the private
// key. A tag mismatch means the supplied key does not match the key the
// record was written under, surfaced as an authentication failure.
func (u *UserInfo) KeyPair(cm *crypto.SymmetricManager) (*crypto.KeyPair, error) {
	tag, err := hex.DecodeString(u.IntegrityTag)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed user info tag", crypto.ErrAuthentication)
	}
	if !cm.VerifyTag(u.tagInput(), tag) {
		return nil, fmt.Errorf("%w: user info integrity tag mismatch for %s", crypto.ErrAuthentication, u.Owner)
	}

	priv, err := cm.Decrypt(u.EncryptedPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("user info for %s: %w", u.Owner, err)
	}
	return &crypto.KeyPair{
		PublicKey:  append([]byte{}, u.PublicKey...),
		PrivateKey: priv,
	}, nil
}

func (u *UserInfo) tagInput() []byte {
	in := make([]byte, 0, len(u.PublicKey)+len(u.EncryptedPrivateKey))
	in = append(in, u.PublicKey...)
	in = append(in, u.EncryptedPrivateKey...)
	return in
}
