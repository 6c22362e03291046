package journal

import (
	"encoding/json"
	"fmt"

	"github.com/quillsync/quillsync/crypto"
)

// CollectionType identifies what kind of native collection a journal
// mirrors. The set is closed.
type CollectionType string

const (
	CollectionAddressBook CollectionType = "ADDRESS_BOOK"
	CollectionCalendar    CollectionType = "CALENDAR"
	CollectionTasks       CollectionType = "TASKS"
)

// CollectionTypes lists all supported collection types in bootstrap order.
var CollectionTypes = []CollectionType{CollectionAddressBook, CollectionCalendar, CollectionTasks}

// CollectionInfo is the plaintext metadata of a journal, stored encrypted
// in the journal's content blob. Immutable once created except by
// re-encrypting a replacement blob.
type CollectionInfo struct {
	Type        CollectionType `json:"type"`
	DisplayName string         `json:"displayName"`
	Color       string         `json:"color,omitempty"`
	UID         string         `json:"uid"`
}

// Journal is one collection's record as stored by the server. Content is
// an opaque blob: an integrity tag followed by the encrypted
// CollectionInfo. Key, when present, is the journal's symmetric key
// wrapped under this account's public key (shared, non-owned journals).
type Journal struct {
	UID     string `json:"uid"`
	Version uint16 `json:"version"`
	Content []byte `json:"content"`
	Key     []byte `json:"key,omitempty"`
	Owner   string `json:"owner,omitempty"`
}

// New creates an empty journal at the current scheme version.
func New(uid string) *Journal {
	return &Journal{UID: uid, Version: crypto.CurrentVersion}
}

// CryptoManager builds the symmetric manager for this journal. Owned
// journals salt the account's derived key with the journal uid. Shared
// journals carry their key wrapped under our public key; the unwrapped
// key is used directly, without salting.
func (j *Journal) CryptoManager(rnd crypto.RandomSource, derived []byte, keyPair *crypto.KeyPair) (*crypto.SymmetricManager, error) {
	if len(j.Key) > 0 {
		if keyPair == nil {
			return nil, fmt.Errorf("%w: journal %s has a wrapped key but no key pair is available", crypto.ErrCrypto, j.UID)
		}
		am := crypto.NewAsymmetricManager(rnd)
		journalKey, err := am.DecryptBytes(keyPair.PrivateKey, j.Key)
		if err != nil {
			return nil, fmt.Errorf("unwrap key for journal %s: %w", j.UID, err)
		}
		return crypto.FromDerivedKey(rnd, journalKey, j.Version)
	}
	return crypto.NewSymmetricManager(rnd, derived, j.UID, j.Version)
}

// SetInfo encrypts info into the journal's content blob: the ciphertext
// prefixed with an integrity tag over uid plus ciphertext, binding the
// blob to this journal.
func (j *Journal) SetInfo(cm *crypto.SymmetricManager, info *CollectionInfo) error {
	plain, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode collection info: %w", err)
	}
	ct, err := cm.Encrypt(plain)
	if err != nil {
		return err
	}

	tag := cm.IntegrityTag(append([]byte(j.UID), ct...))
	j.Content = append(tag, ct...)
	return nil
}

// Info verifies and decrypts the journal's content blob.
func (j *Journal) Info(cm *crypto.SymmetricManager) (*CollectionInfo, error) {
	if len(j.Content) <= crypto.TagSize {
		return nil, fmt.Errorf("%w: journal %s content too short", crypto.ErrDecryption, j.UID)
	}

	tag := j.Content[:crypto.TagSize]
	ct := j.Content[crypto.TagSize:]
	if !cm.VerifyTag(append([]byte(j.UID), ct...), tag) {
		return nil, fmt.Errorf("%w: journal %s integrity tag mismatch", crypto.ErrDecryption, j.UID)
	}

	plain, err := cm.Decrypt(ct)
	if err != nil {
		return nil, fmt.Errorf("journal %s: %w", j.UID, err)
	}

	var info CollectionInfo
	if err := json.Unmarshal(plain, &info); err != nil {
		return nil, fmt.Errorf("%w: journal %s info: %v", crypto.ErrDecryption, j.UID, err)
	}
	return &info, nil
}
