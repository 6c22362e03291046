package journal

import (
	"encoding/json"
	"fmt"

	"github.com/quillsync/quillsync/crypto"
)

// RootUID is the well-known predecessor value for the first entry of a
// chain.
const RootUID = ""

// Action describes what an entry does to one native item.
type Action string

const (
	ActionAdd    Action = "ADD"
	ActionChange Action = "CHANGE"
	// ActionDelete is the tombstone form: the item was removed locally and
	// the removal must propagate.
	ActionDelete Action = "DELETE"
)

// SyncEntry is the plaintext payload of one entry: an action applied to
// one item, carrying the item's serialized content.
type SyncEntry struct {
	Action  Action `json:"action"`
	ItemID  string `json:"itemId"`
	Content string `json:"content,omitempty"`
}

// Entry is one encrypted record in a journal's chain. UID is the hex
// integrity tag binding this entry to its predecessor.
type Entry struct {
	UID     string `json:"uid"`
	Content []byte `json:"content"`
}

// ChainIntegrityError reports an entry whose recomputed uid does not match
// its stored uid. Fatal for the affected journal: no entry at or after the
// failure point may be applied.
type ChainIntegrityError struct {
	JournalUID string
	EntryUID   string
}

func (e *ChainIntegrityError) Error() string {
	return fmt.Sprintf("journal %s: chain integrity failure at entry %s", e.JournalUID, e.EntryUID)
}

// chainInput is the byte string the entry uid is computed over:
// ciphertext followed by the predecessor's uid. The version byte is mixed
// in by the integrity function itself.
func chainInput(content []byte, prevUID string) []byte {
	in := make([]byte, 0, len(content)+len(prevUID))
	in = append(in, content...)
	in = append(in, prevUID...)
	return in
}

// NewEntry encrypts payload and seals it onto the chain after prevUID.
func NewEntry(cm *crypto.SymmetricManager, prevUID string, payload *SyncEntry) (*Entry, error) {
	plain, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode sync entry: %w", err)
	}
	ct, err := cm.Encrypt(plain)
	if err != nil {
		return nil, err
	}
	return &Entry{
		UID:     cm.IntegrityTagHex(chainInput(ct, prevUID)),
		Content: ct,
	}, nil
}

// Verify recomputes the entry's uid from its content and prevUID.
func (e *Entry) Verify(cm *crypto.SymmetricManager, journalUID, prevUID string) error {
	if cm.IntegrityTagHex(chainInput(e.Content, prevUID)) != e.UID {
		return &ChainIntegrityError{JournalUID: journalUID, EntryUID: e.UID}
	}
	return nil
}

// Payload verifies the entry against prevUID and decrypts its sync
// payload.
func (e *Entry) Payload(cm *crypto.SymmetricManager, journalUID, prevUID string) (*SyncEntry, error) {
	if err := e.Verify(cm, journalUID, prevUID); err != nil {
		return nil, err
	}
	plain, err := cm.Decrypt(e.Content)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", e.UID, err)
	}
	var payload SyncEntry
	if err := json.Unmarshal(plain, &payload); err != nil {
		return nil, fmt.Errorf("%w: entry %s payload: %v", crypto.ErrDecryption, e.UID, err)
	}
	return &payload, nil
}

// VerifyChain walks entries in order, recomputing each uid from its
// predecessor's. It returns how many leading entries verified; on a
// mismatch the error is a *ChainIntegrityError for the first bad entry
// and no later entry is checked.
func VerifyChain(cm *crypto.SymmetricManager, journalUID, prevUID string, entries []*Entry) (int, error) {
	for i, e := range entries {
		if err := e.Verify(cm, journalUID, prevUID); err != nil {
			return i, err
		}
		prevUID = e.UID
	}
	return len(entries), nil
}
