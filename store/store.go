// Package store persists the engine's durable local state: the per-journal
// tail pointer (last applied entry uid) and the item-hash baseline the
// next sync's diff is computed against. Both survive process restarts;
// both only ever move forward together, atomically, after a successful
// pull application or push.
package store

import "errors"

// ErrClosed indicates an operation on a closed state store.
var ErrClosed = errors.New("state store is closed")

// State is the durable local sync state for one account.
type State interface {
	// Tail returns the uid of the last applied entry of a journal, or ""
	// when no entry has been applied yet.
	Tail(journalUID string) (string, error)

	// Baseline returns the item-hash baseline of a journal: native item
	// id mapped to the content hash recorded at its last successful sync.
	Baseline(journalUID string) (map[string]string, error)

	// Advance moves the tail pointer and applies baseline mutations in
	// one atomic step. Passing tail == "" leaves the tail untouched.
	Advance(journalUID, tail string, put map[string]string, del []string) error

	// Reset discards all state for a journal (tail and baseline), used
	// when device collections are cleared.
	Reset(journalUID string) error

	// Close releases underlying resources.
	Close() error
}
