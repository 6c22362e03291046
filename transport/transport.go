// Package transport defines the engine's boundary to the sync server.
// The server only ever sees the opaque records defined in package
// journal; this package carries them back and forth and classifies
// failures so the engine can tell a transient connectivity problem from a
// protocol-level rejection.
package transport

import (
	"context"
	"errors"

	"github.com/quillsync/quillsync/journal"
)

var (
	// ErrNetwork is a transient connectivity failure. The current sync
	// cycle aborts without advancing any state; the caller may retry.
	ErrNetwork = errors.New("network error")
	// ErrConflict is the server's rejection of an append whose claimed
	// previous uid is stale. The pusher must re-fetch the tail and retry.
	ErrConflict = errors.New("stale previous entry uid")
	// ErrNotFound indicates the requested record does not exist on the
	// server.
	ErrNotFound = errors.New("record not found")
	// ErrExists indicates a create for a record that already exists.
	ErrExists = errors.New("record already exists")
)

// Client is the server API consumed by the sync engine.
type Client interface {
	// UserInfo fetches the account record for owner, or ErrNotFound.
	UserInfo(ctx context.Context, owner string) (*journal.UserInfo, error)

	// CreateUserInfo publishes a new account record.
	CreateUserInfo(ctx context.Context, info *journal.UserInfo) error

	// UpdateUserInfo replaces an existing account record (key reissue,
	// password change).
	UpdateUserInfo(ctx context.Context, info *journal.UserInfo) error

	// Journals lists every journal visible to the account, owned and
	// shared.
	Journals(ctx context.Context) ([]*journal.Journal, error)

	// CreateJournal publishes a new journal.
	CreateJournal(ctx context.Context, j *journal.Journal) error

	// Entries returns a journal's entries strictly after afterUID, in
	// chain order. afterUID == journal.RootUID returns the whole chain.
	Entries(ctx context.Context, journalUID, afterUID string) ([]*journal.Entry, error)

	// AppendEntries appends entries after prevUID. The server rejects the
	// append with ErrConflict when prevUID is not the current tail.
	AppendEntries(ctx context.Context, journalUID string, entries []*journal.Entry, prevUID string) error
}
