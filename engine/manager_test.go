package engine

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillsync/quillsync/contenthash"
	"github.com/quillsync/quillsync/crypto"
	"github.com/quillsync/quillsync/journal"
	"github.com/quillsync/quillsync/nativestore"
	"github.com/quillsync/quillsync/store"
	"github.com/quillsync/quillsync/transport"
)

// testDerivedKey is computed once; scrypt is deliberately slow.
var testDerivedKey []byte

func derivedKey(t *testing.T) []byte {
	t.Helper()
	if testDerivedKey == nil {
		key, err := crypto.DeriveKey("abc123", "correct horse battery staple")
		require.NoError(t, err)
		testDerivedKey = key
	}
	return append([]byte{}, testDerivedKey...)
}

type testClient struct {
	manager *Manager
	native  *nativestore.MemoryStore
	state   *store.MemoryState
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

// newTestClient builds one device's view of the account: its own native
// store and local state, sharing the given backend.
func newTestClient(t *testing.T, backend *transport.MemoryBackend) *testClient {
	t.Helper()

	native := nativestore.NewMemoryStore()
	native.AddCollection("calendar", nativestore.KindCalendar)
	native.AddCollection("tasks", nativestore.KindReminders)
	native.AddCollection("addressbook", nativestore.KindContacts)

	state := store.NewMemoryState()

	m, err := NewManager(Config{
		Account:    "me@example.com",
		DerivedKey: derivedKey(t),
		Client:     backend,
		State:      state,
		Native:     native,
		Logger:     quietLogger(),
		Registry:   NewRegistry(),
	})
	require.NoError(t, err)

	return &testClient{manager: m, native: native, state: state}
}

func putEvent(t *testing.T, c *testClient, title string) string {
	t.Helper()
	id, err := c.native.PutRecord("calendar", "", &contenthash.Event{
		CalendarItem: contenthash.CalendarItem{Title: title},
		StartDate:    1700000000,
	})
	require.NoError(t, err)
	return id
}

func TestSyncBootstrapsAccountAndJournals(t *testing.T) {
	ctx := context.Background()
	backend := transport.NewMemoryBackend()
	c := newTestClient(t, backend)

	completed, err := c.manager.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, completed)

	info, err := backend.UserInfo(ctx, "me@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, info.PublicKey)

	journals, err := backend.Journals(ctx)
	require.NoError(t, err)
	assert.Len(t, journals, 3, "one journal per collection type")
	for _, j := range journals {
		assert.NotEmpty(t, j.Key, "journal keys are wrapped for the owner")
	}
}

func TestSyncPushesLocalChanges(t *testing.T) {
	ctx := context.Background()
	backend := transport.NewMemoryBackend()
	c := newTestClient(t, backend)

	putEvent(t, c, "Dentist")
	putEvent(t, c, "Standup")

	completed, err := c.manager.Sync(ctx)
	require.NoError(t, err)
	require.True(t, completed)

	journals, err := backend.Journals(ctx)
	require.NoError(t, err)

	total := 0
	for _, j := range journals {
		total += backend.EntryCount(j.UID)
	}
	assert.Equal(t, 2, total, "two added events, nothing else")
}

func TestSyncIdempotentWhenUnchanged(t *testing.T) {
	ctx := context.Background()
	backend := transport.NewMemoryBackend()
	c := newTestClient(t, backend)

	putEvent(t, c, "Dentist")

	completed, err := c.manager.Sync(ctx)
	require.NoError(t, err)
	require.True(t, completed)

	journals, err := backend.Journals(ctx)
	require.NoError(t, err)
	countAfterFirst := 0
	baselines := make(map[string]map[string]string)
	for _, j := range journals {
		countAfterFirst += backend.EntryCount(j.UID)
		b, err := c.state.Baseline(j.UID)
		require.NoError(t, err)
		baselines[j.UID] = b
	}

	// Second cycle with no local or remote changes: zero pushes, baseline
	// untouched.
	completed, err = c.manager.Sync(ctx)
	require.NoError(t, err)
	require.True(t, completed)

	countAfterSecond := 0
	for _, j := range journals {
		countAfterSecond += backend.EntryCount(j.UID)
		b, err := c.state.Baseline(j.UID)
		require.NoError(t, err)
		assert.Equal(t, baselines[j.UID], b)
	}
	assert.Equal(t, countAfterFirst, countAfterSecond)
}

func TestSyncPropagatesBetweenDevices(t *testing.T) {
	ctx := context.Background()
	backend := transport.NewMemoryBackend()

	deviceA := newTestClient(t, backend)
	putEvent(t, deviceA, "Offsite")
	completed, err := deviceA.manager.Sync(ctx)
	require.NoError(t, err)
	require.True(t, completed)

	deviceB := newTestClient(t, backend)
	completed, err = deviceB.manager.Sync(ctx)
	require.NoError(t, err)
	require.True(t, completed)

	refs, err := deviceB.native.ListItems(ctx, "calendar", nil)
	require.NoError(t, err)
	require.Len(t, refs, 1)

	record, err := deviceB.native.ReadCanonicalFields(ctx, refs[0])
	require.NoError(t, err)
	assert.Equal(t, "Offsite", record.(*contenthash.Event).Title)

	// Both devices agree on the content hash, so neither re-pushes.
	journals, err := backend.Journals(ctx)
	require.NoError(t, err)
	before := 0
	for _, j := range journals {
		before += backend.EntryCount(j.UID)
	}
	completed, err = deviceB.manager.Sync(ctx)
	require.NoError(t, err)
	require.True(t, completed)
	after := 0
	for _, j := range journals {
		after += backend.EntryCount(j.UID)
	}
	assert.Equal(t, before, after)
}

func TestSyncPropagatesDeletion(t *testing.T) {
	ctx := context.Background()
	backend := transport.NewMemoryBackend()

	deviceA := newTestClient(t, backend)
	id := putEvent(t, deviceA, "Cancelled meeting")
	_, err := deviceA.manager.Sync(ctx)
	require.NoError(t, err)

	deviceB := newTestClient(t, backend)
	_, err = deviceB.manager.Sync(ctx)
	require.NoError(t, err)

	// Device A deletes the event locally; the tombstone must reach B.
	require.NoError(t, deviceA.native.DeleteItem(ctx, "calendar", id))
	_, err = deviceA.manager.Sync(ctx)
	require.NoError(t, err)

	_, err = deviceB.manager.Sync(ctx)
	require.NoError(t, err)

	refs, err := deviceB.native.ListItems(ctx, "calendar", nil)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestSyncNetworkFailureAborts(t *testing.T) {
	ctx := context.Background()
	backend := transport.NewMemoryBackend()
	c := newTestClient(t, backend)

	backend.SetError(transport.ErrNetwork)

	completed, err := c.manager.Sync(ctx)
	assert.False(t, completed, "connectivity failure reports not-synced")
	assert.NoError(t, err, "connectivity failure is not an error condition")

	// Once the server is reachable the same cycle succeeds.
	backend.SetError(nil)
	completed, err = c.manager.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, completed)
}

func TestSyncVersionTooNewJournalSkipped(t *testing.T) {
	ctx := context.Background()
	backend := transport.NewMemoryBackend()
	c := newTestClient(t, backend)

	// First sync bootstraps normally.
	_, err := c.manager.Sync(ctx)
	require.NoError(t, err)

	// A journal written by a newer client appears.
	future := journal.New("future-journal")
	future.Version = crypto.CurrentVersion + 1
	require.NoError(t, backend.CreateJournal(ctx, future))

	completed, err := c.manager.Sync(ctx)
	assert.True(t, completed, "the other journals still sync")

	var vErr *crypto.VersionTooNewError
	require.ErrorAs(t, err, &vErr, "the too-new journal is reported, not crashed on")
}

func TestSyncHaltsOnChainTampering(t *testing.T) {
	ctx := context.Background()
	backend := transport.NewMemoryBackend()

	derived := derivedKey(t)

	// Server-side state crafted directly: an owned task journal whose
	// middle entry was altered after writing.
	uid := "tampered-journal"
	cm, err := crypto.NewSymmetricManager(nil, derived, uid, crypto.CurrentVersion)
	require.NoError(t, err)

	j := journal.New(uid)
	require.NoError(t, j.SetInfo(cm, &journal.CollectionInfo{Type: journal.CollectionTasks, DisplayName: "Default", UID: uid}))
	require.NoError(t, backend.CreateJournal(ctx, j))

	var entries []*journal.Entry
	prev := journal.RootUID
	for i, title := range []string{"one", "two", "three"} {
		content := `{"Title":"` + title + `"}`
		e, err := journal.NewEntry(cm, prev, &journal.SyncEntry{
			Action:  journal.ActionAdd,
			ItemID:  string(rune('a' + i)),
			Content: content,
		})
		require.NoError(t, err)
		entries = append(entries, e)
		prev = e.UID
	}
	entries[1].Content[0] ^= 0xff
	require.NoError(t, backend.AppendEntries(ctx, uid, entries, journal.RootUID))

	c := newTestClient(t, backend)
	completed, err := c.manager.Sync(ctx)
	assert.True(t, completed)

	var chainErr *journal.ChainIntegrityError
	require.ErrorAs(t, err, &chainErr)
	assert.Equal(t, uid, chainErr.JournalUID)

	// Only the entries before the tampered one were applied, and the tail
	// stops at the last verified entry.
	refs, err := c.native.ListItems(ctx, "tasks", nil)
	require.NoError(t, err)
	assert.Len(t, refs, 1)

	tail, err := c.state.Tail(uid)
	require.NoError(t, err)
	assert.Equal(t, entries[0].UID, tail)
}

func TestWindowedSyncKeepsOutOfWindowItems(t *testing.T) {
	ctx := context.Background()
	backend := transport.NewMemoryBackend()

	// Device A syncs unwindowed and publishes an old event.
	deviceA := newTestClient(t, backend)
	putEvent(t, deviceA, "Old offsite")
	completed, err := deviceA.manager.Sync(ctx)
	require.NoError(t, err)
	require.True(t, completed)

	// Device B only looks at a window far in the future, so the event
	// is applied to its native store but never listed back.
	nativeB := nativestore.NewMemoryStore()
	nativeB.AddCollection("calendar", nativestore.KindCalendar)
	nativeB.AddCollection("tasks", nativestore.KindReminders)
	nativeB.AddCollection("addressbook", nativestore.KindContacts)
	deviceB, err := NewManager(Config{
		Account:        "me@example.com",
		DerivedKey:     derivedKey(t),
		Client:         backend,
		State:          store.NewMemoryState(),
		Native:         nativeB,
		Logger:         quietLogger(),
		Registry:       NewRegistry(),
		CalendarWindow: &nativestore.TimeRange{From: 2000000000, To: 2100000000},
	})
	require.NoError(t, err)

	completed, err = deviceB.Sync(ctx)
	require.NoError(t, err)
	require.True(t, completed)

	// B must not tombstone the out-of-window event it just received.
	journals, err := backend.Journals(ctx)
	require.NoError(t, err)
	total := 0
	for _, j := range journals {
		total += backend.EntryCount(j.UID)
	}
	assert.Equal(t, 1, total, "windowed device published entries for an undeleted item")

	// And device A still has it after its next sync.
	completed, err = deviceA.manager.Sync(ctx)
	require.NoError(t, err)
	require.True(t, completed)

	refs, err := deviceA.native.ListItems(ctx, "calendar", nil)
	require.NoError(t, err)
	assert.Len(t, refs, 1)
}

func TestChangePasswordRejectedWhileSyncActive(t *testing.T) {
	ctx := context.Background()
	backend := transport.NewMemoryBackend()
	c := newTestClient(t, backend)

	_, err := c.manager.Sync(ctx)
	require.NoError(t, err)

	release, err := c.manager.registry.Acquire("me@example.com")
	require.NoError(t, err)
	defer release()

	newDerived, err := crypto.DeriveKey("abc123", "a brand new passphrase")
	require.NoError(t, err)
	err = c.manager.ChangePassword(ctx, derivedKey(t), newDerived)
	assert.ErrorIs(t, err, ErrSessionActive)
}

func TestSyncRejectsConcurrentSession(t *testing.T) {
	ctx := context.Background()
	backend := transport.NewMemoryBackend()
	c := newTestClient(t, backend)

	release, err := c.manager.registry.Acquire("me@example.com")
	require.NoError(t, err)
	defer release()

	_, err = c.manager.Sync(ctx)
	assert.ErrorIs(t, err, ErrSessionActive)
}

func TestClearDeviceCollections(t *testing.T) {
	ctx := context.Background()
	backend := transport.NewMemoryBackend()
	c := newTestClient(t, backend)

	putEvent(t, c, "Dentist")
	_, err := c.manager.Sync(ctx)
	require.NoError(t, err)

	require.NoError(t, c.manager.ClearDeviceCollections(ctx))

	refs, err := c.native.ListItems(ctx, "calendar", nil)
	require.NoError(t, err)
	assert.Empty(t, refs)

	// Server state is untouched; only the device was cleared.
	journals, err := backend.Journals(ctx)
	require.NoError(t, err)
	total := 0
	for _, j := range journals {
		total += backend.EntryCount(j.UID)
	}
	assert.Equal(t, 1, total)
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	backend := transport.NewMemoryBackend()
	c := newTestClient(t, backend)

	_, err := c.manager.Sync(ctx)
	require.NoError(t, err)

	newDerived, err := crypto.DeriveKey("abc123", "a brand new passphrase")
	require.NoError(t, err)

	// Wrong old key is an authentication error, recoverable.
	wrong, err := crypto.DeriveKey("abc123", "not my password")
	require.NoError(t, err)
	err = c.manager.ChangePassword(ctx, wrong, newDerived)
	assert.ErrorIs(t, err, crypto.ErrAuthentication)

	require.NoError(t, c.manager.ChangePassword(ctx, derivedKey(t), newDerived))

	// A fresh device using the new password can read the account.
	native := nativestore.NewMemoryStore()
	native.AddCollection("calendar", nativestore.KindCalendar)
	native.AddCollection("tasks", nativestore.KindReminders)
	native.AddCollection("addressbook", nativestore.KindContacts)
	m2, err := NewManager(Config{
		Account:    "me@example.com",
		DerivedKey: newDerived,
		Client:     backend,
		State:      store.NewMemoryState(),
		Native:     native,
		Logger:     quietLogger(),
		Registry:   NewRegistry(),
	})
	require.NoError(t, err)

	completed, err := m2.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, completed)
}
