package quillsync

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillsync/quillsync/config"
	"github.com/quillsync/quillsync/contenthash"
	"github.com/quillsync/quillsync/nativestore"
	"github.com/quillsync/quillsync/transport"
)

func testNative() *nativestore.MemoryStore {
	native := nativestore.NewMemoryStore()
	native.AddCollection("calendar", nativestore.KindCalendar)
	native.AddCollection("tasks", nativestore.KindReminders)
	native.AddCollection("addressbook", nativestore.KindContacts)
	return native
}

func testOptions(backend *transport.MemoryBackend, native *nativestore.MemoryStore) *Options {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	options := NewOptions()
	options.Account = "me@example.com"
	options.Password = "correct horse battery staple"
	options.Salt = "abc123"
	options.Server = backend
	options.Native = native
	options.Logger = logger
	return options
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	options := testOptions(transport.NewMemoryBackend(), testNative())
	options.Password = ""
	_, err = New(options)
	assert.Error(t, err)

	options = testOptions(transport.NewMemoryBackend(), testNative())
	options.Server = nil
	_, err = New(options)
	assert.Error(t, err)
}

func TestClientSyncRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := transport.NewMemoryBackend()
	native := testNative()

	client, err := New(testOptions(backend, native))
	require.NoError(t, err)
	defer client.Close()

	_, err = native.PutRecord("addressbook", "", &contenthash.Contact{
		GivenName:  "Ada",
		FamilyName: "Lovelace",
	})
	require.NoError(t, err)

	completed, err := client.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, completed)

	journals, err := backend.Journals(ctx)
	require.NoError(t, err)
	assert.Len(t, journals, 3)
	total := 0
	for _, j := range journals {
		total += backend.EntryCount(j.UID)
	}
	assert.Equal(t, 1, total)
}

func TestClientPersistentStateAcrossRestart(t *testing.T) {
	ctx := context.Background()
	backend := transport.NewMemoryBackend()
	native := testNative()
	dataDir := t.TempDir()

	options := testOptions(backend, native)
	options.DataDir = dataDir

	client, err := New(options)
	require.NoError(t, err)

	_, err = native.PutRecord("calendar", "", &contenthash.Event{
		CalendarItem: contenthash.CalendarItem{Title: "Launch"},
		StartDate:    1700000000,
	})
	require.NoError(t, err)

	completed, err := client.Sync(ctx)
	require.NoError(t, err)
	require.True(t, completed)
	require.NoError(t, client.Close())

	journals, err := backend.Journals(ctx)
	require.NoError(t, err)
	before := 0
	for _, j := range journals {
		before += backend.EntryCount(j.UID)
	}

	// A restarted client with the same data dir remembers its baseline
	// and pushes nothing.
	client, err = New(options)
	require.NoError(t, err)
	defer client.Close()

	completed, err = client.Sync(ctx)
	require.NoError(t, err)
	require.True(t, completed)

	after := 0
	for _, j := range journals {
		after += backend.EntryCount(j.UID)
	}
	assert.Equal(t, before, after)
}

func TestClientClearDeviceCollections(t *testing.T) {
	ctx := context.Background()
	backend := transport.NewMemoryBackend()
	native := testNative()

	client, err := New(testOptions(backend, native))
	require.NoError(t, err)
	defer client.Close()

	_, err = native.PutRecord("tasks", "", &contenthash.Reminder{
		CalendarItem: contenthash.CalendarItem{Title: "Water plants"},
	})
	require.NoError(t, err)

	_, err = client.Sync(ctx)
	require.NoError(t, err)

	require.NoError(t, client.ClearDeviceCollections(ctx))

	refs, err := native.ListItems(ctx, "tasks", nil)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestClientChangePassword(t *testing.T) {
	ctx := context.Background()
	backend := transport.NewMemoryBackend()

	client, err := New(testOptions(backend, testNative()))
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Sync(ctx)
	require.NoError(t, err)

	err = client.ChangePassword(ctx, "wrong password", "whatever")
	assert.Error(t, err)

	require.NoError(t, client.ChangePassword(ctx, "correct horse battery staple", "a brand new passphrase"))

	// A fresh client on the new password reads the same account.
	options := testOptions(backend, testNative())
	options.Password = "a brand new passphrase"
	fresh, err := New(options)
	require.NoError(t, err)
	defer fresh.Close()

	completed, err := fresh.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, completed)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Account = "me@example.com"
	cfg.Salt = "abc123"
	cfg.DataDir = "/var/lib/quillsync"
	cfg.LogLevel = "warn"
	cfg.CalendarWindowDays = 30

	options := NewOptions()
	options.FromConfig(cfg)

	assert.Equal(t, "me@example.com", options.Account)
	assert.Equal(t, "abc123", options.Salt)
	assert.Equal(t, filepath.Join("/var/lib/quillsync", "state"), options.DataDir)
	assert.Equal(t, 30, options.CalendarWindowDays)
	assert.Equal(t, logrus.WarnLevel, options.Logger.GetLevel())
}
