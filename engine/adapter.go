package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/quillsync/quillsync/crypto"
	"github.com/quillsync/quillsync/journal"
	"github.com/quillsync/quillsync/nativestore"
	"github.com/quillsync/quillsync/store"
	"github.com/quillsync/quillsync/transport"
)

// maxPushAttempts bounds the refetch-and-retry loop when the server
// rejects a push for a stale tail.
const maxPushAttempts = 3

// CollectionAdapter syncs one collection type. The set of implementations
// is closed: calendar, task list, and address book, all built on the same
// algorithm and selected at construction time.
type CollectionAdapter interface {
	Type() journal.CollectionType
	Init(ctx context.Context) error
	Sync(ctx context.Context) error
	ClearDeviceCollections(ctx context.Context) error
}

// collectionSync is the shared adapter implementation.
type collectionSync struct {
	collectionType journal.CollectionType
	nativeID       string
	window         *nativestore.TimeRange

	journal *journal.Journal
	cm      *crypto.SymmetricManager
	state   store.State
	native  nativestore.Store
	client  transport.Client
	log     *logrus.Entry
}

// NewCalendarAdapter builds the adapter for calendar events. window
// bounds which native events participate in the diff; remote entries are
// always applied regardless of window.
func NewCalendarAdapter(deps AdapterDeps, window *nativestore.TimeRange) CollectionAdapter {
	return newCollectionSync(journal.CollectionCalendar, deps, window)
}

// NewTaskListAdapter builds the adapter for reminders/tasks.
func NewTaskListAdapter(deps AdapterDeps) CollectionAdapter {
	return newCollectionSync(journal.CollectionTasks, deps, nil)
}

// NewAddressBookAdapter builds the adapter for contacts.
func NewAddressBookAdapter(deps AdapterDeps) CollectionAdapter {
	return newCollectionSync(journal.CollectionAddressBook, deps, nil)
}

// AdapterDeps carries everything a collection adapter needs.
type AdapterDeps struct {
	Journal  *journal.Journal
	Crypto   *crypto.SymmetricManager
	State    store.State
	Native   nativestore.Store
	Client   transport.Client
	NativeID string
	Log      *logrus.Logger
}

func newCollectionSync(t journal.CollectionType, deps AdapterDeps, window *nativestore.TimeRange) *collectionSync {
	logger := deps.Log
	if logger == nil {
		logger = logrus.New()
	}
	return &collectionSync{
		collectionType: t,
		nativeID:       deps.NativeID,
		window:         window,
		journal:        deps.Journal,
		cm:             deps.Crypto,
		state:          deps.State,
		native:         deps.Native,
		client:         deps.Client,
		log: logger.WithFields(logrus.Fields{
			"collection": t,
			"journal":    deps.Journal.UID,
		}),
	}
}

func (c *collectionSync) Type() journal.CollectionType { return c.collectionType }

// Init probes the native collection so a missing collection surfaces
// before any entries are applied.
func (c *collectionSync) Init(ctx context.Context) error {
	if _, err := c.native.ListItems(ctx, c.nativeID, nil); err != nil {
		return fmt.Errorf("init %s adapter: %w", c.collectionType, err)
	}
	return nil
}

// Sync pulls and applies remote entries, then diffs the native store
// against the baseline and pushes local changes. State advances only
// after each half succeeds, so an aborted cycle re-runs safely.
func (c *collectionSync) Sync(ctx context.Context) error {
	tail, err := c.pull(ctx)
	if err != nil {
		return err
	}
	return c.push(ctx, tail)
}

// pull fetches entries after the local tail, verifies chain linkage as
// they arrive, applies each payload to the native store in chain order,
// and advances the tail past the verified, applied prefix. A chain
// integrity failure halts application for this journal; everything before
// the failure point stays applied.
func (c *collectionSync) pull(ctx context.Context) (string, error) {
	tail, err := c.state.Tail(c.journal.UID)
	if err != nil {
		return "", err
	}

	entries, err := c.client.Entries(ctx, c.journal.UID, tail)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return tail, nil
	}

	prev := tail
	applied := 0
	put := make(map[string]string)
	var del []string
	var fatal error

	for _, e := range entries {
		payload, err := e.Payload(c.cm, c.journal.UID, prev)
		if err != nil {
			// Chain or decryption failure: nothing at or after this
			// entry may be applied.
			fatal = err
			break
		}

		if err := c.apply(ctx, payload, put, &del); err != nil {
			c.log.WithError(err).WithField("item", payload.ItemID).Warn("failed to apply remote change")
		}

		prev = e.UID
		applied++
	}

	if applied > 0 {
		if err := c.state.Advance(c.journal.UID, prev, put, del); err != nil {
			return "", err
		}
		c.log.WithFields(logrus.Fields{"entries": applied, "tail": prev}).Debug("applied remote entries")
	}

	if fatal != nil {
		return "", fatal
	}
	return prev, nil
}

// apply routes one remote payload into the native store and records the
// baseline mutation so the change is not re-detected as local.
func (c *collectionSync) apply(ctx context.Context, payload *journal.SyncEntry, put map[string]string, del *[]string) error {
	switch payload.Action {
	case journal.ActionAdd, journal.ActionChange:
		if err := c.native.ApplyItem(ctx, c.nativeID, payload.ItemID, payload.Content); err != nil {
			return err
		}
		hash, err := nativestore.ComputeHash(ctx, c.native, nativestore.ItemRef{
			CollectionID: c.nativeID,
			ItemID:       payload.ItemID,
		})
		if err != nil {
			return err
		}
		put[payload.ItemID] = hash
		return nil

	case journal.ActionDelete:
		err := c.native.DeleteItem(ctx, c.nativeID, payload.ItemID)
		if err != nil && !errors.Is(err, nativestore.ErrItemNotFound) {
			return err
		}
		delete(put, payload.ItemID)
		*del = append(*del, payload.ItemID)
		return nil

	default:
		return fmt.Errorf("unknown entry action %q", payload.Action)
	}
}

// push diffs the native store against the baseline and appends the local
// changes after tail. A stale-tail rejection re-pulls and retries.
func (c *collectionSync) push(ctx context.Context, tail string) error {
	for attempt := 0; attempt < maxPushAttempts; attempt++ {
		baseline, err := c.state.Baseline(c.journal.UID)
		if err != nil {
			return err
		}
		hashes, failures, err := nativestore.BulkComputeHashes(ctx, c.native, c.nativeID, c.window)
		if err != nil {
			return err
		}
		for _, f := range failures {
			c.log.WithError(f.Err).WithField("item", f.ItemID).Warn("skipping unhashable native item")
		}

		diff := classify(baseline, hashes)
		if diff.Removed, err = c.confirmRemoved(ctx, diff.Removed); err != nil {
			return err
		}
		if diff.Empty() {
			c.log.Debug("no local changes")
			return nil
		}

		entries, put, del, err := c.buildEntries(ctx, diff, tail)
		if err != nil {
			return err
		}

		err = c.client.AppendEntries(ctx, c.journal.UID, entries, tail)
		if errors.Is(err, transport.ErrConflict) {
			c.log.WithField("attempt", attempt+1).Info("push rejected for stale tail, refetching")
			tail, err = c.pull(ctx)
			if err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}

		newTail := entries[len(entries)-1].UID
		if err := c.state.Advance(c.journal.UID, newTail, put, del); err != nil {
			return err
		}
		c.log.WithFields(logrus.Fields{
			"added":    len(diff.Added),
			"modified": len(diff.Modified),
			"removed":  len(diff.Removed),
		}).Info("pushed local changes")
		return nil
	}
	return fmt.Errorf("push for journal %s: %w after %d attempts", c.journal.UID, transport.ErrConflict, maxPushAttempts)
}

// confirmRemoved keeps only baseline items that are actually gone from
// the native store. A windowed listing omits items outside the window,
// and a baseline record may only be dropped when its item was truly
// deleted; tombstoning an out-of-window event would erase it on every
// other device.
func (c *collectionSync) confirmRemoved(ctx context.Context, candidates []string) ([]string, error) {
	if c.window == nil || len(candidates) == 0 {
		return candidates, nil
	}

	removed := candidates[:0]
	for _, itemID := range candidates {
		_, err := c.native.ReadContent(ctx, nativestore.ItemRef{CollectionID: c.nativeID, ItemID: itemID})
		switch {
		case err == nil:
			// Present, just outside the window.
		case errors.Is(err, nativestore.ErrItemNotFound):
			removed = append(removed, itemID)
		default:
			return nil, err
		}
	}
	return removed, nil
}

// buildEntries turns a diff into chain entries after prev, together with
// the baseline mutations to apply once the push succeeds.
func (c *collectionSync) buildEntries(ctx context.Context, diff *Diff, prev string) ([]*journal.Entry, map[string]string, []string, error) {
	// Deterministic order keeps retried pushes byte-comparable.
	sort.Slice(diff.Added, func(i, j int) bool { return diff.Added[i].ItemID < diff.Added[j].ItemID })
	sort.Slice(diff.Modified, func(i, j int) bool { return diff.Modified[i].ItemID < diff.Modified[j].ItemID })
	sort.Strings(diff.Removed)

	var entries []*journal.Entry
	put := make(map[string]string)
	var del []string

	appendOne := func(action journal.Action, itemID, content string) error {
		e, err := journal.NewEntry(c.cm, prev, &journal.SyncEntry{
			Action:  action,
			ItemID:  itemID,
			Content: content,
		})
		if err != nil {
			return err
		}
		entries = append(entries, e)
		prev = e.UID
		return nil
	}

	for _, change := range diff.Added {
		content, err := c.native.ReadContent(ctx, nativestore.ItemRef{CollectionID: c.nativeID, ItemID: change.ItemID})
		if err != nil {
			return nil, nil, nil, err
		}
		if err := appendOne(journal.ActionAdd, change.ItemID, content); err != nil {
			return nil, nil, nil, err
		}
		put[change.ItemID] = change.Hash
	}
	for _, change := range diff.Modified {
		content, err := c.native.ReadContent(ctx, nativestore.ItemRef{CollectionID: c.nativeID, ItemID: change.ItemID})
		if err != nil {
			return nil, nil, nil, err
		}
		if err := appendOne(journal.ActionChange, change.ItemID, content); err != nil {
			return nil, nil, nil, err
		}
		put[change.ItemID] = change.Hash
	}
	for _, itemID := range diff.Removed {
		if err := appendOne(journal.ActionDelete, itemID, ""); err != nil {
			return nil, nil, nil, err
		}
		del = append(del, itemID)
	}

	return entries, put, del, nil
}

// ClearDeviceCollections wipes the native collection and discards the
// local state so the next sync starts from scratch.
func (c *collectionSync) ClearDeviceCollections(ctx context.Context) error {
	if err := c.native.ClearCollection(ctx, c.nativeID); err != nil {
		return err
	}
	if err := c.state.Reset(c.journal.UID); err != nil {
		return err
	}
	c.log.Info("cleared device collection")
	return nil
}
