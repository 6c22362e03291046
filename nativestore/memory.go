package nativestore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/quillsync/quillsync/contenthash"
)

// Kind selects which record schema a collection holds.
type Kind string

const (
	KindCalendar  Kind = "calendar"
	KindReminders Kind = "reminders"
	KindContacts  Kind = "contacts"
)

type memItem struct {
	record  contenthash.Record
	content string
}

type memCollection struct {
	kind  Kind
	items map[string]*memItem
}

// MemoryStore is an in-memory Store. Items are interchanged as JSON
// encodings of their canonical record structs. Safe for concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memCollection)}
}

// AddCollection registers an empty collection of the given kind.
func (m *MemoryStore) AddCollection(collectionID string, kind Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[collectionID]; !ok {
		m.collections[collectionID] = &memCollection{kind: kind, items: make(map[string]*memItem)}
	}
}

// PutRecord inserts or replaces an item and returns its id. A generated
// uuid is assigned when itemID is empty.
func (m *MemoryStore) PutRecord(collectionID, itemID string, record contenthash.Record) (string, error) {
	content, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	col, ok := m.collections[collectionID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrCollectionNotFound, collectionID)
	}
	if itemID == "" {
		itemID = uuid.NewString()
	}
	col.items[itemID] = &memItem{record: record, content: string(content)}
	return itemID, nil
}

func (m *MemoryStore) ListItems(_ context.Context, collectionID string, rng *TimeRange) ([]ItemRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	col, ok := m.collections[collectionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collectionID)
	}

	refs := make([]ItemRef, 0, len(col.items))
	for id, item := range col.items {
		if rng != nil {
			if ev, ok := item.record.(*contenthash.Event); ok {
				if ev.StartDate < rng.From || ev.StartDate > rng.To {
					continue
				}
			}
		}
		refs = append(refs, ItemRef{CollectionID: collectionID, ItemID: id})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ItemID < refs[j].ItemID })
	return refs, nil
}

func (m *MemoryStore) ReadCanonicalFields(_ context.Context, ref ItemRef) (contenthash.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, err := m.lookup(ref)
	if err != nil {
		return nil, err
	}
	return item.record, nil
}

func (m *MemoryStore) ReadContent(_ context.Context, ref ItemRef) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, err := m.lookup(ref)
	if err != nil {
		return "", err
	}
	return item.content, nil
}

func (m *MemoryStore) ApplyItem(_ context.Context, collectionID, itemID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	col, ok := m.collections[collectionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collectionID)
	}

	record, err := decodeRecord(col.kind, content)
	if err != nil {
		return err
	}
	col.items[itemID] = &memItem{record: record, content: content}
	return nil
}

func (m *MemoryStore) DeleteItem(_ context.Context, collectionID, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	col, ok := m.collections[collectionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collectionID)
	}
	if _, ok := col.items[itemID]; !ok {
		return fmt.Errorf("%w: %s/%s", ErrItemNotFound, collectionID, itemID)
	}
	delete(col.items, itemID)
	return nil
}

func (m *MemoryStore) ClearCollection(_ context.Context, collectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	col, ok := m.collections[collectionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collectionID)
	}
	col.items = make(map[string]*memItem)
	return nil
}

func (m *MemoryStore) lookup(ref ItemRef) (*memItem, error) {
	col, ok := m.collections[ref.CollectionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, ref.CollectionID)
	}
	item, ok := col.items[ref.ItemID]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrItemNotFound, ref.CollectionID, ref.ItemID)
	}
	return item, nil
}

func decodeRecord(kind Kind, content string) (contenthash.Record, error) {
	var record contenthash.Record
	switch kind {
	case KindCalendar:
		record = &contenthash.Event{}
	case KindReminders:
		record = &contenthash.Reminder{}
	case KindContacts:
		record = &contenthash.Contact{}
	default:
		return nil, fmt.Errorf("%w: unknown collection kind %q", ErrFetchFailed, kind)
	}
	if err := json.Unmarshal([]byte(content), record); err != nil {
		return nil, fmt.Errorf("%w: decode item content: %v", ErrFetchFailed, err)
	}
	return record, nil
}
