// Package nativestore defines the boundary to the device's native
// calendar, reminder, and contact store. The engine consumes this
// contract; the real implementation lives with the host platform. An
// in-memory implementation is provided for tests and demos.
package nativestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/quillsync/quillsync/contenthash"
)

var (
	// ErrItemNotFound indicates the referenced item does not exist.
	ErrItemNotFound = errors.New("native item not found")
	// ErrCollectionNotFound indicates the referenced collection does not exist.
	ErrCollectionNotFound = errors.New("native collection not found")
	// ErrFetchFailed indicates the native store could not be read.
	ErrFetchFailed = errors.New("native store fetch failed")
)

// ItemRef identifies one item within a native collection.
type ItemRef struct {
	CollectionID string
	ItemID       string
}

// TimeRange bounds a listing to items occurring between From and To,
// both seconds since the Unix epoch. A nil *TimeRange means unbounded.
type TimeRange struct {
	From float64
	To   float64
}

// Store is the native-store collaborator contract.
type Store interface {
	// ListItems enumerates the items of a collection, optionally limited
	// to a time range (meaningful for calendars).
	ListItems(ctx context.Context, collectionID string, rng *TimeRange) ([]ItemRef, error)

	// ReadCanonicalFields returns the item's schema-tagged field set for
	// content hashing.
	ReadCanonicalFields(ctx context.Context, ref ItemRef) (contenthash.Record, error)

	// ReadContent returns the item's serialized interchange form, the
	// payload carried inside sync entries.
	ReadContent(ctx context.Context, ref ItemRef) (string, error)

	// ApplyItem creates or updates an item from its serialized form
	// (remote-origin changes flowing into the device).
	ApplyItem(ctx context.Context, collectionID, itemID, content string) error

	// DeleteItem removes an item. Deleting an absent item returns
	// ErrItemNotFound.
	DeleteItem(ctx context.Context, collectionID, itemID string) error

	// ClearCollection removes every item in a collection.
	ClearCollection(ctx context.Context, collectionID string) error
}

// ItemHash pairs an item with its content digest.
type ItemHash struct {
	ItemID string
	Hash   string
}

// ItemFailure records a per-item error from a bulk operation. Bulk
// operations never abort silently on one bad item; failures are collected
// and reported alongside the successes.
type ItemFailure struct {
	ItemID string
	Err    error
}

// ComputeHash reads an item's canonical fields and returns its content
// digest.
func ComputeHash(ctx context.Context, s Store, ref ItemRef) (string, error) {
	record, err := s.ReadCanonicalFields(ctx, ref)
	if err != nil {
		return "", err
	}
	h, err := contenthash.Hash(record)
	if err != nil {
		return "", fmt.Errorf("hash item %s: %w", ref.ItemID, err)
	}
	return h, nil
}

// BulkComputeHashes hashes every item in a collection, de-duplicated by
// item identity. Per-item failures do not abort the batch.
func BulkComputeHashes(ctx context.Context, s Store, collectionID string, rng *TimeRange) ([]ItemHash, []ItemFailure, error) {
	refs, err := s.ListItems(ctx, collectionID, rng)
	if err != nil {
		return nil, nil, err
	}

	seen := make(map[string]bool, len(refs))
	hashes := make([]ItemHash, 0, len(refs))
	var failures []ItemFailure
	for _, ref := range refs {
		if seen[ref.ItemID] {
			continue
		}
		seen[ref.ItemID] = true

		h, err := ComputeHash(ctx, s, ref)
		if err != nil {
			failures = append(failures, ItemFailure{ItemID: ref.ItemID, Err: err})
			continue
		}
		hashes = append(hashes, ItemHash{ItemID: ref.ItemID, Hash: h})
	}
	return hashes, failures, nil
}
