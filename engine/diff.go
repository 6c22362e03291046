package engine

import "github.com/quillsync/quillsync/nativestore"

// Change is one locally originated item change discovered by the diff.
type Change struct {
	ItemID string
	Hash   string
}

// Diff classifies the native store's current items against the item-hash
// baseline of the last successful sync.
type Diff struct {
	Added    []Change
	Modified []Change
	Removed  []string
}

// Empty reports whether the diff contains no changes.
func (d *Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Modified) == 0 && len(d.Removed) == 0
}

// classify compares current item hashes with the baseline. Items present
// now but not in the baseline are added; present in both with a different
// hash are modified; present only in the baseline are removed. Unchanged
// items appear in neither list and are never re-transmitted.
func classify(baseline map[string]string, current []nativestore.ItemHash) *Diff {
	d := &Diff{}
	seen := make(map[string]bool, len(current))

	for _, c := range current {
		seen[c.ItemID] = true
		prev, ok := baseline[c.ItemID]
		switch {
		case !ok:
			d.Added = append(d.Added, Change{ItemID: c.ItemID, Hash: c.Hash})
		case prev != c.Hash:
			d.Modified = append(d.Modified, Change{ItemID: c.ItemID, Hash: c.Hash})
		}
	}

	for itemID := range baseline {
		if !seen[itemID] {
			d.Removed = append(d.Removed, itemID)
		}
	}
	return d
}
