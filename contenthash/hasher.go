package contenthash

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
)

// Record is a native record that can present its semantically meaningful
// fields in canonical order.
type Record interface {
	// CanonicalFields returns the record's hashable fields as a flat
	// structure of MessagePack-encodable values, with every unordered
	// sub-collection already canonically sorted.
	CanonicalFields() ([]interface{}, error)
}

// Hash computes the deterministic content digest of a record: the
// MessagePack encoding of its canonical fields, hashed with SHA-256 and
// returned as a lowercase hex string.
func Hash(r Record) (string, error) {
	fields, err := r.CanonicalFields()
	if err != nil {
		return "", err
	}
	packed, err := msgpack.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("pack canonical fields: %w", err)
	}
	sum := sha256.Sum256(packed)
	return hex.EncodeToString(sum[:]), nil
}

// sortedCollection serializes each element independently, sorts the
// serialized elements by their byte representation, and returns them as
// raw messages for inclusion in the outer structure. This is what makes
// the digest order-invariant for unordered native collections.
func sortedCollection(elems []interface{}) ([]msgpack.RawMessage, error) {
	packed := make([]msgpack.RawMessage, 0, len(elems))
	for _, e := range elems {
		b, err := msgpack.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("pack collection element: %w", err)
		}
		packed = append(packed, b)
	}
	sort.Slice(packed, func(i, j int) bool {
		return bytes.Compare(packed[i], packed[j]) < 0
	})
	return packed, nil
}

func stringOrNil(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func sortedInts(ns []int) (interface{}, error) {
	if ns == nil {
		return nil, nil
	}
	elems := make([]interface{}, len(ns))
	for i, n := range ns {
		elems[i] = n
	}
	return sortedCollection(elems)
}
