package store

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

// Key layout: "tail:<journal>" holds the tail uid,
// "hash:<journal>:<item>" holds one baseline record.
const (
	tailPrefix = "tail:"
	hashPrefix = "hash:"
)

// BadgerState is a State backed by an embedded BadgerDB.
type BadgerState struct {
	db  *badger.DB
	log *logrus.Logger
}

// OpenBadger opens (or creates) the state database at dir.
func OpenBadger(dir string, logger *logrus.Logger) (*BadgerState, error) {
	if logger == nil {
		logger = logrus.New()
	}

	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	opts.SyncWrites = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open state store at %s: %w", dir, err)
	}

	logger.WithField("dir", dir).Debug("opened sync state store")
	return &BadgerState{db: db, log: logger}, nil
}

func tailKey(journalUID string) []byte {
	return []byte(tailPrefix + journalUID)
}

func hashKey(journalUID, itemID string) []byte {
	return []byte(hashPrefix + journalUID + ":" + itemID)
}

func (s *BadgerState) Tail(journalUID string) (string, error) {
	var tail string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(tailKey(journalUID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		tail = string(val)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("read tail for %s: %w", journalUID, err)
	}
	return tail, nil
}

func (s *BadgerState) Baseline(journalUID string) (map[string]string, error) {
	prefix := []byte(hashPrefix + journalUID + ":")
	baseline := make(map[string]string)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			itemID := string(item.Key()[len(prefix):])
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			baseline[itemID] = string(val)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read baseline for %s: %w", journalUID, err)
	}
	return baseline, nil
}

func (s *BadgerState) Advance(journalUID, tail string, put map[string]string, del []string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if tail != "" {
			if err := txn.Set(tailKey(journalUID), []byte(tail)); err != nil {
				return err
			}
		}
		for itemID, hash := range put {
			if err := txn.Set(hashKey(journalUID, itemID), []byte(hash)); err != nil {
				return err
			}
		}
		for _, itemID := range del {
			if err := txn.Delete(hashKey(journalUID, itemID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("advance state for %s: %w", journalUID, err)
	}

	s.log.WithFields(logrus.Fields{
		"journal": journalUID,
		"tail":    tail,
		"puts":    len(put),
		"dels":    len(del),
	}).Debug("advanced sync state")
	return nil
}

func (s *BadgerState) Reset(journalUID string) error {
	baseline, err := s.Baseline(journalUID)
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(tailKey(journalUID)); err != nil {
			return err
		}
		for itemID := range baseline {
			if err := txn.Delete(hashKey(journalUID, itemID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("reset state for %s: %w", journalUID, err)
	}
	return nil
}

func (s *BadgerState) Close() error {
	return s.db.Close()
}
