package store

import "sync"

type memJournalState struct {
	tail     string
	baseline map[string]string
}

// MemoryState is an in-memory State for tests. Safe for concurrent use.
type MemoryState struct {
	mu       sync.RWMutex
	journals map[string]*memJournalState
	closed   bool
}

// NewMemoryState returns an empty MemoryState.
func NewMemoryState() *MemoryState {
	return &MemoryState{journals: make(map[string]*memJournalState)}
}

func (m *MemoryState) journal(uid string) *memJournalState {
	j, ok := m.journals[uid]
	if !ok {
		j = &memJournalState{baseline: make(map[string]string)}
		m.journals[uid] = j
	}
	return j
}

func (m *MemoryState) Tail(journalUID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", ErrClosed
	}
	if j, ok := m.journals[journalUID]; ok {
		return j.tail, nil
	}
	return "", nil
}

func (m *MemoryState) Baseline(journalUID string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	out := make(map[string]string)
	if j, ok := m.journals[journalUID]; ok {
		for k, v := range j.baseline {
			out[k] = v
		}
	}
	return out, nil
}

func (m *MemoryState) Advance(journalUID, tail string, put map[string]string, del []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	j := m.journal(journalUID)
	if tail != "" {
		j.tail = tail
	}
	for itemID, hash := range put {
		j.baseline[itemID] = hash
	}
	for _, itemID := range del {
		delete(j.baseline, itemID)
	}
	return nil
}

func (m *MemoryState) Reset(journalUID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.journals, journalUID)
	return nil
}

func (m *MemoryState) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
