package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/quillsync/quillsync/journal"
)

// MemoryBackend is an in-process Client implementation holding server
// state in memory. It enforces the same append precondition a real server
// does, which makes it the reference backend for engine tests: several
// clients pointed at one MemoryBackend exercise the full optimistic
// concurrency path.
type MemoryBackend struct {
	mu        sync.Mutex
	userInfos map[string]*journal.UserInfo
	journals  map[string]*journal.Journal
	entries   map[string][]*journal.Entry
	failErr   error
}

// NewMemoryBackend returns an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		userInfos: make(map[string]*journal.UserInfo),
		journals:  make(map[string]*journal.Journal),
		entries:   make(map[string][]*journal.Entry),
	}
}

// SetError makes every subsequent call fail with err until cleared with
// SetError(nil). Used to simulate connectivity loss.
func (b *MemoryBackend) SetError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failErr = err
}

// EntryCount reports how many entries a journal holds, for test
// assertions about push behavior.
func (b *MemoryBackend) EntryCount(journalUID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries[journalUID])
}

func (b *MemoryBackend) guard() error {
	if b.failErr != nil {
		return b.failErr
	}
	return nil
}

func (b *MemoryBackend) UserInfo(_ context.Context, owner string) (*journal.UserInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.guard(); err != nil {
		return nil, err
	}

	info, ok := b.userInfos[owner]
	if !ok {
		return nil, fmt.Errorf("%w: user info for %s", ErrNotFound, owner)
	}
	cp := *info
	return &cp, nil
}

func (b *MemoryBackend) CreateUserInfo(_ context.Context, info *journal.UserInfo) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.guard(); err != nil {
		return err
	}

	if _, ok := b.userInfos[info.Owner]; ok {
		return fmt.Errorf("%w: user info for %s", ErrExists, info.Owner)
	}
	cp := *info
	b.userInfos[info.Owner] = &cp
	return nil
}

func (b *MemoryBackend) UpdateUserInfo(_ context.Context, info *journal.UserInfo) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.guard(); err != nil {
		return err
	}

	if _, ok := b.userInfos[info.Owner]; !ok {
		return fmt.Errorf("%w: user info for %s", ErrNotFound, info.Owner)
	}
	cp := *info
	b.userInfos[info.Owner] = &cp
	return nil
}

func (b *MemoryBackend) Journals(_ context.Context) ([]*journal.Journal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.guard(); err != nil {
		return nil, err
	}

	out := make([]*journal.Journal, 0, len(b.journals))
	for _, j := range b.journals {
		cp := *j
		out = append(out, &cp)
	}
	return out, nil
}

func (b *MemoryBackend) CreateJournal(_ context.Context, j *journal.Journal) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.guard(); err != nil {
		return err
	}

	if _, ok := b.journals[j.UID]; ok {
		return fmt.Errorf("%w: journal %s", ErrExists, j.UID)
	}
	cp := *j
	b.journals[j.UID] = &cp
	return nil
}

func (b *MemoryBackend) Entries(_ context.Context, journalUID, afterUID string) ([]*journal.Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.guard(); err != nil {
		return nil, err
	}

	if _, ok := b.journals[journalUID]; !ok {
		return nil, fmt.Errorf("%w: journal %s", ErrNotFound, journalUID)
	}

	chain := b.entries[journalUID]
	if afterUID == journal.RootUID {
		return copyEntries(chain), nil
	}

	for i, e := range chain {
		if e.UID == afterUID {
			return copyEntries(chain[i+1:]), nil
		}
	}
	return nil, fmt.Errorf("%w: entry %s in journal %s", ErrNotFound, afterUID, journalUID)
}

func (b *MemoryBackend) AppendEntries(_ context.Context, journalUID string, entries []*journal.Entry, prevUID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.guard(); err != nil {
		return err
	}

	if _, ok := b.journals[journalUID]; !ok {
		return fmt.Errorf("%w: journal %s", ErrNotFound, journalUID)
	}

	chain := b.entries[journalUID]
	tail := journal.RootUID
	if len(chain) > 0 {
		tail = chain[len(chain)-1].UID
	}
	if prevUID != tail {
		return fmt.Errorf("%w: journal %s tail is %q, push claimed %q", ErrConflict, journalUID, tail, prevUID)
	}

	b.entries[journalUID] = append(chain, copyEntries(entries)...)
	return nil
}

func copyEntries(in []*journal.Entry) []*journal.Entry {
	out := make([]*journal.Entry, len(in))
	for i, e := range in {
		cp := *e
		cp.Content = append([]byte{}, e.Content...)
		out[i] = &cp
	}
	return out
}
