package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/quillsync/quillsync/crypto"
	"github.com/quillsync/quillsync/journal"
	"github.com/quillsync/quillsync/nativestore"
	"github.com/quillsync/quillsync/store"
	"github.com/quillsync/quillsync/transport"
)

// journalKeySize is the length of the fresh random key generated for each
// new journal before it is wrapped for the owner.
const journalKeySize = 32

// Config assembles a Manager's collaborators. Client, State, Native,
// Account, and DerivedKey are required.
type Config struct {
	Account    string
	DerivedKey []byte
	Client     transport.Client
	State      store.State
	Native     nativestore.Store

	// Rand defaults to the system CSPRNG.
	Rand crypto.RandomSource
	// Logger defaults to a fresh logrus logger.
	Logger *logrus.Logger
	// Registry defaults to DefaultRegistry.
	Registry *Registry
	// NativeCollections maps each collection type to its native-store
	// collection id. Defaults to the lowercased type name.
	NativeCollections map[journal.CollectionType]string
	// CalendarWindow bounds which native events the calendar diff
	// considers. Nil means unbounded.
	CalendarWindow *nativestore.TimeRange
}

// Manager runs sync cycles for one account.
type Manager struct {
	account  string
	derived  []byte
	client   transport.Client
	state    store.State
	native   nativestore.Store
	rnd      crypto.RandomSource
	log      *logrus.Logger
	registry *Registry

	nativeIDs      map[journal.CollectionType]string
	calendarWindow *nativestore.TimeRange

	mu       sync.Mutex
	userInfo *journal.UserInfo
	keyPair  *crypto.KeyPair
}

// NewManager validates cfg and builds a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Account == "" {
		return nil, errors.New("engine: account is required")
	}
	if len(cfg.DerivedKey) == 0 {
		return nil, errors.New("engine: derived key is required")
	}
	if cfg.Client == nil || cfg.State == nil || cfg.Native == nil {
		return nil, errors.New("engine: client, state, and native store are required")
	}

	if cfg.Rand == nil {
		cfg.Rand = crypto.SystemRandom()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Registry == nil {
		cfg.Registry = DefaultRegistry
	}

	nativeIDs := map[journal.CollectionType]string{
		journal.CollectionAddressBook: "addressbook",
		journal.CollectionCalendar:    "calendar",
		journal.CollectionTasks:       "tasks",
	}
	for t, id := range cfg.NativeCollections {
		nativeIDs[t] = id
	}

	return &Manager{
		account:        cfg.Account,
		derived:        cfg.DerivedKey,
		client:         cfg.Client,
		state:          cfg.State,
		native:         cfg.Native,
		rnd:            cfg.Rand,
		log:            cfg.Logger,
		registry:       cfg.Registry,
		nativeIDs:      nativeIDs,
		calendarWindow: cfg.CalendarWindow,
	}, nil
}

// Sync runs one sync cycle. The boolean reports completion: false with a
// nil error means the cycle was aborted by a connectivity failure and may
// simply be retried later. A non-nil error carries fatal per-journal
// failures (crypto, chain integrity, version) or a precondition failure;
// journals not named in it synced normally.
func (m *Manager) Sync(ctx context.Context) (bool, error) {
	release, err := m.registry.Acquire(m.account)
	if err != nil {
		return false, err
	}
	defer release()

	if err := m.rnd.Reseed(); err != nil {
		return false, err
	}

	adapters, journalErrs, err := m.prepare(ctx)
	if err != nil {
		if isNetworkErr(err) {
			m.log.WithError(err).Info("sync aborted: server unreachable")
			return false, nil
		}
		return false, err
	}

	// The three collection types share no mutable state and sync in
	// parallel. Entries within each journal stay strictly ordered inside
	// its own adapter.
	var wg sync.WaitGroup
	errCh := make(chan error, len(adapters))
	for _, a := range adapters {
		wg.Add(1)
		go func(a CollectionAdapter) {
			defer wg.Done()
			if err := a.Init(ctx); err != nil {
				errCh <- fmt.Errorf("%s: %w", a.Type(), err)
				return
			}
			if err := a.Sync(ctx); err != nil {
				errCh <- fmt.Errorf("%s: %w", a.Type(), err)
			}
		}(a)
	}
	wg.Wait()
	close(errCh)

	var network bool
	for err := range errCh {
		if isNetworkErr(err) {
			network = true
			continue
		}
		journalErrs = append(journalErrs, err)
	}

	if network {
		m.log.Info("sync aborted: connectivity lost mid-cycle")
		return false, errors.Join(journalErrs...)
	}
	return true, errors.Join(journalErrs...)
}

// ClearDeviceCollections wipes every native collection this account syncs
// and resets the local baselines and tails.
func (m *Manager) ClearDeviceCollections(ctx context.Context) error {
	release, err := m.registry.Acquire(m.account)
	if err != nil {
		return err
	}
	defer release()

	adapters, journalErrs, err := m.prepare(ctx)
	if err != nil {
		return err
	}
	for _, a := range adapters {
		if err := a.ClearDeviceCollections(ctx); err != nil {
			journalErrs = append(journalErrs, fmt.Errorf("%s: %w", a.Type(), err))
		}
	}
	return errors.Join(journalErrs...)
}

// prepare ensures the account record and journals exist and builds one
// adapter per recognized journal. Journals this client cannot operate on
// (version too new, undecryptable) are skipped and reported, never fatal
// to the rest.
func (m *Manager) prepare(ctx context.Context) ([]CollectionAdapter, []error, error) {
	if err := m.ensureUserInfo(ctx); err != nil {
		return nil, nil, err
	}

	journals, err := m.client.Journals(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(journals) == 0 {
		if journals, err = m.bootstrapJournals(ctx); err != nil {
			return nil, nil, err
		}
	}

	m.mu.Lock()
	derived, keyPair := m.derived, m.keyPair
	m.mu.Unlock()

	var adapters []CollectionAdapter
	var journalErrs []error
	seen := make(map[journal.CollectionType]bool)

	for _, j := range journals {
		cm, err := j.CryptoManager(m.rnd, derived, keyPair)
		if err != nil {
			journalErrs = append(journalErrs, fmt.Errorf("journal %s: %w", j.UID, err))
			continue
		}
		colInfo, err := j.Info(cm)
		if err != nil {
			journalErrs = append(journalErrs, err)
			continue
		}
		if seen[colInfo.Type] {
			m.log.WithField("journal", j.UID).Warn("ignoring extra journal for already-synced collection type")
			continue
		}

		deps := AdapterDeps{
			Journal:  j,
			Crypto:   cm,
			State:    m.state,
			Native:   m.native,
			Client:   m.client,
			NativeID: m.nativeIDs[colInfo.Type],
			Log:      m.log,
		}
		switch colInfo.Type {
		case journal.CollectionCalendar:
			adapters = append(adapters, NewCalendarAdapter(deps, m.calendarWindow))
		case journal.CollectionTasks:
			adapters = append(adapters, NewTaskListAdapter(deps))
		case journal.CollectionAddressBook:
			adapters = append(adapters, NewAddressBookAdapter(deps))
		default:
			m.log.WithFields(logrus.Fields{"journal": j.UID, "type": colInfo.Type}).Warn("ignoring journal of unknown collection type")
			continue
		}
		seen[colInfo.Type] = true
	}

	return adapters, journalErrs, nil
}

// ensureUserInfo fetches the account record, creating it (with a fresh
// key pair) on first contact, and unwraps the private key.
func (m *Manager) ensureUserInfo(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keyPair != nil {
		return nil
	}

	info, err := m.client.UserInfo(ctx, m.account)
	if errors.Is(err, transport.ErrNotFound) {
		info, err = m.createUserInfo(ctx)
	}
	if err != nil {
		return err
	}

	cm, err := info.CryptoManager(m.rnd, m.derived)
	if err != nil {
		return err
	}
	keyPair, err := info.KeyPair(cm)
	if err != nil {
		return err
	}

	m.userInfo = info
	m.keyPair = keyPair
	return nil
}

func (m *Manager) createUserInfo(ctx context.Context) (*journal.UserInfo, error) {
	m.log.WithField("account", m.account).Info("no account record found, generating key pair")

	keyPair, err := crypto.NewAsymmetricManager(m.rnd).GenerateKeyPair()
	if err != nil {
		return nil, err
	}

	info := journal.NewUserInfo(m.account)
	cm, err := info.CryptoManager(m.rnd, m.derived)
	if err != nil {
		return nil, err
	}
	if err := info.SetKeyPair(cm, keyPair); err != nil {
		return nil, err
	}
	if err := m.client.CreateUserInfo(ctx, info); err != nil {
		return nil, err
	}
	return info, nil
}

// defaultColors are the display colors assigned to bootstrapped
// journals. Address books have no color in the native stores.
var defaultColors = map[journal.CollectionType]string{
	journal.CollectionCalendar: "#8BC34A",
	journal.CollectionTasks:    "#F4511E",
}

// bootstrapJournals creates the default journal for every collection
// type: fresh collection info encrypted under a fresh per-journal key,
// wrapped for the owner's public key.
func (m *Manager) bootstrapJournals(ctx context.Context) ([]*journal.Journal, error) {
	am := crypto.NewAsymmetricManager(m.rnd)
	var journals []*journal.Journal

	for _, t := range journal.CollectionTypes {
		uid, err := crypto.GenUID(m.rnd)
		if err != nil {
			return nil, err
		}

		journalKey := make([]byte, journalKeySize)
		if _, err := m.rnd.Read(journalKey); err != nil {
			return nil, fmt.Errorf("%w: %v", crypto.ErrEntropy, err)
		}

		cm, err := crypto.FromDerivedKey(m.rnd, journalKey, crypto.CurrentVersion)
		if err != nil {
			return nil, err
		}

		j := journal.New(uid)
		j.Owner = m.account
		if err := j.SetInfo(cm, &journal.CollectionInfo{
			Type:        t,
			DisplayName: "Default",
			Color:       defaultColors[t],
			UID:         uid,
		}); err != nil {
			return nil, err
		}
		if j.Key, err = am.EncryptBytes(m.keyPair.PublicKey, journalKey); err != nil {
			return nil, err
		}

		if err := m.client.CreateJournal(ctx, j); err != nil {
			return nil, err
		}
		m.log.WithFields(logrus.Fields{"journal": uid, "type": t}).Info("created default journal")
		journals = append(journals, j)
	}
	return journals, nil
}

// ChangePassword verifies that oldDerived unwraps the account's private
// key, re-encrypts it under newDerived, and publishes the updated record.
// A verification failure is an authentication error, locally recoverable.
// It claims the account's session slot: rewriting the master key while a
// sync cycle reads it would corrupt the session.
func (m *Manager) ChangePassword(ctx context.Context, oldDerived, newDerived []byte) error {
	release, err := m.registry.Acquire(m.account)
	if err != nil {
		return err
	}
	defer release()

	info, err := m.client.UserInfo(ctx, m.account)
	if err != nil {
		return err
	}

	oldCM, err := info.CryptoManager(m.rnd, oldDerived)
	if err != nil {
		return err
	}
	keyPair, err := info.KeyPair(oldCM)
	if err != nil {
		return err
	}

	newCM, err := info.CryptoManager(m.rnd, newDerived)
	if err != nil {
		return err
	}
	if err := info.SetKeyPair(newCM, keyPair); err != nil {
		return err
	}
	if err := m.client.UpdateUserInfo(ctx, info); err != nil {
		return err
	}

	m.mu.Lock()
	m.derived = newDerived
	m.userInfo = info
	m.keyPair = keyPair
	m.mu.Unlock()
	return nil
}

// Wipe erases the session's key material. The manager must not be used
// afterwards.
func (m *Manager) Wipe() {
	m.mu.Lock()
	defer m.mu.Unlock()
	crypto.ZeroBytes(m.derived)
	if m.keyPair != nil {
		m.keyPair.Wipe()
	}
}

func isNetworkErr(err error) bool {
	return errors.Is(err, transport.ErrNetwork)
}
