package quillsync

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quillsync/quillsync/config"
	"github.com/quillsync/quillsync/crypto"
	"github.com/quillsync/quillsync/engine"
	"github.com/quillsync/quillsync/nativestore"
	"github.com/quillsync/quillsync/store"
	"github.com/quillsync/quillsync/transport"
)

// Options contains configuration options for creating a Client.
type Options struct {
	// Account is the account identifier, normally an email address.
	Account string
	// Password is the account password. It is consumed by key
	// derivation at construction and not retained.
	Password string
	// Salt feeds key derivation together with the password.
	Salt string

	// Server is the sync server. Required.
	Server transport.Client
	// Native is the device-side collection store. Required.
	Native nativestore.Store

	// DataDir holds the on-disk sync state. Empty means state is kept
	// in memory only, which forces a full reconcile every start.
	DataDir string

	// Logger defaults to a fresh logrus logger at info level.
	Logger *logrus.Logger
	// CalendarWindowDays bounds which native calendar events the diff
	// considers, centered on the current time. Zero means unbounded.
	CalendarWindowDays int
}

// NewOptions returns an Options with defaults applied.
func NewOptions() *Options {
	return &Options{}
}

// FromConfig copies file-backed settings into the options. Server and
// Native still have to be supplied by the caller.
func (o *Options) FromConfig(cfg config.Config) {
	o.Account = cfg.Account
	o.Salt = cfg.Salt
	o.DataDir = cfg.StatePath()
	o.CalendarWindowDays = cfg.CalendarWindowDays
	if o.Logger == nil {
		o.Logger = logrus.New()
	}
	o.Logger.SetLevel(cfg.ParsedLogLevel())
}

// Client is the top-level facade: it derives the master key, opens local
// state, and drives sync cycles for one account.
type Client struct {
	manager *engine.Manager
	state   store.State
	salt    string
	log     *logrus.Logger
}

// New derives the account's master key from the password and builds a
// ready Client. Key derivation is deliberately slow; construct once and
// reuse the Client across sync cycles.
func New(options *Options) (*Client, error) {
	if options == nil {
		return nil, errors.New("quillsync: options are required")
	}
	if options.Password == "" {
		return nil, errors.New("quillsync: password is required")
	}
	if options.Server == nil || options.Native == nil {
		return nil, errors.New("quillsync: server and native store are required")
	}

	logger := options.Logger
	if logger == nil {
		logger = logrus.New()
	}

	derived, err := crypto.DeriveKey(options.Salt, options.Password)
	if err != nil {
		return nil, err
	}

	var state store.State
	if options.DataDir != "" {
		state, err = store.OpenBadger(options.DataDir, logger)
		if err != nil {
			crypto.ZeroBytes(derived)
			return nil, err
		}
	} else {
		state = store.NewMemoryState()
	}

	var window *nativestore.TimeRange
	if options.CalendarWindowDays > 0 {
		half := float64(options.CalendarWindowDays) * 24 * 60 * 60 / 2
		now := float64(time.Now().Unix())
		window = &nativestore.TimeRange{From: now - half, To: now + half}
	}

	manager, err := engine.NewManager(engine.Config{
		Account:        options.Account,
		DerivedKey:     derived,
		Client:         options.Server,
		State:          state,
		Native:         options.Native,
		Logger:         logger,
		CalendarWindow: window,
	})
	if err != nil {
		crypto.ZeroBytes(derived)
		state.Close()
		return nil, err
	}

	return &Client{
		manager: manager,
		state:   state,
		salt:    options.Salt,
		log:     logger,
	}, nil
}

// Sync runs one sync cycle. The boolean reports completion: false with a
// nil error means the server was unreachable and the cycle may simply be
// retried. A non-nil error lists journals that failed fatally; the rest
// synced normally.
func (c *Client) Sync(ctx context.Context) (bool, error) {
	return c.manager.Sync(ctx)
}

// ClearDeviceCollections wipes the synced native collections on this
// device and resets local sync state. Server data is untouched; the next
// sync repopulates the device.
func (c *Client) ClearDeviceCollections(ctx context.Context) error {
	return c.manager.ClearDeviceCollections(ctx)
}

// ChangePassword re-encrypts the account's key material under a key
// derived from newPassword. oldPassword must be the current password; a
// mismatch fails with an authentication error and changes nothing.
func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	oldDerived, err := crypto.DeriveKey(c.salt, oldPassword)
	if err != nil {
		return err
	}
	defer crypto.ZeroBytes(oldDerived)

	newDerived, err := crypto.DeriveKey(c.salt, newPassword)
	if err != nil {
		return err
	}

	if err := c.manager.ChangePassword(ctx, oldDerived, newDerived); err != nil {
		crypto.ZeroBytes(newDerived)
		return err
	}
	return nil
}

// Close wipes the session's key material and closes the local state
// database. The Client must not be used afterwards.
func (c *Client) Close() error {
	c.manager.Wipe()
	return c.state.Close()
}
