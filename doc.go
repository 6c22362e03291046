// Package quillsync implements an end-to-end encrypted synchronization
// client for personal data collections: calendars, task lists, and
// address books.
//
// All encryption happens on the client. The server stores only opaque
// journals: per-collection append-only logs whose entries are encrypted
// and chained by keyed integrity tags, so the server can neither read
// content nor reorder history undetected. Keys derive from the account
// password via scrypt; journals shared by other accounts arrive with
// their symmetric key wrapped under this account's public key.
//
// # Getting Started
//
// Create a client with options and run sync cycles:
//
//	options := quillsync.NewOptions()
//	options.Account = "me@example.com"
//	options.Password = "correct horse battery staple"
//	options.Salt = "abc123"
//	options.Server = backend
//	options.Native = native
//	options.DataDir = "/var/lib/quillsync"
//
//	client, err := quillsync.New(options)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	completed, err := client.Sync(ctx)
//	if err != nil {
//	    log.Printf("some journals failed: %v", err)
//	}
//	if !completed {
//	    // Server unreachable; retry later.
//	}
//
// # Core Types
//
// The package defines the top-level surface:
//
//   - [Client]: facade over key derivation, local state, and the sync engine
//   - [Options]: configuration for creating a new Client
//
// The subpackages hold the machinery: crypto (key derivation and the
// authenticated encryption scheme), journal (the chained entry model),
// contenthash (canonical content hashing for change detection),
// nativestore (device-side collection access), store (local sync state),
// transport (server access), and engine (the reconciliation loop).
package quillsync
