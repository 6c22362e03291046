package crypto

import (
	"errors"
	"fmt"
)

var (
	// ErrDecryption indicates malformed, truncated, or undecryptable ciphertext.
	ErrDecryption = errors.New("decryption failed")
	// ErrCrypto indicates a malformed key or an oversized asymmetric payload.
	ErrCrypto = errors.New("crypto operation failed")
	// ErrEntropy indicates the random source could not be (re)seeded from
	// the environment. Predictable IVs and uids are a correctness hazard,
	// so this is a precondition failure.
	ErrEntropy = errors.New("random source not seeded")
	// ErrAuthentication indicates a password verification failure during a
	// credential operation. User-correctable, never fatal to the session.
	ErrAuthentication = errors.New("authentication failed")
)

// VersionTooNewError reports data written under a crypto scheme version
// newer than this client supports. The client must fail closed rather than
// operate on data it does not fully understand.
type VersionTooNewError struct {
	Version uint16
}

func (e *VersionTooNewError) Error() string {
	return fmt.Sprintf("crypto version %d is newer than maximum supported version %d", e.Version, CurrentVersion)
}
