package walbuf

import "errors"

// Sentinel errors returned by the WAL buffer manager. Callers should use
// errors.Is against these rather than matching on error strings.
var (
	// ErrFileError wraps any open/read/write/flush failure from the File
	// Handler. It is non-retryable at this layer.
	ErrFileError = errors.New("wal: file error")

	// ErrRecordTooLarge is returned by Append when a record cannot fit
	// inside a single buffer slab, regardless of rollover.
	ErrRecordTooLarge = errors.New("wal: record too large for buffer")

	// ErrRecoveryCorrupt is returned by Init when a segment file expected
	// to exist between the reader and writer LSNs is missing or empty.
	ErrRecoveryCorrupt = errors.New("wal: corrupt or missing segment during recovery")

	// ErrNotInitialized is returned by Append/Next/SetWriteLsn when called
	// before a successful Init. Reset initializes the buffer itself and
	// does not return it.
	ErrNotInitialized = errors.New("wal: buffer not initialized")
)
