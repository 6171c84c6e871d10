package constants

// Key layout constants
const (
	// KeyHexWidth is the zero-padded hex width of a block number in an
	// object key. Fixed width guarantees lexicographic order matches
	// numeric block order, which the bulk-delete LIST range relies on.
	KeyHexWidth = 16

	// DeleteBatchSize is the maximum number of keys accumulated before a
	// bulk DELETE is issued during trim/zero.
	DeleteBatchSize = 1000
)

// Single-object-mode defaults
const (
	// SingleObjectMinBlockSize is the minimum block-size hint reported to
	// the host when no object_size is configured.
	SingleObjectMinBlockSize = 1

	// SingleObjectPreferredBlockSize is the preferred block-size hint in
	// single-object mode.
	SingleObjectPreferredBlockSize = 512 * 1024

	// SingleObjectMaxBlockSize is the maximum block-size hint in
	// single-object mode (2^32-1).
	SingleObjectMaxBlockSize = 0xffffffff
)
