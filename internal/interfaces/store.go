// Package interfaces provides internal interface definitions for gcsblock.
// These are separate from the root package to avoid circular imports
// between the root package and the packages under internal/.
package interfaces

import "context"

// ObjectStore is the capability interface the translation engine depends
// on: ranged GET, fixed-size PUT, prefix/bound LIST, and bulk DELETE with
// a per-key error callback. Implementations must be safe for concurrent
// use by multiple goroutines.
type ObjectStore interface {
	// Get reads length bytes starting at offset from the object named
	// key. Callers substitute zero bytes when the returned error
	// classifies as not-found; a missing object is sparse-zero, not a
	// store failure.
	Get(ctx context.Context, key string, offset, length int64) ([]byte, error)

	// Put writes data as the full contents of the object named key,
	// replacing it entirely.
	Put(ctx context.Context, key string, data []byte) error

	// List returns, in lexicographic order, every key under prefix with
	// startKey <= key < endKey. Used only for bulk-delete range scans.
	List(ctx context.Context, prefix, startKey, endKey string) ([]string, error)

	// Delete removes every key in keys. onError is invoked once per key
	// whose deletion fails, not-found failures included; the callback
	// decides which failures to ignore (a concurrent delete may have
	// already removed the object).
	Delete(ctx context.Context, keys []string, onError func(key string, err error)) error

	// StatSize returns the byte length of the object named key, or
	// ok=false if it does not exist. Used only in single-object mode's
	// get_size.
	StatSize(ctx context.Context, key string) (size int64, ok bool, err error)
}

// Logger is the leveled logging capability the engine depends on.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Observer receives per-operation metrics. Implementations must be
// thread-safe; methods are called from every connection goroutine.
type Observer interface {
	ObserveRead(bytes uint64, latencyNs uint64, success bool)
	ObserveWrite(bytes uint64, latencyNs uint64, success bool)
	ObserveZero(bytes uint64, latencyNs uint64, success bool)
	ObserveTrim(bytes uint64, latencyNs uint64, success bool)
	ObserveFlush(latencyNs uint64, success bool)
}
