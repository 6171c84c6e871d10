package gcsblock

import (
	"context"
	"time"

	"github.com/ehrlich-b/gcsblock/internal/constants"
	"github.com/ehrlich-b/gcsblock/internal/gcsstore"
	"github.com/ehrlich-b/gcsblock/internal/interfaces"
	"github.com/ehrlich-b/gcsblock/internal/lock"
	"github.com/ehrlich-b/gcsblock/internal/logging"
	"github.com/ehrlich-b/gcsblock/internal/translate"
	"github.com/ehrlich-b/gcsblock/internal/xerrors"
)

// Options configures a Connection beyond what Config carries: an
// observer, a logger, and the shared KeyedMutex. Process-wide state
// (configuration, the key mutex) is constructed once and passed in
// explicitly rather than held as globals, per the plugin-contract
// equivalent of a user-data pointer.
type Options struct {
	Observer Observer
	Logger   interfaces.Logger
	Keys     *lock.KeyedMutex
}

// Connection is one per NBD client: it owns an ObjectStore, the shared
// KeyedMutex, the device configuration, and the metrics/logging it
// reports through. Constructed on connect, discarded on disconnect.
type Connection struct {
	cfg      Config
	store    interfaces.ObjectStore
	keys     *lock.KeyedMutex
	engine   *translate.Engine
	observer Observer
	logger   interfaces.Logger
}

// Open constructs a Connection against a real GCS bucket, creating the
// object-store client with credentials if configured, otherwise
// application-default, per the connection-handle construction sequence.
func Open(ctx context.Context, cfg Config, opts Options) (*Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := gcsstore.New(ctx, cfg.Bucket, gcsstore.Options{CredentialsPath: cfg.CredentialsPath})
	if err != nil {
		return nil, err
	}

	return newConnection(cfg, store, opts), nil
}

// OpenWithStore constructs a Connection over an arbitrary ObjectStore,
// e.g. the in-memory fake used in tests or a caller-supplied adapter.
func OpenWithStore(cfg Config, store interfaces.ObjectStore, opts Options) (*Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newConnection(cfg, store, opts), nil
}

func newConnection(cfg Config, store interfaces.ObjectStore, opts Options) *Connection {
	keys := opts.Keys
	if keys == nil {
		keys = lock.NewKeyedMutex()
	}
	observer := opts.Observer
	if observer == nil {
		observer = NoOpObserver{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}

	return &Connection{
		cfg:      cfg,
		store:    store,
		keys:     keys,
		observer: observer,
		logger:   logger,
		engine: &translate.Engine{
			Store:      store,
			Keys:       keys,
			Prefix:     cfg.KeyPrefix,
			ObjectSize: cfg.ObjectSize,
			Log:        logger,
		},
	}
}

// Close releases the underlying store, if it supports it.
func (c *Connection) Close() error {
	if closer, ok := c.store.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// GetSize returns the device size: the configured Size in block mode, or
// the single object's current byte length (0 if absent) in single-object
// mode.
func (c *Connection) GetSize(ctx context.Context) (uint64, error) {
	if !c.cfg.SingleObjectMode() {
		return c.cfg.Size, nil
	}
	size, ok, err := c.store.StatSize(ctx, c.cfg.KeyPrefix)
	if err != nil {
		return 0, xerrors.Wrap("get_size", c.cfg.Bucket, c.cfg.KeyPrefix, err)
	}
	if !ok {
		return 0, nil
	}
	return uint64(size), nil
}

// PRead reads length bytes at off. In single-object mode it issues one
// whole-blob ranged GET; otherwise it delegates to the translation
// engine's block iteration.
func (c *Connection) PRead(ctx context.Context, off, length uint64) ([]byte, error) {
	start := time.Now()
	data, err := c.pread(ctx, off, length)
	c.observer.ObserveRead(length, uint64(time.Since(start).Nanoseconds()), err == nil)
	return data, err
}

func (c *Connection) pread(ctx context.Context, off, length uint64) ([]byte, error) {
	if c.cfg.SingleObjectMode() {
		data, err := c.store.Get(ctx, c.cfg.KeyPrefix, int64(off), int64(length))
		if err != nil {
			if xerrors.IsNotFound(err) {
				return make([]byte, length), nil
			}
			return nil, xerrors.Wrap("pread", c.cfg.Bucket, c.cfg.KeyPrefix, err)
		}
		if uint64(len(data)) != length {
			return nil, xerrors.NewKeyError("pread", c.cfg.Bucket, c.cfg.KeyPrefix, xerrors.CodeShortRead, "short read in single-object mode")
		}
		return data, nil
	}
	return c.engine.PRead(ctx, off, length)
}

// PWrite writes src at device offset off. FUA is ignored: every PUT is
// durable on success.
func (c *Connection) PWrite(ctx context.Context, src []byte, off uint64) error {
	start := time.Now()
	err := c.writeGuarded(ctx, src, off)
	c.observer.ObserveWrite(uint64(len(src)), uint64(time.Since(start).Nanoseconds()), err == nil)
	return err
}

func (c *Connection) writeGuarded(ctx context.Context, src []byte, off uint64) error {
	if c.cfg.SingleObjectMode() {
		return xerrors.New("pwrite", xerrors.CodeWriteWithoutObjectSize, "single-object mode is read-only")
	}
	return c.engine.PWrite(ctx, src, off)
}

// Zero zeros length bytes at off.
func (c *Connection) Zero(ctx context.Context, off, length uint64) error {
	start := time.Now()
	err := c.engine.Zero(ctx, off, length)
	c.observer.ObserveZero(length, uint64(time.Since(start).Nanoseconds()), err == nil)
	return err
}

// Trim discards length bytes at off, rounded to block alignment.
func (c *Connection) Trim(ctx context.Context, off, length uint64) error {
	start := time.Now()
	err := c.engine.Trim(ctx, off, length)
	c.observer.ObserveTrim(length, uint64(time.Since(start).Nanoseconds()), err == nil)
	return err
}

// Flush is a no-op: every PUT is durable on success, so there is nothing
// to force to stable storage.
func (c *Connection) Flush(ctx context.Context) error {
	start := time.Now()
	c.observer.ObserveFlush(uint64(time.Since(start).Nanoseconds()), true)
	return nil
}

// Capabilities describes what a Connection advertises to the host
// framework.
type Capabilities struct {
	ThreadModel   string
	CanWrite      bool
	CanMultiConn  bool
	CanTrim       bool
	CanZero       bool
	CanFastZero   bool
	CanFlush      bool
	CanCache      string
	CanFUA        string
	MinBlockSize  uint64
	PrefBlockSize uint64
	MaxBlockSize  uint64
}

// Capabilities reports the fixed capability set this Connection
// advertises to the host framework, per the plugin-callback contract.
func (c *Connection) Capabilities() Capabilities {
	caps := Capabilities{
		ThreadModel:  "parallel",
		CanWrite:     !c.cfg.SingleObjectMode(),
		CanMultiConn: true,
		CanTrim:      true,
		CanZero:      true,
		CanFastZero:  true,
		CanFlush:     true,
		CanCache:     "none",
		CanFUA:       "native",
	}
	if c.cfg.SingleObjectMode() {
		caps.MinBlockSize = constants.SingleObjectMinBlockSize
		caps.PrefBlockSize = constants.SingleObjectPreferredBlockSize
		caps.MaxBlockSize = constants.SingleObjectMaxBlockSize
	} else {
		caps.MinBlockSize = 1
		caps.PrefBlockSize = c.cfg.ObjectSize
		caps.MaxBlockSize = c.cfg.ObjectSize
	}
	return caps
}
