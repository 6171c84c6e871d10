package gcsblock

import (
	"fmt"

	"github.com/ehrlich-b/gcsblock/internal/xerrors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the immutable-after-init configuration record for one
// device: bucket, key prefix, optional device/object size pairing, and
// optional credentials path. Validate must succeed before a Config is
// passed to Open.
type Config struct {
	Bucket          string
	KeyPrefix       string
	CredentialsPath string
	Size            uint64
	ObjectSize      uint64
}

// SingleObjectMode reports whether this Config describes a read-only
// single-object device (neither size nor object-size configured).
func (c Config) SingleObjectMode() bool {
	return c.ObjectSize == 0
}

// NewConfig returns a zero-value Config; callers build it up with Set or
// by assigning fields directly, then call Validate.
func NewConfig() *Config {
	return &Config{}
}

// Set applies one nbdkit-style key=value configuration parameter. It
// accepts the exact key names and aliases the original plugin accepts:
// bucket, key, json-credentials/json_credentials, size,
// object-size/object_size. Any other key is a configuration error.
func (c *Config) Set(key, value string) error {
	switch key {
	case "bucket":
		c.Bucket = value
	case "key":
		c.KeyPrefix = value
	case "json-credentials", "json_credentials":
		c.CredentialsPath = value
	case "size":
		n, err := parseUintSize(value)
		if err != nil {
			return xerrors.New("config", xerrors.CodeInvalidConfig, fmt.Sprintf("size: %v", err))
		}
		c.Size = n
	case "object-size", "object_size":
		n, err := parseUintSize(value)
		if err != nil {
			return xerrors.New("config", xerrors.CodeInvalidConfig, fmt.Sprintf("object-size: %v", err))
		}
		c.ObjectSize = n
	default:
		return xerrors.New("config", xerrors.CodeInvalidConfig, fmt.Sprintf("unknown configuration key %q", key))
	}
	return nil
}

func parseUintSize(value string) (uint64, error) {
	var n uint64
	if _, err := fmt.Sscanf(value, "%d", &n); err != nil {
		return 0, fmt.Errorf("not a non-negative integer: %q", value)
	}
	return n, nil
}

// Validate enforces the startup invariants: bucket and key prefix must be
// present; size and object-size must both be present or both absent; when
// present, size must be a positive multiple of object-size.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return xerrors.New("config", xerrors.CodeInvalidConfig, "bucket is required")
	}
	if c.KeyPrefix == "" {
		return xerrors.New("config", xerrors.CodeInvalidConfig, "key is required")
	}
	if (c.Size == 0) != (c.ObjectSize == 0) {
		return xerrors.New("config", xerrors.CodeInvalidConfig, "size and object-size must both be set or both be absent")
	}
	if c.ObjectSize != 0 {
		if c.Size == 0 {
			return xerrors.New("config", xerrors.CodeInvalidConfig, "size must be positive when object-size is set")
		}
		if c.Size%c.ObjectSize != 0 {
			return xerrors.New("config", xerrors.CodeInvalidConfig, "size must be a multiple of object-size")
		}
	}
	return nil
}

// BindFlags registers the CLI flags corresponding to every configuration
// parameter on flagSet and binds them through viper, following the same
// flag-then-viper-bind shape used across the wider object-store plugin
// ecosystem this module draws its CLI conventions from.
func (c *Config) BindFlags(flagSet *pflag.FlagSet) error {
	flagSet.String("bucket", "", "object-store bucket name (required)")
	flagSet.String("key", "", "key prefix for per-block object names (required)")
	flagSet.String("json-credentials", "", "path to a JSON credentials file (optional; default credentials otherwise)")
	flagSet.Uint64("size", 0, "device size in bytes (requires object-size)")
	flagSet.Uint64("object-size", 0, "block size in bytes (requires size)")

	for _, name := range []string{"bucket", "key", "json-credentials", "size", "object-size"} {
		if err := viper.BindPFlag(name, flagSet.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %q: %w", name, err)
		}
	}
	return nil
}

// FromViper builds a Config from whatever BindFlags bound into viper's
// global registry (flags, config file, environment).
func FromViper() *Config {
	return &Config{
		Bucket:          viper.GetString("bucket"),
		KeyPrefix:       viper.GetString("key"),
		CredentialsPath: viper.GetString("json-credentials"),
		Size:            viper.GetUint64("size"),
		ObjectSize:      viper.GetUint64("object-size"),
	}
}
