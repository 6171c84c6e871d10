// Package gcsstore adapts cloud.google.com/go/storage to the
// interfaces.ObjectStore capability the translation engine depends on.
package gcsstore

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"
	"github.com/ehrlich-b/gcsblock/internal/interfaces"
	"github.com/ehrlich-b/gcsblock/internal/xerrors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Store is an ObjectStore backed by a real GCS bucket.
type Store struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
}

// Options configures how a Store authenticates to GCS.
type Options struct {
	// CredentialsPath, when non-empty, is passed to
	// option.WithCredentialsFile. Empty means application-default
	// credentials.
	CredentialsPath string
}

// New creates a Store for bucket, authenticating per opts.
func New(ctx context.Context, bucket string, opts Options) (*Store, error) {
	var clientOpts []option.ClientOption
	if opts.CredentialsPath != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsPath))
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, xerrors.Wrap("new-client", bucket, "", err)
	}

	return &Store{
		client: client,
		bucket: client.Bucket(bucket),
		name:   bucket,
	}, nil
}

// Close releases the underlying client's resources.
func (s *Store) Close() error {
	return s.client.Close()
}

// Get implements interfaces.ObjectStore.
func (s *Store) Get(ctx context.Context, key string, offset, length int64) ([]byte, error) {
	r, err := s.bucket.Object(key).NewRangeReader(ctx, offset, length)
	if err != nil {
		return nil, xerrors.Wrap("get", s.name, key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, xerrors.Wrap("get", s.name, key, err)
	}
	return data, nil
}

// Put implements interfaces.ObjectStore.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = "application/octet-stream"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return xerrors.Wrap("put", s.name, key, err)
	}
	if err := w.Close(); err != nil {
		return xerrors.Wrap("put", s.name, key, err)
	}
	return nil
}

// List implements interfaces.ObjectStore.
func (s *Store) List(ctx context.Context, prefix, startKey, endKey string) ([]string, error) {
	it := s.bucket.Objects(ctx, &storage.Query{
		Prefix:      prefix,
		StartOffset: startKey,
		EndOffset:   endKey,
	})

	var keys []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, xerrors.Wrap("list", s.name, prefix, err)
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

// Delete implements interfaces.ObjectStore.
func (s *Store) Delete(ctx context.Context, keys []string, onError func(key string, err error)) error {
	for _, key := range keys {
		if err := s.bucket.Object(key).Delete(ctx); err != nil {
			if onError != nil {
				onError(key, xerrors.Wrap("delete", s.name, key, err))
			}
		}
	}
	return nil
}

// StatSize implements interfaces.ObjectStore.
func (s *Store) StatSize(ctx context.Context, key string) (int64, bool, error) {
	attrs, err := s.bucket.Object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return 0, false, nil
		}
		return 0, false, xerrors.Wrap("stat", s.name, key, err)
	}
	return attrs.Size, true, nil
}

var _ interfaces.ObjectStore = (*Store)(nil)
