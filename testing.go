package gcsblock

import "github.com/ehrlich-b/gcsblock/internal/gcsstore/fake"

// NewFakeStore returns an in-memory ObjectStore suitable for tests of
// code built on this module, without requiring a real GCS bucket. It
// implements the same capability interface the real adapter does, so a
// Connection built with OpenWithStore behaves identically for callers.
func NewFakeStore() *fake.Store {
	return fake.New()
}
