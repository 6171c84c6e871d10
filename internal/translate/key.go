// Package translate implements the stateless block-to-object translation
// algorithms: key derivation, and the pread/pwrite/zero/trim sequences
// that turn a (offset, length) device range into object-store calls.
package translate

import (
	"fmt"

	"github.com/ehrlich-b/gcsblock/internal/constants"
)

// BlockKey returns the object key for block number n under prefix,
// zero-padded to a fixed hex width so lexicographic order matches
// numeric block order.
func BlockKey(prefix string, n uint64) string {
	return fmt.Sprintf("%s/%0*x", prefix, constants.KeyHexWidth, n)
}

// quoRem returns (off / size, off % size). size must be positive.
func quoRem(off uint64, size uint64) (uint64, uint64) {
	return off / size, off % size
}

// Layout is the block layout of a (offset, length) range: the first block
// touched and the byte offset within it, and one-past-the-last block
// touched and the number of bytes consumed in it (0 means the range ends
// exactly on a block boundary).
type Layout struct {
	BlockNo1     uint64
	BlockOffset1 uint64
	BlockNo2     uint64
	BlockLen2    uint64
}

// ComputeLayout derives the block layout of [off, off+length) under the
// given object size.
func ComputeLayout(off, length, objectSize uint64) Layout {
	bn1, bo1 := quoRem(off, objectSize)
	bn2, bl2 := quoRem(off+length, objectSize)
	return Layout{BlockNo1: bn1, BlockOffset1: bo1, BlockNo2: bn2, BlockLen2: bl2}
}
