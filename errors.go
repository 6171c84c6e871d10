package gcsblock

import "github.com/ehrlich-b/gcsblock/internal/xerrors"

// ErrorCode is a high-level error category surfaced to the host framework.
type ErrorCode = xerrors.Code

// Error kinds, re-exported for callers that need to branch on the kind of
// failure a Connection operation returned.
const (
	CodeNotFound               = xerrors.CodeNotFound
	CodeTimeout                = xerrors.CodeTimeout
	CodeTransport              = xerrors.CodeTransport
	CodeInvalidConfig          = xerrors.CodeInvalidConfig
	CodeWriteWithoutObjectSize = xerrors.CodeWriteWithoutObjectSize
	CodeShortRead              = xerrors.CodeShortRead
)

// Error is the structured error type returned by Connection operations.
type Error = xerrors.Error

// IsNotFound reports whether err is a not-found-classified Error.
func IsNotFound(err error) bool { return xerrors.IsNotFound(err) }

// IsTimeout reports whether err is a timeout-classified Error.
func IsTimeout(err error) bool { return xerrors.IsTimeout(err) }

// IsCode reports whether err classifies as code.
func IsCode(err error, code ErrorCode) bool { return xerrors.IsCode(err, code) }
