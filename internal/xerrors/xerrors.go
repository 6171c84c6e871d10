// Package xerrors provides the structured error type and object-store
// error classification shared by the object-store adapter and the
// translation engine. It lives under internal so that both
// internal/gcsstore and the root package can depend on it without a
// cycle.
package xerrors

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Code is a high-level error category surfaced to the host framework.
type Code string

const (
	// CodeNotFound means the requested object does not exist. Reads
	// substitute zero bytes; the bulk-delete callback ignores it.
	CodeNotFound Code = "not found"

	// CodeTimeout folds gateway-timeout and deadline-exceeded into one
	// kind at the boundary; the host decides whether the client retries.
	CodeTimeout Code = "timeout"

	// CodeTransport is any other object-store transport failure.
	CodeTransport Code = "transport error"

	// CodeInvalidConfig is a fatal configuration validation failure.
	CodeInvalidConfig Code = "invalid configuration"

	// CodeWriteWithoutObjectSize is raised when a write is attempted on
	// a connection in single-object (read-only) mode.
	CodeWriteWithoutObjectSize Code = "write without object size"

	// CodeShortRead is raised when a ranged GET returns a byte count
	// that does not match the requested length: a programming invariant
	// violation, not a transient condition.
	CodeShortRead Code = "short read"
)

// Error is a structured error carrying the object key and block context
// that produced it, alongside the high-level classification used to pick
// a host-visible errno-class code.
type Error struct {
	Op     string // operation that failed, e.g. "pread", "pwrite", "trim"
	Bucket string // bucket name, if known
	Key    string // object key, if known
	Code   Code   // high-level error category
	Msg    string // human-readable message
	Inner  error  // wrapped error, if any
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Key != "" {
		return fmt.Sprintf("gcsblock: %s (op=%s key=%s)", msg, e.Op, e.Key)
	}
	if e.Op != "" {
		return fmt.Sprintf("gcsblock: %s (op=%s)", msg, e.Op)
	}
	return fmt.Sprintf("gcsblock: %s", msg)
}

func (e *Error) Unwrap() error {
	return e.Inner
}

func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// New constructs an Error with no object-key context.
func New(op string, code Code, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewKeyError constructs an Error scoped to a specific bucket/key.
func NewKeyError(op, bucket, key string, code Code, msg string) *Error {
	return &Error{Op: op, Bucket: bucket, Key: key, Code: code, Msg: msg}
}

// Wrap classifies inner (typically returned by the object-store SDK) and
// wraps it with op/bucket/key context.
func Wrap(op, bucket, key string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if ce, ok := inner.(*Error); ok {
		return &Error{Op: op, Bucket: bucket, Key: key, Code: ce.Code, Msg: ce.Msg, Inner: ce.Inner}
	}
	code, msg := Classify(inner)
	return &Error{Op: op, Bucket: bucket, Key: key, Code: code, Msg: msg, Inner: inner}
}

// Classify maps an error returned by the GCS SDK (or the context package)
// into one of CodeNotFound, CodeTimeout, or CodeTransport, folding
// gateway-timeout and deadline-exceeded into the single Timeout kind.
func Classify(err error) (Code, string) {
	if err == nil {
		return CodeTransport, ""
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CodeTimeout, err.Error()
	}

	if errors.Is(err, storage.ErrObjectNotExist) {
		return CodeNotFound, err.Error()
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		switch gErr.Code {
		case 404:
			return CodeNotFound, gErr.Message
		case 504, 408:
			return CodeTimeout, gErr.Message
		default:
			return CodeTransport, gErr.Message
		}
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.GRPCStatus().Code() {
		case codes.NotFound:
			return CodeNotFound, apiErr.Error()
		case codes.DeadlineExceeded, codes.Canceled:
			return CodeTimeout, apiErr.Error()
		default:
			return CodeTransport, apiErr.Error()
		}
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.NotFound:
			return CodeNotFound, st.Message()
		case codes.DeadlineExceeded, codes.Canceled:
			return CodeTimeout, st.Message()
		default:
			return CodeTransport, st.Message()
		}
	}

	return CodeTransport, err.Error()
}

// IsCode reports whether err classifies as code, unwrapping through
// errors.As.
func IsCode(err error, code Code) bool {
	var xe *Error
	if errors.As(err, &xe) {
		return xe.Code == code
	}
	return false
}

// IsNotFound reports whether err is a not-found-classified Error.
func IsNotFound(err error) bool { return IsCode(err, CodeNotFound) }

// IsTimeout reports whether err is a timeout-classified Error.
func IsTimeout(err error) bool { return IsCode(err, CodeTimeout) }
