// Package errors provides the structured error type shared by the store
// drivers and the filesystem façade, and its mapping to errno results.
package errors

import (
	"errors"
	"fmt"
)

// Code classifies a store or filesystem failure. The filesystem façade
// maps every code to exactly one errno; drivers pick the code, never
// the errno.
type Code string

const (
	// CodeNotFound means the object or path does not exist. This is the
	// only code a cache layer may act on; everything else surfaces.
	CodeNotFound Code = "NOT_FOUND"

	// CodeIsDirectory means a file operation was applied to a directory.
	CodeIsDirectory Code = "IS_DIRECTORY"

	// CodeTransport means the remote store call itself failed: network,
	// auth, throttling, server error. Never raised for a missing key.
	CodeTransport Code = "TRANSPORT"

	// CodeInvalidArgument means the caller passed something malformed,
	// such as an unsupported open access mode.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// CodeReadOnly means a mutation was attempted on a read-only mount.
	CodeReadOnly Code = "READ_ONLY"
)

// Errno values the façade hands back to the FUSE driver, as positive
// constants. They follow the portable POSIX numbering used by cgofuse,
// which matches syscall.Errno on Linux and macOS.
const (
	ENOENT = 2
	EIO    = 5
	EACCES = 13
	EISDIR = 21
	EINVAL = 22
)

// StoreError carries a failure code plus the operation and object it
// failed on. Bucket and Key may be empty for failures that are not
// about one object.
type StoreError struct {
	Code   Code
	Op     string
	Bucket string
	Key    string
	Err    error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Op, e.Code)
	if e.Key != "" {
		msg = fmt.Sprintf("%s %s: %s", e.Op, e.Key, e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is matches StoreErrors by code so errors.Is can test against a bare
// &StoreError{Code: ...} target.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NotFound reports that key does not exist in bucket.
func NotFound(op, bucket, key string) *StoreError {
	return &StoreError{Code: CodeNotFound, Op: op, Bucket: bucket, Key: key}
}

// IsDirectoryError reports that a file operation hit a directory path.
func IsDirectoryError(op, path string) *StoreError {
	return &StoreError{Code: CodeIsDirectory, Op: op, Key: path}
}

// Transport wraps a remote-store failure.
func Transport(op, bucket, key string, err error) *StoreError {
	return &StoreError{Code: CodeTransport, Op: op, Bucket: bucket, Key: key, Err: err}
}

// InvalidArgument reports a malformed request.
func InvalidArgument(op, path string, err error) *StoreError {
	return &StoreError{Code: CodeInvalidArgument, Op: op, Key: path, Err: err}
}

// ReadOnly reports a mutation attempted on a read-only mount.
func ReadOnly(op, path string) *StoreError {
	return &StoreError{Code: CodeReadOnly, Op: op, Key: path}
}

// IsNotFound reports whether err carries CodeNotFound.
func IsNotFound(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Code == CodeNotFound
}

// CodeOf extracts the Code from err, or CodeTransport when err carries
// no StoreError. A nil err has no code and yields the empty string.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeTransport
}

// Errno maps err to the negative errno the façade returns to the
// driver. A nil err maps to 0. Errors that carry no StoreError are
// treated as transport failures.
func Errno(err error) int {
	if err == nil {
		return 0
	}
	switch CodeOf(err) {
	case CodeNotFound:
		return -ENOENT
	case CodeIsDirectory:
		return -EISDIR
	case CodeInvalidArgument:
		return -EINVAL
	case CodeReadOnly:
		return -EACCES
	default:
		return -EIO
	}
}
