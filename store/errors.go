package store

import (
	"fmt"

	raven "github.com/getsentry/raven-go"
	"github.com/pkg/errors"
)

var (
	// ErrNotFound means there is no object at the requested path.
	ErrNotFound = errors.New("object not found")

	// ErrLengthMismatch means a stream passed to Put did not have the
	// length given as its hint.
	ErrLengthMismatch = errors.New("stream length does not match hint")

	// ErrPathIsDirectory means the path clashes with the directory layout of
	// the store: it names a directory holding other objects, or one of its
	// directories is itself an object. Only the FileSystem store returns it.
	ErrPathIsDirectory = errors.New("path names a directory")
)

// StorageError wraps a failure reported by the underlying storage: an I/O,
// permission, capacity or network problem. It is distinct from ErrNotFound
// so callers can tell an absent object apart from an unavailable store.
type StorageError struct {
	Op  string // the operation: "put", "get", "list" or "delete"
	Key string // the store key involved
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %s", e.Op, e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error { return e.Err }

// IsNotFound is true if err signals a missing object, no matter how many
// times it has been wrapped.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsStorageError is true if err came from a failure of the storage itself.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// notFound wraps ErrNotFound with the operation and key.
func notFound(op, key string) error {
	return errors.Wrapf(ErrNotFound, "%s %q", op, key)
}

// failure wraps a backend error into a *StorageError, unless it is nil or
// already classified. Errors caused by the request rather than the storage
// only get the operation and key added.
func failure(op, key string, err error) error {
	if err == nil || IsNotFound(err) || IsStorageError(err) {
		return err
	}
	if errors.Is(err, ErrLengthMismatch) || errors.Is(err, ErrPathIsDirectory) {
		return errors.Wrapf(err, "%s %q", op, key)
	}
	return &StorageError{Op: op, Key: key, Err: err}
}

// streamFailure classifies the error from a Put whose data was read through
// body. If the caller's stream failed, that error is returned with the
// operation and key added; anything else is a failure of the storage.
func streamFailure(op, key string, body *countingReader, err error) error {
	if err != nil && body.err != nil {
		return errors.Wrapf(body.err, "%s %q", op, key)
	}
	return failure(op, key, err)
}

// report sends a backend failure to Sentry, tagged with the given values.
// It does nothing unless a DSN has been configured with raven.SetDSN.
func report(err error, tags map[string]string) {
	if err == nil || IsNotFound(err) {
		return
	}
	raven.CaptureError(err, tags)
}
