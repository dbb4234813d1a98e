// Package store provides a simple, goroutine safe object store interface.
// Objects are addressed by a Path and their contents are streams, which
// allows large objects to be stored easily.
//
// There are implementations keeping objects in memory, in a file system
// tree, in a bbolt database file, and in AWS S3 (or anything speaking its
// API, such as Minio). Metered wraps any of them with prometheus metrics.
package store

import (
	"context"
	"io"
)

// Store defines the basic stream based object store.
//
// Put replaces any existing object at the location. Delete is idempotent:
// removing an object which does not exist is not an error. Get returns an
// error satisfying IsNotFound when there is no object at the location.
// Every other failure is returned as a *StorageError.
type Store interface {
	// NewPath returns the empty path for this store. Paths for every
	// operation are built up from it.
	NewPath() Path

	// Put stores the contents of r at location. Length is a hint giving
	// the number of bytes r will yield, or a negative number if unknown.
	// When given, a stream of a different length is an error and nothing
	// is stored. The reader is read at most once.
	Put(ctx context.Context, location Path, r io.Reader, length int64) error

	// Get returns a stream of the object at location. The caller must
	// close it.
	Get(ctx context.Context, location Path) (io.ReadCloser, error)

	// List returns a Lister giving every object whose path has prefix as
	// a prefix. The empty path lists the entire store.
	List(ctx context.Context, prefix Path) (Lister, error)

	// Delete removes the object at location.
	Delete(ctx context.Context, location Path) error
}

// A Lister pages through the results of a List call. Nothing is fetched
// except during a call to Next.
type Lister interface {
	// Next returns the next non-empty batch of paths. It returns io.EOF
	// once there are no more.
	Next(ctx context.Context) ([]Path, error)

	// Close releases any resources held by the Lister. It may be called
	// before the Lister is exhausted.
	Close() error
}

// DefaultPageSize is the number of paths the local stores return from each
// call to Lister.Next.
const DefaultPageSize = 1000

// ListAll drains a Lister into a single slice and closes it.
func ListAll(ctx context.Context, l Lister) ([]Path, error) {
	defer l.Close()
	var result []Path
	for {
		batch, err := l.Next(ctx)
		if err == io.EOF {
			return result, nil
		} else if err != nil {
			return result, err
		}
		result = append(result, batch...)
	}
}

// sliceLister pages through a list of paths computed up front.
type sliceLister struct {
	paths    []Path
	pagesize int
}

func newSliceLister(paths []Path, pagesize int) *sliceLister {
	if pagesize <= 0 {
		pagesize = DefaultPageSize
	}
	return &sliceLister{paths: paths, pagesize: pagesize}
}

func (l *sliceLister) Next(ctx context.Context) ([]Path, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(l.paths) == 0 {
		return nil, io.EOF
	}
	n := l.pagesize
	if n > len(l.paths) {
		n = len(l.paths)
	}
	batch := l.paths[:n:n]
	l.paths = l.paths[n:]
	return batch, nil
}

func (l *sliceLister) Close() error {
	l.paths = nil
	return nil
}

// countingReader checks that a stream has the length promised to Put.
// It remembers the first error other than io.EOF, for backends whose
// clients do not pass reader errors back unchanged.
type countingReader struct {
	r        io.Reader
	n        int64
	expected int64
	err      error
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if c.expected >= 0 && c.n > c.expected {
		err = ErrLengthMismatch
	} else if err == io.EOF && c.expected >= 0 && c.n != c.expected {
		err = ErrLengthMismatch
	}
	if err != nil && err != io.EOF && c.err == nil {
		c.err = err
	}
	return n, err
}
