package store

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

// Bolt keeps a store inside a single bbolt database file. Each object is one
// value in a bucket, keyed by Path.Key, so bbolt's key ordering makes
// listing a prefix a cursor seek.
//
// Values are held in memory while being written, so Bolt is meant for small
// objects such as transaction log entries.
type Bolt struct {
	// PageSize is the number of paths returned by each Lister.Next.
	// Zero means DefaultPageSize.
	PageSize int

	db *bbolt.DB
}

var (
	_ Store = &Bolt{}

	objectsBucket = []byte("objects")
)

// OpenBolt opens, creating if needed, the bbolt database at path.
func OpenBolt(path string, opts *bbolt.Options) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0775); err != nil {
		return nil, errors.Wrapf(err, "could not use `%s` dir", filepath.Dir(path))
	}
	db, err := bbolt.Open(path, 0664, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open bolt store %s", path)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(objectsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create objects bucket")
	}
	return &Bolt{db: db}, nil
}

// Close closes the database file.
func (b *Bolt) Close() error {
	return b.db.Close()
}

// NewPath returns the empty path.
func (b *Bolt) NewPath() Path {
	return Path{}
}

// Put reads all of r and stores it in a single write transaction.
func (b *Bolt) Put(ctx context.Context, location Path, r io.Reader, length int64) error {
	key := location.Key()
	body := &countingReader{r: &ctxReader{ctx: ctx, r: r}, expected: length}
	data, err := ioutil.ReadAll(body)
	if err != nil {
		return streamFailure("put", key, body, err)
	}
	err = b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(objectsBucket).Put([]byte(key), data)
	})
	return failure("put", key, err)
}

// Get returns a reader over a copy of the value for location. Values are only
// valid inside a transaction, hence the copy.
func (b *Bolt) Get(ctx context.Context, location Path) (io.ReadCloser, error) {
	key := location.Key()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(objectsBucket).Get([]byte(key))
		if v == nil {
			return notFound("get", key)
		}
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, failure("get", key, err)
	}
	return ioutil.NopCloser(bytes.NewReader(data)), nil
}

// List pages through the keys under prefix in key order. Each call to Next
// runs in its own read transaction and resumes after the last key returned.
func (b *Bolt) List(ctx context.Context, prefix Path) (Lister, error) {
	pagesize := b.PageSize
	if pagesize <= 0 {
		pagesize = DefaultPageSize
	}
	return &boltLister{b: b, prefix: prefix, pkey: []byte(prefix.Key()), pagesize: pagesize}, nil
}

type boltLister struct {
	b        *Bolt
	prefix   Path
	pkey     []byte
	after    []byte // last key returned, nil before the first page
	pagesize int
	done     bool
}

func (l *boltLister) Next(ctx context.Context) ([]Path, error) {
	if l.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var result []Path
	err := l.b.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(objectsBucket).Cursor()
		var k []byte
		if l.after == nil {
			k, _ = c.Seek(l.pkey)
		} else {
			k, _ = c.Seek(l.after)
			if bytes.Equal(k, l.after) {
				k, _ = c.Next()
			}
		}
		for ; k != nil && bytes.HasPrefix(k, l.pkey); k, _ = c.Next() {
			l.after = append(l.after[:0], k...)
			p := ParseKey(string(k))
			if !p.HasPrefix(l.prefix) {
				continue
			}
			result = append(result, p)
			if len(result) == l.pagesize {
				return nil
			}
		}
		l.done = true
		return nil
	})
	if err != nil {
		return nil, failure("list", string(l.pkey), err)
	}
	if len(result) == 0 {
		l.done = true
		return nil, io.EOF
	}
	return result, nil
}

func (l *boltLister) Close() error {
	l.done = true
	return nil
}

// Delete removes the value for location. bbolt does not complain about
// missing keys, so neither do we.
func (b *Bolt) Delete(ctx context.Context, location Path) error {
	key := location.Key()
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(objectsBucket).Delete([]byte(key))
	})
	return failure("delete", key, err)
}
