// Package iox scopes an object store to a single database.
//
// Every database keeps its files below <server id>/<database name>/ in the
// underlying store. An ObjectStore takes paths relative to that directory,
// so code working with a database can never read or write outside it:
//
//	<server id>/<database name>/data/          columnar data files
//	<server id>/<database name>/transactions/  catalog transaction log
//
// This layout is persisted and must not change.
package iox

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ndlib/ioxstore/ident"
	"github.com/ndlib/ioxstore/store"
)

const dataDir = "data"

// ErrEmptyPath is returned by Put, Get and Delete for the empty
// RelativePath, which names the database root rather than an object.
var ErrEmptyPath = errors.New("empty object path")

// ObjectStore handles persistence of data for a particular database. It
// writes within its root directory only.
//
// An ObjectStore has no mutable state and is safe for concurrent use. It
// adds no retries or timeouts; those belong to the underlying store and the
// contexts passed in.
type ObjectStore struct {
	store    store.Store
	serverID ident.ServerID
	name     ident.DatabaseName
	root     RootPath
	log      *zap.Logger
}

// Option configures an ObjectStore.
type Option func(*ObjectStore)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *ObjectStore) {
		if l != nil {
			o.log = l
		}
	}
}

// New creates the wrapper for one database. It takes everything needed to
// find the root directory of the database.
func New(s store.Store, serverID ident.ServerID, name ident.DatabaseName, opts ...Option) *ObjectStore {
	o := &ObjectStore{
		store:    s,
		serverID: serverID,
		name:     name,
		root:     NewRootPath(s.NewPath(), serverID, name),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.With(
		zap.Stringer("server_id", serverID),
		zap.Stringer("database", name))
	return o
}

// DatabaseName returns the name of the database this store is for.
func (o *ObjectStore) DatabaseName() string {
	return o.name.String()
}

// ServerID returns the id of the server owning the database.
func (o *ObjectStore) ServerID() ident.ServerID {
	return o.serverID
}

// RootPath returns the database's root.
func (o *ObjectStore) RootPath() RootPath {
	return o.root
}

// DataPath is where columnar data files go: <server id>/<database name>/data/
func (o *ObjectStore) DataPath() store.Path {
	return o.root.Path().PushDir(dataDir)
}

// CatalogPath is where the transaction log goes:
// <server id>/<database name>/transactions/
func (o *ObjectStore) CatalogPath() store.Path {
	return o.root.Path().PushDir(transactionsDir)
}

// Put stores the contents of r at location in this database. length is the
// number of bytes r will give, or negative if not known. r is read at most
// once.
func (o *ObjectStore) Put(ctx context.Context, location RelativePath, r io.Reader, length int64) error {
	if location.IsEmpty() {
		return ErrEmptyPath
	}
	p := o.root.Join(location)
	o.log.Debug("put", zap.Stringer("path", p), zap.Int64("length", length))
	return o.store.Put(ctx, p, r, length)
}

// Get returns the contents at location in this database. The error
// satisfies store.IsNotFound if there is nothing there.
func (o *ObjectStore) Get(ctx context.Context, location RelativePath) (io.ReadCloser, error) {
	if location.IsEmpty() {
		return nil, ErrEmptyPath
	}
	p := o.root.Join(location)
	o.log.Debug("get", zap.Stringer("path", p))
	return o.store.Get(ctx, p)
}

// Delete removes the object at location in this database. Deleting something
// which does not exist is not an error.
func (o *ObjectStore) Delete(ctx context.Context, location RelativePath) error {
	if location.IsEmpty() {
		return ErrEmptyPath
	}
	p := o.root.Join(location)
	o.log.Debug("delete", zap.Stringer("path", p))
	return o.store.Delete(ctx, p)
}

// List pages through every object below prefix in this database. The empty
// RelativePath lists the whole database. Paths come in whatever order the
// underlying store gives them.
func (o *ObjectStore) List(ctx context.Context, prefix RelativePath) (*RelativeLister, error) {
	p := o.root.Join(prefix)
	o.log.Debug("list", zap.Stringer("prefix", p))
	l, err := o.store.List(ctx, p)
	if err != nil {
		return nil, err
	}
	return &RelativeLister{l: l, root: o.root, log: o.log}, nil
}

// CatalogTransactions pages through every file in the transaction log.
func (o *ObjectStore) CatalogTransactions(ctx context.Context) (*TransactionLister, error) {
	l, err := o.List(ctx, NewRelativePath(transactionsDir))
	if err != nil {
		return nil, err
	}
	return &TransactionLister{l: l}, nil
}

// PutCatalogTransaction stores a transaction file under the name given by
// TransactionPath and returns a reference to it.
func (o *ObjectStore) PutCatalogTransaction(ctx context.Context, revision uint64, id uuid.UUID, kind TransactionKind, r io.Reader, length int64) (Transaction, error) {
	t := newTransaction(TransactionPath(revision, id, kind))
	err := o.Put(ctx, t.RelativePath(), r, length)
	if err != nil {
		return Transaction{}, err
	}
	return t, nil
}

// GetCatalogTransaction returns the contents of the transaction file t.
func (o *ObjectStore) GetCatalogTransaction(ctx context.Context, t Transaction) (io.ReadCloser, error) {
	return o.Get(ctx, t.RelativePath())
}

// RelativeLister pages through the results of List. Not safe for use by
// more than one goroutine.
type RelativeLister struct {
	l    store.Lister
	root RootPath
	log  *zap.Logger
}

// Next returns the next batch of paths, or io.EOF once there are no more.
//
// It panics with a *ScopeViolation if the underlying store returns a path
// outside the database root.
func (rl *RelativeLister) Next(ctx context.Context) ([]RelativePath, error) {
	batch, err := rl.l.Next(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]RelativePath, 0, len(batch))
	for _, p := range batch {
		r, err := rl.root.Relative(p)
		if err != nil {
			rl.log.Error("store listed a path outside the database", zap.Error(err))
			panic(err)
		}
		result = append(result, r)
	}
	return result, nil
}

// Close stops the listing and releases its resources.
func (rl *RelativeLister) Close() error {
	return rl.l.Close()
}

// TransactionLister pages through the results of CatalogTransactions.
type TransactionLister struct {
	l *RelativeLister
}

// Next returns the next batch of transactions, or io.EOF once there are no
// more.
func (tl *TransactionLister) Next(ctx context.Context) ([]Transaction, error) {
	batch, err := tl.l.Next(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]Transaction, len(batch))
	for i, r := range batch {
		result[i] = newTransaction(r)
	}
	return result, nil
}

// Close stops the listing and releases its resources.
func (tl *TransactionLister) Close() error {
	return tl.l.Close()
}

// ListAll drains l into a single slice and closes it.
func ListAll(ctx context.Context, l *RelativeLister) ([]RelativePath, error) {
	defer l.Close()
	var result []RelativePath
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
