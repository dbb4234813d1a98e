package iox

import (
	"fmt"

	"github.com/ndlib/ioxstore/ident"
	"github.com/ndlib/ioxstore/store"
)

// RootPath is the store path every path of one database lives under:
// <server id>/<database name>/
type RootPath struct {
	root store.Path
}

// NewRootPath builds the root for a database from the empty path of the
// store holding it.
func NewRootPath(empty store.Path, serverID ident.ServerID, name ident.DatabaseName) RootPath {
	return RootPath{
		root: empty.PushDir(serverID.String()).PushDir(name.String()),
	}
}

// Path returns the root as a store path.
func (rp RootPath) Path() store.Path {
	return rp.root
}

// Join returns the store path for relative: the root followed by each part
// of relative as a directory.
func (rp RootPath) Join(relative RelativePath) store.Path {
	p := rp.root
	for _, part := range relative.parts {
		p = p.PushDir(part)
	}
	return p
}

// Strip is the inverse of Join. It returns the parts of full after the root.
//
// full must lie under the root. If it does not, the store handed back a path
// from outside this database, which is a bug somewhere, and Strip panics
// with a *ScopeViolation.
func (rp RootPath) Strip(full store.Path) RelativePath {
	r, err := rp.Relative(full)
	if err != nil {
		panic(err)
	}
	return r
}

// Relative is like Strip but returns the *ScopeViolation as an error
// instead of panicking.
func (rp RootPath) Relative(full store.Path) (RelativePath, error) {
	parts, ok := full.PartsAfterPrefix(rp.root)
	if !ok {
		return RelativePath{}, &ScopeViolation{Root: rp.root, Path: full}
	}
	return NewRelativePath(parts...), nil
}

// ScopeViolation reports a store path which should have been under a
// database's root but was not.
type ScopeViolation struct {
	Root store.Path
	Path store.Path
}

func (e *ScopeViolation) Error() string {
	return fmt.Sprintf("path %q is outside database root %q", e.Path.String(), e.Root.String())
}
