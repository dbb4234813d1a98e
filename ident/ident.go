// Package ident holds the identifiers which name a database's storage:
// the id of the server owning it and the database's name.
package ident

import (
	"strconv"

	"github.com/pkg/errors"
)

var (
	ErrZeroServerID       = errors.New("server id must be non-zero")
	ErrDatabaseNameLength = errors.New("database name must be between 1 and 64 characters")
	ErrDatabaseNameChar   = errors.New("database name contains an invalid character")
)

// ServerID identifies a server. Zero is not a valid id.
type ServerID uint32

// NewServerID returns id as a ServerID, or an error if it is zero.
func NewServerID(id uint32) (ServerID, error) {
	if id == 0 {
		return 0, ErrZeroServerID
	}
	return ServerID(id), nil
}

// ParseServerID reads a server id in decimal.
func ParseServerID(s string) (ServerID, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "parse server id %q", s)
	}
	return NewServerID(uint32(n))
}

// String gives the canonical decimal form, which is also how the id appears
// in storage paths.
func (id ServerID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

const maxDatabaseNameLength = 64

// DatabaseName is a validated database name. It is safe to use as a single
// path part in any store.
type DatabaseName struct {
	name string
}

// NewDatabaseName checks name and returns it as a DatabaseName. Names are 1
// to 64 characters of ASCII letters, digits, '_' and '-'.
func NewDatabaseName(name string) (DatabaseName, error) {
	if len(name) == 0 || len(name) > maxDatabaseNameLength {
		return DatabaseName{}, errors.Wrapf(ErrDatabaseNameLength, "got %d", len(name))
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		case c == '_', c == '-':
		default:
			return DatabaseName{}, errors.Wrapf(ErrDatabaseNameChar, "%q at offset %d", c, i)
		}
	}
	return DatabaseName{name: name}, nil
}

// MustDatabaseName is like NewDatabaseName but panics on an invalid name.
// It is intended for constants and tests.
func MustDatabaseName(name string) DatabaseName {
	db, err := NewDatabaseName(name)
	if err != nil {
		panic(err)
	}
	return db
}

func (db DatabaseName) String() string {
	return db.name
}
