package iox

import "strings"

// RelativePath is a path inside one database's directory. It means nothing on
// its own: it must be joined to a RootPath to get a store path.
type RelativePath struct {
	parts []string
}

// NewRelativePath returns a RelativePath made of parts, in order. Empty
// parts are dropped since no store can keep them.
func NewRelativePath(parts ...string) RelativePath {
	var r RelativePath
	for _, p := range parts {
		r = r.Push(p)
	}
	return r
}

// Push returns a copy of r with part added to the end.
func (r RelativePath) Push(part string) RelativePath {
	if part == "" {
		return r
	}
	r.parts = append(r.parts[:len(r.parts):len(r.parts)], part)
	return r
}

// Parts returns the parts of r.
func (r RelativePath) Parts() []string {
	return append([]string(nil), r.parts...)
}

// IsEmpty is true for the path naming the database root itself.
func (r RelativePath) IsEmpty() bool {
	return len(r.parts) == 0
}

// Equal is true if r and o have the same parts.
func (r RelativePath) Equal(o RelativePath) bool {
	if len(r.parts) != len(o.parts) {
		return false
	}
	for i := range r.parts {
		if r.parts[i] != o.parts[i] {
			return false
		}
	}
	return true
}

func (r RelativePath) String() string {
	return strings.Join(r.parts, "/")
}
