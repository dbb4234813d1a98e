package store

import (
	"net/url"
	"strings"
)

// Delimiter separates the parts of a Path when it is rendered as a key.
const Delimiter = "/"

// Path is a location inside a Store. It is an ordered list of directory
// parts followed by an optional file name. Paths are compared part by part,
// never as raw strings, so a part may contain any character, including the
// delimiter.
//
// A Path is a value. The methods which extend a path return a new one and
// never change the receiver.
type Path struct {
	dirs []string
	file string
}

// PushDir returns a copy of p with part added as a new innermost directory.
// Empty parts are ignored, since they cannot survive being rendered as a key.
func (p Path) PushDir(part string) Path {
	if part == "" {
		return p
	}
	// the three-index slice forces append to copy, so two paths pushed
	// from the same parent never share a backing array
	p.dirs = append(p.dirs[:len(p.dirs):len(p.dirs)], part)
	return p
}

// SetFile returns a copy of p with the given file name.
func (p Path) SetFile(name string) Path {
	p.file = name
	return p
}

// Dirs returns the directory parts of p.
func (p Path) Dirs() []string {
	return append([]string(nil), p.dirs...)
}

// File returns the file name of p, or "" if p names a directory.
func (p Path) File() string {
	return p.file
}

// Parts returns every part of p in order, the file name last.
func (p Path) Parts() []string {
	result := make([]string, 0, len(p.dirs)+1)
	result = append(result, p.dirs...)
	if p.file != "" {
		result = append(result, p.file)
	}
	return result
}

// IsEmpty is true for the zero Path, which is the root of a store.
func (p Path) IsEmpty() bool {
	return len(p.dirs) == 0 && p.file == ""
}

// Equal is true if p and q have identical directories and file name.
func (p Path) Equal(q Path) bool {
	if p.file != q.file || len(p.dirs) != len(q.dirs) {
		return false
	}
	for i := range p.dirs {
		if p.dirs[i] != q.dirs[i] {
			return false
		}
	}
	return true
}

// HasPrefix is true if the parts of prefix are a leading subsequence of
// the parts of p. A path has itself as a prefix.
func (p Path) HasPrefix(prefix Path) bool {
	_, ok := p.PartsAfterPrefix(prefix)
	return ok
}

// PartsAfterPrefix returns the parts of p remaining after removing the parts
// of prefix. The boolean is false if prefix is not a prefix of p.
func (p Path) PartsAfterPrefix(prefix Path) ([]string, bool) {
	parts := p.Parts()
	pre := prefix.Parts()
	if len(pre) > len(parts) {
		return nil, false
	}
	for i := range pre {
		if parts[i] != pre[i] {
			return nil, false
		}
	}
	return parts[len(pre):], true
}

// String renders p for display. Every directory is followed by the
// delimiter, so a directory path ends with a trailing slash,
// e.g. "1/clouds/data/".
func (p Path) String() string {
	var b strings.Builder
	for _, d := range p.dirs {
		b.WriteString(d)
		b.WriteString(Delimiter)
	}
	b.WriteString(p.file)
	return b.String()
}

// Key renders p as a store key. The parts are escaped and joined by the
// delimiter without a trailing one. ParseKey reverses this.
func (p Path) Key() string {
	parts := p.Parts()
	for i := range parts {
		parts[i] = encodePart(parts[i])
	}
	return strings.Join(parts, Delimiter)
}

// ParseKey turns a store key back into a Path. The last part becomes the
// file name unless the key ends with the delimiter.
func ParseKey(key string) Path {
	var p Path
	if key == "" {
		return p
	}
	isdir := strings.HasSuffix(key, Delimiter)
	parts := strings.Split(strings.TrimSuffix(key, Delimiter), Delimiter)
	if !isdir {
		p.file = decodePart(parts[len(parts)-1])
		parts = parts[:len(parts)-1]
	}
	for _, part := range parts {
		p = p.PushDir(decodePart(part))
	}
	return p
}

// NewPath returns a Path made of the given directories.
func NewPath(dirs ...string) Path {
	var p Path
	for _, d := range dirs {
		p = p.PushDir(d)
	}
	return p
}

// encodePart escapes the characters which would otherwise change how a key
// splits back into parts.
func encodePart(part string) string {
	switch part {
	case ".":
		return "%2E"
	case "..":
		return "%2E%2E"
	}
	if !strings.ContainsAny(part, "%/") {
		return part
	}
	var b strings.Builder
	for i := 0; i < len(part); i++ {
		switch c := part[i]; c {
		case '%':
			b.WriteString("%25")
		case '/':
			b.WriteString("%2F")
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func decodePart(part string) string {
	if !strings.Contains(part, "%") {
		return part
	}
	s, err := url.PathUnescape(part)
	if err != nil {
		// not written by us. keep the raw text
		return part
	}
	return s
}
