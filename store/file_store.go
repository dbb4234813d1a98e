package store

import (
	"context"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// FileSystem implements a store kept in a directory tree. Every directory
// part of a Path is a directory on disk and the object itself is a file,
// named by the last part of the path. Parts are escaped the same way as in
// Path.Key, so they may contain any character.
//
// Since the tree mirrors the paths, an object cannot be stored at a path
// which is also the parent directory of another object.
type FileSystem struct {
	// PageSize is the number of paths returned by each Lister.Next.
	// Zero means DefaultPageSize.
	PageSize int

	// Log receives errors which have no other way back to the caller.
	// May be nil.
	Log *zap.Logger

	root string
}

const (
	// the subdir to store files while they are being written to. The '%'
	// is always escaped in path parts, so no object can live here.
	scratchdir = "%scratch"
)

var (
	// make sure it implements the Store interface
	_ Store = &FileSystem{}
)

// NewFileSystem creates a new FileSystem store based at the given root path.
func NewFileSystem(root string) *FileSystem {
	return &FileSystem{root: root}
}

// NewPath returns the empty path.
func (s *FileSystem) NewPath() Path {
	return Path{}
}

// osPath returns the file system path for p.
func (s *FileSystem) osPath(p Path) string {
	parts := p.Parts()
	elems := make([]string, 0, len(parts)+1)
	elems = append(elems, s.root)
	for _, part := range parts {
		elems = append(elems, encodePart(part))
	}
	return filepath.Join(elems...)
}

// Put writes r to a file in the scratch directory and then moves it into
// place, so readers never see a partially written object.
func (s *FileSystem) Put(ctx context.Context, location Path, r io.Reader, length int64) error {
	key := location.Key()
	if location.IsEmpty() {
		return failure("put", key, ErrPathIsDirectory)
	}
	target := s.osPath(location)
	fi, err := os.Stat(target)
	if (err == nil && fi.IsDir()) || isNotDir(err) {
		return failure("put", key, ErrPathIsDirectory)
	}
	scratch := filepath.Join(s.root, scratchdir)
	if err := os.MkdirAll(scratch, 0775); err != nil {
		return failure("put", key, err)
	}
	f, err := ioutil.TempFile(scratch, "put-")
	if err != nil {
		return failure("put", key, err)
	}
	temp := f.Name()
	body := &countingReader{r: &ctxReader{ctx: ctx, r: r}, expected: length}
	_, err = io.Copy(f, body)
	err2 := f.Close()
	if err == nil {
		err = err2
	}
	if err == nil {
		err = os.MkdirAll(filepath.Dir(target), 0775)
	}
	if err == nil {
		err = os.Rename(temp, target)
	}
	if isNotDir(err) {
		// another put made a file where a directory is needed
		err = ErrPathIsDirectory
	}
	if err != nil {
		os.Remove(temp)
		return streamFailure("put", key, body, err)
	}
	return nil
}

// Get opens the file for location.
func (s *FileSystem) Get(ctx context.Context, location Path) (io.ReadCloser, error) {
	key := location.Key()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.osPath(location))
	if isAbsent(err) {
		return nil, notFound("get", key)
	} else if err != nil {
		return nil, failure("get", key, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, failure("get", key, err)
	}
	if fi.IsDir() {
		f.Close()
		return nil, notFound("get", key)
	}
	return f, nil
}

// List returns every object under prefix. The tree is walked on the first
// call to Next, in lexical order.
func (s *FileSystem) List(ctx context.Context, prefix Path) (Lister, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &fsLister{s: s, prefix: prefix}, nil
}

type fsLister struct {
	s      *FileSystem
	prefix Path
	pages  *sliceLister // nil until the tree has been walked
}

func (l *fsLister) Next(ctx context.Context) ([]Path, error) {
	if l.pages == nil {
		paths, err := l.s.walk(ctx, l.prefix)
		if err != nil {
			return nil, failure("list", l.prefix.Key(), err)
		}
		l.pages = newSliceLister(paths, l.s.PageSize)
	}
	return l.pages.Next(ctx)
}

func (l *fsLister) Close() error {
	if l.pages != nil {
		l.pages.Close()
	}
	l.pages = newSliceLister(nil, 1)
	return nil
}

// walk returns the path of every regular file at or below prefix.
func (s *FileSystem) walk(ctx context.Context, prefix Path) ([]Path, error) {
	var result []Path
	start := s.osPath(prefix)
	err := filepath.Walk(start, func(name string, info os.FileInfo, err error) error {
		if err != nil {
			if isAbsent(err) && name == start {
				return nil
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, name)
		if err != nil {
			return err
		}
		if info.IsDir() {
			if rel == scratchdir {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			if s.Log != nil {
				s.Log.Debug("skipping irregular file", zap.String("name", name))
			}
			return nil
		}
		p := ParseKey(filepath.ToSlash(rel))
		if p.HasPrefix(prefix) {
			result = append(result, p)
		}
		return nil
	})
	if err != nil {
		if s.Log != nil {
			s.Log.Error("walking store tree", zap.String("root", s.root), zap.Error(err))
		}
		report(err, map[string]string{"Root": s.root})
	}
	return result, err
}

// Delete the file for location. It is not an error if it doesn't exist.
// Directories left empty are removed, up to the root.
func (s *FileSystem) Delete(ctx context.Context, location Path) error {
	key := location.Key()
	if err := ctx.Err(); err != nil {
		return err
	}
	fname := s.osPath(location)
	fi, err := os.Lstat(fname)
	if isAbsent(err) {
		return nil
	} else if err != nil {
		return failure("delete", key, err)
	}
	if fi.IsDir() {
		// there is no object here, only other objects below
		return nil
	}
	if err := os.Remove(fname); err != nil && !isAbsent(err) {
		return failure("delete", key, err)
	}
	s.prune(filepath.Dir(fname))
	return nil
}

// prune removes dir and its parents while they are empty.
func (s *FileSystem) prune(dir string) {
	root := filepath.Clean(s.root)
	for {
		dir = filepath.Clean(dir)
		if dir == root || !strings.HasPrefix(dir, root) {
			return
		}
		// Remove fails on a directory which is not empty, which ends the loop
		if os.Remove(dir) != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// isNotDir is true when a directory part of a path is a file.
func isNotDir(err error) bool {
	return err != nil && errors.Is(err, syscall.ENOTDIR)
}

// isAbsent is true for the errors meaning nothing is stored at a path. A path
// running through a file cannot name an object either.
func isAbsent(err error) bool {
	return os.IsNotExist(err) || isNotDir(err)
}

// ctxReader stops a copy once its context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
