// Package storetest provides functions for facilitating the testing of
// anything implementing the store.Store interface.
package storetest

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"sort"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndlib/ioxstore/store"
)

// Conformance runs the behaviour every Store must share. The store should be
// empty below base, and is left empty below base afterwards.
//
// pagesize is the page size the store was configured with, or 0 if it
// cannot be controlled. When positive the Lister batch sizes are checked.
func Conformance(t *testing.T, s store.Store, base store.Path, pagesize int) {
	t.Run("PutGet", func(t *testing.T) { testPutGet(t, s, base) })
	t.Run("Overwrite", func(t *testing.T) { testOverwrite(t, s, base) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, s, base) })
	t.Run("DeleteIdempotent", func(t *testing.T) { testDeleteIdempotent(t, s, base) })
	t.Run("LengthMismatch", func(t *testing.T) { testLengthMismatch(t, s, base) })
	t.Run("StreamError", func(t *testing.T) { testStreamError(t, s, base) })
	t.Run("ListPrefix", func(t *testing.T) { testListPrefix(t, s, base) })
	t.Run("ListPaging", func(t *testing.T) { testListPaging(t, s, base, pagesize) })
	t.Run("OddParts", func(t *testing.T) { testOddParts(t, s, base) })
	t.Run("ParentIsObject", func(t *testing.T) { testParentIsObject(t, s, base) })
}

// Put stores data at p, failing the test on any error.
func Put(t testing.TB, s store.Store, p store.Path, data string) {
	t.Helper()
	err := s.Put(context.Background(), p, strings.NewReader(data), int64(len(data)))
	require.NoError(t, err, "put %s", p)
}

// Get returns the contents at p, failing the test on any error.
func Get(t testing.TB, s store.Store, p store.Path) string {
	t.Helper()
	rc, err := s.Get(context.Background(), p)
	require.NoError(t, err, "get %s", p)
	defer rc.Close()
	data, err := ioutil.ReadAll(rc)
	require.NoError(t, err, "read %s", p)
	return string(data)
}

// Keys lists everything under prefix and returns the keys, sorted.
func Keys(t testing.TB, s store.Store, prefix store.Path) []string {
	t.Helper()
	l, err := s.List(context.Background(), prefix)
	require.NoError(t, err)
	paths, err := store.ListAll(context.Background(), l)
	require.NoError(t, err)
	keys := make([]string, 0, len(paths))
	for _, p := range paths {
		keys = append(keys, p.Key())
	}
	sort.Strings(keys)
	return keys
}

func file(base store.Path, name string, dirs ...string) store.Path {
	for _, d := range dirs {
		base = base.PushDir(d)
	}
	return base.SetFile(name)
}

func testPutGet(t *testing.T, s store.Store, base store.Path) {
	ctx := context.Background()
	p := file(base, "hello.txt", "putget")
	Put(t, s, p, "hello world")
	assert.Equal(t, "hello world", Get(t, s, p))

	// a directory only path is also a valid location
	d := base.PushDir("putget").PushDir("dironly")
	Put(t, s, d, "no file name")
	assert.Equal(t, "no file name", Get(t, s, d))

	// unknown length
	q := file(base, "unknown", "putget")
	require.NoError(t, s.Put(ctx, q, bytes.NewReader(make([]byte, 70000)), -1))
	assert.Len(t, Get(t, s, q), 70000)

	for _, x := range []store.Path{p, d, q} {
		require.NoError(t, s.Delete(ctx, x))
	}
}

func testOverwrite(t *testing.T, s store.Store, base store.Path) {
	p := file(base, "x", "overwrite")
	Put(t, s, p, "first")
	Put(t, s, p, "second, longer")
	assert.Equal(t, "second, longer", Get(t, s, p))
	require.NoError(t, s.Delete(context.Background(), p))
}

func testGetMissing(t *testing.T, s store.Store, base store.Path) {
	p := file(base, "nothing", "missing")
	_, err := s.Get(context.Background(), p)
	require.Error(t, err)
	assert.True(t, store.IsNotFound(err), "expected not found, got %v", err)
	assert.False(t, store.IsStorageError(err))
}

func testDeleteIdempotent(t *testing.T, s store.Store, base store.Path) {
	ctx := context.Background()
	p := file(base, "gone", "delete")
	require.NoError(t, s.Delete(ctx, p), "deleting a missing object")

	Put(t, s, p, "data")
	require.NoError(t, s.Delete(ctx, p))
	require.NoError(t, s.Delete(ctx, p), "deleting twice")

	_, err := s.Get(ctx, p)
	assert.True(t, store.IsNotFound(err), "expected not found, got %v", err)
}

func testLengthMismatch(t *testing.T, s store.Store, base store.Path) {
	ctx := context.Background()
	p := file(base, "short", "mismatch")
	err := s.Put(ctx, p, strings.NewReader("abc"), 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrLengthMismatch), "got %v", err)
	assert.False(t, store.IsStorageError(err), "a short stream is not a storage failure: %v", err)
	_, err = s.Get(ctx, p)
	assert.True(t, store.IsNotFound(err), "a failed put must not store anything, got %v", err)
}

// testStreamError puts from a reader which fails part way. The caller's
// error comes back, and is not reported as a failure of the storage.
func testStreamError(t *testing.T, s store.Store, base store.Path) {
	ctx := context.Background()
	p := file(base, "broken", "stream")
	failed := errors.New("client went away")
	r := io.MultiReader(strings.NewReader("partial"), iotest.ErrReader(failed))
	err := s.Put(ctx, p, r, -1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, failed), "got %v", err)
	assert.False(t, store.IsStorageError(err), "a failed stream is not a storage failure: %v", err)
	_, err = s.Get(ctx, p)
	assert.True(t, store.IsNotFound(err), "a failed put must not store anything, got %v", err)
}

func testListPrefix(t *testing.T, s store.Store, base store.Path) {
	ctx := context.Background()
	root := base.PushDir("list")
	var made []store.Path
	for _, p := range []store.Path{
		file(root, "a", "data"),
		file(root, "b", "data", "sub"),
		file(root, "c", "data2"),
		file(root, "t1", "transactions"),
	} {
		Put(t, s, p, "x")
		made = append(made, p)
	}
	defer func() {
		for _, p := range made {
			require.NoError(t, s.Delete(ctx, p))
		}
	}()

	var table = []struct {
		prefix   store.Path
		expected []store.Path
	}{
		{root, made},
		{root.PushDir("data"), made[:2]},
		{root.PushDir("data2"), made[2:3]},
		{root.PushDir("transactions"), made[3:]},
		{root.PushDir("nothing"), nil},
		{file(root, "a", "data"), made[:1]},
	}
	for _, tab := range table {
		var expected []string
		for _, p := range tab.expected {
			expected = append(expected, p.Key())
		}
		sort.Strings(expected)
		got := Keys(t, s, tab.prefix)
		if len(expected) == 0 {
			assert.Empty(t, got, "prefix %s", tab.prefix)
			continue
		}
		assert.Equal(t, expected, got, "prefix %s", tab.prefix)
	}
}

func testListPaging(t *testing.T, s store.Store, base store.Path, pagesize int) {
	ctx := context.Background()
	if pagesize <= 0 {
		pagesize = 3
	}
	root := base.PushDir("paging")
	n := 2*pagesize + 1
	for i := 0; i < n; i++ {
		Put(t, s, root.SetFile(string(rune('a'+i%26))+strings.Repeat("z", i/26)), "x")
	}

	l, err := s.List(ctx, root)
	require.NoError(t, err)
	var total int
	for {
		batch, err := l.Next(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.NotEmpty(t, batch, "Next must not return an empty batch")
		require.LessOrEqual(t, len(batch), pagesize)
		for _, p := range batch {
			assert.True(t, p.HasPrefix(root), "%s outside %s", p, root)
		}
		total += len(batch)
	}
	require.NoError(t, l.Close())
	assert.Equal(t, n, total)

	// closing early is fine
	l, err = s.List(ctx, root)
	require.NoError(t, err)
	_, err = l.Next(ctx)
	require.NoError(t, err)
	require.NoError(t, l.Close())

	for _, k := range Keys(t, s, root) {
		require.NoError(t, s.Delete(ctx, store.ParseKey(k)))
	}
	assert.Empty(t, Keys(t, s, root))
}

func testOddParts(t *testing.T, s store.Store, base store.Path) {
	ctx := context.Background()
	p := base.PushDir("odd").PushDir("a/b").PushDir("..").PushDir("50%").SetFile(".")
	Put(t, s, p, "odd")
	assert.Equal(t, "odd", Get(t, s, p))

	l, err := s.List(ctx, base.PushDir("odd"))
	require.NoError(t, err)
	paths, err := store.ListAll(ctx, l)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, p.Parts(), paths[0].Parts())

	require.NoError(t, s.Delete(ctx, p))
}

// testParentIsObject uses an object as a directory of another path. Nothing
// can be stored below an object on a file system, but that is a property of
// the path, not a failure of the storage.
func testParentIsObject(t *testing.T, s store.Store, base store.Path) {
	ctx := context.Background()
	parent := file(base, "a", "parent")
	Put(t, s, parent, "object")
	defer s.Delete(ctx, parent)
	child := file(base, "b", "parent", "a")

	_, err := s.Get(ctx, child)
	assert.True(t, store.IsNotFound(err), "get below an object: %v", err)
	assert.False(t, store.IsStorageError(err))

	assert.NoError(t, s.Delete(ctx, child), "delete below an object")
	assert.Empty(t, Keys(t, s, file(base, "", "parent", "a", "b")))

	err = s.Put(ctx, child, strings.NewReader("x"), 1)
	if err != nil {
		assert.True(t, errors.Is(err, store.ErrPathIsDirectory), "put below an object: %v", err)
		assert.False(t, store.IsStorageError(err))
	} else {
		s.Delete(ctx, child)
	}
	assert.Equal(t, "object", Get(t, s, parent))
}
