package iox

import (
	"math/rand"
	"reflect"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndlib/ioxstore/ident"
	"github.com/ndlib/ioxstore/store"
)

func makeRoot(t *testing.T) RootPath {
	return NewRootPath(store.NewMemory().NewPath(), makeServerID(t), ident.MustDatabaseName("clouds"))
}

func TestRootPathAddsItselfToAllObjectStorePaths(t *testing.T) {
	empty := store.NewMemory().NewPath()
	root := makeRoot(t)
	relative := NewRelativePath("foo", "bar")

	expected := empty.PushDir("1").PushDir("clouds").PushDir("foo").PushDir("bar")
	assert.True(t, expected.Equal(root.Join(relative)), "got %v", root.Join(relative).Parts())
	assert.Equal(t, []string{"1", "clouds", "foo", "bar"}, root.Join(relative).Parts())
}

func TestRootPathStrip(t *testing.T) {
	root := makeRoot(t)
	var table = []struct {
		full     store.Path
		relative []string
	}{
		{store.NewPath("1", "clouds", "foo", "bar"), []string{"foo", "bar"}},
		{store.NewPath("1", "clouds", "data").SetFile("x.parquet"), []string{"data", "x.parquet"}},
		{store.NewPath("1", "clouds"), nil},
	}
	for _, tab := range table {
		r := root.Strip(tab.full)
		assert.Equal(t, tab.relative, r.Parts(), "full %s", tab.full)
	}
}

func TestRootPathStripOutsidePanics(t *testing.T) {
	root := makeRoot(t)
	for _, p := range []store.Path{
		store.NewPath("2", "clouds", "foo"),
		store.NewPath("1", "cloudsy", "foo"),
		store.NewPath("1"),
		{},
	} {
		assert.Panics(t, func() { root.Strip(p) }, "path %v", p.Parts())

		_, err := root.Relative(p)
		require.Error(t, err)
		assert.IsType(t, &ScopeViolation{}, err)
	}
}

// Generate makes random RelativePaths for testing/quick, including parts
// with the characters the store has to escape.
func (RelativePath) Generate(rnd *rand.Rand, size int) reflect.Value {
	alphabet := []rune("ab/%.☃ 0")
	n := rnd.Intn(size + 1)
	parts := make([]string, n)
	for i := range parts {
		k := rnd.Intn(6)
		s := make([]rune, k)
		for j := range s {
			s[j] = alphabet[rnd.Intn(len(alphabet))]
		}
		parts[i] = string(s)
	}
	return reflect.ValueOf(NewRelativePath(parts...))
}

func TestRoundTripLaw(t *testing.T) {
	root := makeRoot(t)
	f := func(r RelativePath) bool {
		return root.Strip(root.Join(r)).Equal(r)
	}
	require.NoError(t, quick.Check(f, nil))
}

func TestRoundTripThroughKey(t *testing.T) {
	root := makeRoot(t)
	f := func(r RelativePath) bool {
		return root.Strip(store.ParseKey(root.Join(r).Key())).Equal(r)
	}
	require.NoError(t, quick.Check(f, nil))
}

func TestPrefixInvariant(t *testing.T) {
	f := func(server uint32, r RelativePath) bool {
		if server == 0 {
			server = 1
		}
		id := ident.ServerID(server)
		root := NewRootPath(store.Path{}, id, ident.MustDatabaseName("clouds"))
		parts := root.Join(r).Parts()
		return len(parts) == 2+len(r.Parts()) &&
			parts[0] == id.String() &&
			parts[1] == "clouds"
	}
	require.NoError(t, quick.Check(f, nil))
}

func TestRelativePath(t *testing.T) {
	r := NewRelativePath("a", "", "b")
	assert.Equal(t, []string{"a", "b"}, r.Parts())
	assert.Equal(t, "a/b", r.String())
	assert.False(t, r.IsEmpty())
	assert.True(t, RelativePath{}.IsEmpty())
	assert.True(t, NewRelativePath().Equal(RelativePath{}))

	x := r.Push("x")
	y := r.Push("y")
	assert.Equal(t, "a/b/x", x.String())
	assert.Equal(t, "a/b/y", y.String())
	assert.Equal(t, "a/b", r.String())
	assert.False(t, x.Equal(y))
}
