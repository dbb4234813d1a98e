package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ndlib/ioxstore/store"
	"github.com/ndlib/ioxstore/store/storetest"
)

func TestPrefixSmoke(t *testing.T) {
	var prefixlists = []struct {
		input  store.Path
		result []string
	}{
		{store.Path{}, []string{"abc", "zed/q"}},
		{store.NewPath("zed"), []string{"zed/q"}},
		{store.NewPath("b"), []string{}},
	}
	m := store.NewMemory()
	ps := store.NewWithPrefix(m, "z")

	storetest.Put(t, ps, store.Path{}.SetFile("abc"), "text 1")
	storetest.Put(t, ps, store.NewPath("zed").SetFile("q"), "text 2")

	// add one to the memory store
	storetest.Put(t, m, store.Path{}.SetFile("qwerty"), "text 3")
	// and one which shares the prefix as a string, but not as a path
	storetest.Put(t, m, store.NewPath("zz").SetFile("abc"), "text 4")

	for _, test := range prefixlists {
		t.Logf("doing prefix '%s'", test.input)
		ids := storetest.Keys(t, ps, test.input)
		if len(test.result) == 0 {
			assert.Empty(t, ids)
			continue
		}
		assert.Equal(t, test.result, ids)
	}

	assert.Equal(t, []string{"qwerty", "z/abc", "z/zed/q", "zz/abc"}, storetest.Keys(t, m, store.Path{}))
	assert.Equal(t, "text 2", storetest.Get(t, ps, store.NewPath("zed").SetFile("q")))
}

func TestPrefixConformance(t *testing.T) {
	m := store.NewMemory()
	m.PageSize = 4
	storetest.Conformance(t, store.NewWithPrefix(m, "ns", "inner"), store.NewPath("base"), 4)
	assert.Empty(t, storetest.Keys(t, m, store.Path{}))
}
