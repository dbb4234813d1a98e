package store_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndlib/ioxstore/store"
	"github.com/ndlib/ioxstore/store/storetest"
)

func TestMemoryConformance(t *testing.T) {
	m := store.NewMemory()
	m.PageSize = 4
	storetest.Conformance(t, m, store.NewPath("base"), 4)
	assert.Empty(t, storetest.Keys(t, m, store.Path{}))
}

func TestMemoryStress(t *testing.T) {
	storetest.Stress(t, store.NewMemory(), store.NewPath("stress"), 5*1000*1000)
}

func TestMemoryGetIsSnapshot(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	p := store.NewPath("a").SetFile("b")
	storetest.Put(t, m, p, "first")

	rc, err := m.Get(ctx, p)
	require.NoError(t, err)
	defer rc.Close()

	// replacing the object does not disturb a reader already open
	storetest.Put(t, m, p, "second")
	var buf bytes.Buffer
	_, err = buf.ReadFrom(rc)
	require.NoError(t, err)
	assert.Equal(t, "first", buf.String())
}

func TestMemoryDump(t *testing.T) {
	m := store.NewMemory()
	storetest.Put(t, m, store.NewPath("z").SetFile("y"), "hello")
	var buf bytes.Buffer
	m.Dump(&buf)
	assert.Equal(t, "z/y: hello\n", buf.String())
}

func TestMemoryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := store.NewMemory()
	_, err := m.Get(ctx, store.NewPath("a"))
	assert.ErrorIs(t, err, context.Canceled)
	_, err = m.List(ctx, store.Path{})
	assert.ErrorIs(t, err, context.Canceled)
}
