package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"sort"
	"strings"
	"sync"
)

// Memory implements a simple in-memory version of a store. It is intended
// mainly for testing.
type Memory struct {
	// PageSize is the number of paths returned by each Lister.Next.
	// Zero means DefaultPageSize.
	PageSize int

	m     sync.RWMutex
	store map[string][]byte // store key -> contents
}

var (
	// ensure Memory satisfies the Store interface
	_ Store = &Memory{}
)

// NewMemory returns a new, empty memory store.
func NewMemory() *Memory {
	return &Memory{store: make(map[string][]byte)}
}

// NewPath returns the empty path.
func (ms *Memory) NewPath() Path {
	return Path{}
}

// Put reads r completely and then saves it under location. A previous
// object at location is replaced only once the whole stream was read.
func (ms *Memory) Put(ctx context.Context, location Path, r io.Reader, length int64) error {
	key := location.Key()
	if err := ctx.Err(); err != nil {
		return err
	}
	body := &countingReader{r: r, expected: length}
	data, err := ioutil.ReadAll(body)
	if err != nil {
		return streamFailure("put", key, body, err)
	}
	ms.m.Lock()
	ms.store[key] = data
	ms.m.Unlock()
	return nil
}

// Get returns a reader over a snapshot of the object at location.
func (ms *Memory) Get(ctx context.Context, location Path) (io.ReadCloser, error) {
	key := location.Key()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ms.m.RLock()
	data, ok := ms.store[key]
	ms.m.RUnlock()
	if !ok {
		return nil, notFound("get", key)
	}
	// Put never modifies a stored slice, so there is no need to copy it
	return ioutil.NopCloser(bytes.NewReader(data)), nil
}

// List returns every path under prefix, sorted by key. The set of paths is
// taken when List is called; later changes are not seen by the Lister.
func (ms *Memory) List(ctx context.Context, prefix Path) (Lister, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pkey := prefix.Key()
	var keys []string
	ms.m.RLock()
	for k := range ms.store {
		if strings.HasPrefix(k, pkey) {
			keys = append(keys, k)
		}
	}
	ms.m.RUnlock()
	sort.Strings(keys)
	var result []Path
	for _, k := range keys {
		p := ParseKey(k)
		if p.HasPrefix(prefix) {
			result = append(result, p)
		}
	}
	return newSliceLister(result, ms.PageSize), nil
}

// Delete the given path from the store. It is not an error if the object does
// not exist in the store.
func (ms *Memory) Delete(ctx context.Context, location Path) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ms.m.Lock()
	delete(ms.store, location.Key())
	ms.m.Unlock()
	return nil
}

// Dump writes a listing of the contents of the store to the given writer.
// This is intended for testing and debugging.
func (ms *Memory) Dump(w io.Writer) {
	ms.m.RLock()
	defer ms.m.RUnlock()
	keys := make([]string, 0, len(ms.store))
	for k := range ms.store {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s := ms.store[k]
		if len(s) > 300 {
			s = s[:50]
		}
		fmt.Fprintf(w, "%s: %s\n", k, string(s))
	}
}
