package storetest

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"hash"
	"io"
	"math"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/ndlib/ioxstore/store"
)

const (
	stressWriters = 5
	stressReaders = 10
)

// Stress has a pool of writers and a pool of readers work on the store at the
// same time. It is a good test to run with the -race flag to try to find race
// conditions.
//
// The writers upload random blobs under base until their sizes add up to
// totalsize (1GB if zero). Sizes are spread over many orders of magnitude.
// The readers download each blob, check its hash, and then either delete it
// or put it back in the queue to be read again.
//
// Once the pools finish, listing base must give exactly the blobs which were
// not deleted. Those are then removed, after which base must list empty.
func Stress(t *testing.T, s store.Store, base store.Path, totalsize int64) {
	if totalsize == 0 {
		totalsize = 1000 * 1000 * 1000
	}
	st := &stresser{
		t:     t,
		s:     s,
		queue: make(chan blob, 1000),
		done:  make(chan struct{}),
		live:  make(map[string]blob),
	}

	sizes := make(chan int64)
	var writers, readers sync.WaitGroup
	for i := 0; i < stressWriters; i++ {
		writers.Add(1)
		go func(dir store.Path) {
			defer writers.Done()
			st.writer(dir, sizes)
		}(base.PushDir(fmt.Sprintf("w%d", i)))
	}
	for i := 0; i < stressReaders; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			st.reader()
		}()
	}

	blobSizes(sizes, totalsize)
	close(sizes)
	writers.Wait()
	close(st.done)
	readers.Wait()

	st.checkListing(base)
}

type blob struct {
	path store.Path
	hash []byte
	size int64
}

type stresser struct {
	t     *testing.T
	s     store.Store
	queue chan blob
	done  chan struct{}

	m    sync.Mutex // protects live
	live map[string]blob
}

func (st *stresser) writer(dir store.Path, sizes <-chan int64) {
	ctx := context.Background()
	h := md5.New()
	pattern := make([]byte, 64*1024)
	var count int
	for size := range sizes {
		count++
		rand.Read(pattern)
		h.Reset()
		b := blob{
			path: dir.SetFile(fmt.Sprintf("blob-%06d", count)),
			size: size,
		}
		r := io.TeeReader(&repeatReader{pattern: pattern, n: size}, h)
		if err := st.s.Put(ctx, b.path, r, size); err != nil {
			st.t.Error("put", b.path, size, err)
			continue
		}
		b.hash = h.Sum(nil)
		st.m.Lock()
		st.live[b.path.Key()] = b
		st.m.Unlock()
		st.queue <- b
	}
}

func (st *stresser) reader() {
	ctx := context.Background()
	h := md5.New()
	for {
		var b blob
		select {
		case <-st.done:
			return
		case b = <-st.queue:
		}
		h.Reset()
		if !st.fetch(ctx, b, h) {
			// leave it in the store. the listing check will still see it
			continue
		}
		if rand.Intn(2) == 0 {
			select {
			case st.queue <- b:
				continue
			default:
			}
		}
		st.remove(ctx, b)
	}
}

// fetch downloads b and reports whether it was intact.
func (st *stresser) fetch(ctx context.Context, b blob, h hash.Hash) bool {
	rc, err := st.s.Get(ctx, b.path)
	if err != nil {
		st.t.Error("get", b.path, err)
		return false
	}
	defer rc.Close()
	n, err := io.Copy(h, rc)
	if err != nil {
		st.t.Error("read", b.path, err)
		return false
	}
	if n != b.size {
		st.t.Errorf("%s: expected %d bytes, read %d", b.path, b.size, n)
		return false
	}
	if sum := h.Sum(nil); !bytes.Equal(b.hash, sum) {
		st.t.Errorf("%s: hash %x, expected %x", b.path, sum, b.hash)
		return false
	}
	return true
}

func (st *stresser) remove(ctx context.Context, b blob) {
	if err := st.s.Delete(ctx, b.path); err != nil {
		st.t.Error("delete", b.path, err)
		return
	}
	st.m.Lock()
	delete(st.live, b.path.Key())
	st.m.Unlock()
}

// checkListing compares a listing of base against the live blobs, and then
// deletes them all.
func (st *stresser) checkListing(base store.Path) {
	ctx := context.Background()
	var expected []string
	for k := range st.live {
		expected = append(expected, k)
	}
	sort.Strings(expected)
	got := st.listKeys(ctx, base)
	if fmt.Sprint(got) != fmt.Sprint(expected) {
		st.t.Errorf("listing has %d blobs, expected %d", len(got), len(expected))
	}

	for _, b := range st.live {
		st.remove(ctx, b)
	}
	if got := st.listKeys(ctx, base); len(got) > 0 {
		st.t.Errorf("%d blobs left after deleting everything", len(got))
	}
}

func (st *stresser) listKeys(ctx context.Context, base store.Path) []string {
	l, err := st.s.List(ctx, base)
	if err != nil {
		st.t.Error("list", err)
		return nil
	}
	paths, err := store.ListAll(ctx, l)
	if err != nil {
		st.t.Error("list", err)
	}
	keys := make([]string, len(paths))
	for i, p := range paths {
		keys[i] = p.Key()
	}
	sort.Strings(keys)
	return keys
}

// repeatReader gives n bytes made by repeating pattern.
type repeatReader struct {
	pattern []byte
	n       int64
	off     int
}

func (r *repeatReader) Read(p []byte) (int, error) {
	if r.n <= 0 {
		return 0, io.EOF
	}
	total := 0
	for len(p) > 0 && r.n > 0 {
		chunk := r.pattern[r.off:]
		if int64(len(chunk)) > r.n {
			chunk = chunk[:r.n]
		}
		k := copy(p, chunk)
		p = p[k:]
		r.n -= int64(k)
		r.off = (r.off + k) % len(r.pattern)
		total += k
	}
	return total, nil
}

// blobSizes sends sizes adding up to totalsize. The log of each size is
// uniform on [0, 20), so most orders of magnitude up to about 500MB appear.
func blobSizes(out chan<- int64, totalsize int64) {
	for totalsize > 0 {
		size := int64(math.Exp(20 * rand.Float64()))
		if size > totalsize {
			size = totalsize
		}
		out <- size
		totalsize -= size
	}
}
