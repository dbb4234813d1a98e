package store

import (
	"context"
	"io"
)

// NewWithPrefix wraps the store s by one which will put all its paths below
// the directories in prefix. This provides a way to namespace the paths,
// and to share the same underlying store among a group of users.
//
// Paths listed by s which are outside the prefix are silently dropped.
func NewWithPrefix(s Store, prefix ...string) Store {
	p := s.NewPath()
	for _, d := range prefix {
		p = p.PushDir(d)
	}
	return prefixstore{s: s, p: p}
}

type prefixstore struct {
	s Store // the store being wrapped
	p Path  // the prefix for our paths
}

func (ps prefixstore) NewPath() Path {
	return Path{}
}

// full returns the path in the wrapped store for p.
func (ps prefixstore) full(p Path) Path {
	result := ps.p
	for _, d := range p.dirs {
		result = result.PushDir(d)
	}
	return result.SetFile(p.file)
}

func (ps prefixstore) Put(ctx context.Context, location Path, r io.Reader, length int64) error {
	return ps.s.Put(ctx, ps.full(location), r, length)
}

func (ps prefixstore) Get(ctx context.Context, location Path) (io.ReadCloser, error) {
	return ps.s.Get(ctx, ps.full(location))
}

func (ps prefixstore) Delete(ctx context.Context, location Path) error {
	return ps.s.Delete(ctx, ps.full(location))
}

func (ps prefixstore) List(ctx context.Context, prefix Path) (Lister, error) {
	l, err := ps.s.List(ctx, ps.full(prefix))
	if err != nil {
		return nil, err
	}
	return &prefixLister{l: l, p: ps.p}, nil
}

type prefixLister struct {
	l Lister
	p Path
}

func (pl *prefixLister) Next(ctx context.Context) ([]Path, error) {
	for {
		batch, err := pl.l.Next(ctx)
		if err != nil {
			return nil, err
		}
		result := make([]Path, 0, len(batch))
		for _, full := range batch {
			dirs, ok := full.PartsAfterPrefix(pl.p)
			if !ok || len(dirs) == 0 {
				continue
			}
			// PartsAfterPrefix gives the file as the last part; put it back
			var p Path
			if full.file != "" {
				dirs = dirs[:len(dirs)-1]
			}
			for _, d := range dirs {
				p = p.PushDir(d)
			}
			result = append(result, p.SetFile(full.file))
		}
		if len(result) > 0 {
			return result, nil
		}
	}
}

func (pl *prefixLister) Close() error {
	return pl.l.Close()
}
