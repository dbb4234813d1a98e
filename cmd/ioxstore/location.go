package main

import (
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ndlib/ioxstore/store"
)

// splitBucketPrefix will take a path and separate the bucket name from a prefix, if any.
// It will also append "addition" to the prefix, and make sure the prefix returned is
// either empty or ends with a slash "/".
//
// examples:
//
//	"" -> ("", "")
//	"bucket" -> ("bucket", "")
//	"bucket/and/a/prefix" -> ("bucket", "and/a/prefix/")
func splitBucketPrefix(location string, addition string) (bucket, prefix string) {
	if location == "" {
		return
	}
	location = strings.TrimPrefix(location, "/")
	v := strings.SplitN(location, "/", 2)
	bucket = v[0]
	if len(v) > 1 {
		prefix = v[1]
	}
	if addition != "" {
		prefix = path.Join(prefix, addition)
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix = prefix + "/"
	}
	return
}

// parselocation will create an appropriate store based on "location".
// If location is empty or "memory", a memory store is returned.
// It understands the schemes "file:", "s3:" and "bolt:". A location with no
// scheme is a directory.
//
// If addition is not empty, every path in the returned store is put below
// the directories in addition.
//
// The returned store may need closing; check for an io.Closer.
func parselocation(location string, addition string, log *zap.Logger) (store.Store, error) {
	if location == "" || location == "memory" {
		return withAddition(store.NewMemory(), addition), nil
	}
	u, err := url.Parse(location)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing location %s", location)
	}
	switch u.Scheme {
	case "", "file":
		p := u.Path
		if p == "" {
			// "file:rel/path" parses as opaque
			p = u.Opaque
		}
		fs := store.NewFileSystem(p)
		fs.Log = log
		return withAddition(fs, addition), nil
	case "s3":
		conf := &aws.Config{}
		if u.Host != "" {
			conf.Endpoint = aws.String(u.Host)
			conf.Region = aws.String("us-east-1")
			// disable SSL for local development
			if strings.Contains(u.Host, "localhost") {
				conf.DisableSSL = aws.Bool(true)
				conf.S3ForcePathStyle = aws.Bool(true)
			}
		}
		bucket, prefix := splitBucketPrefix(u.Path, addition)
		if bucket == "" {
			return nil, errors.Errorf("no bucket name in location %s", location)
		}
		sess, err := session.NewSession(conf)
		if err != nil {
			return nil, errors.Wrap(err, "creating aws session")
		}
		s := store.NewS3(bucket, prefix, sess)
		s.Log = log
		return s, nil
	case "bolt":
		p := u.Path
		if p == "" {
			p = u.Opaque
		}
		b, err := store.OpenBolt(p, nil)
		if err != nil {
			return nil, err
		}
		return closingStore{Store: withAddition(b, addition), Closer: b}, nil
	}
	return nil, errors.Errorf("unknown location scheme %q in %s", u.Scheme, location)
}

func withAddition(s store.Store, addition string) store.Store {
	if addition == "" {
		return s
	}
	return store.NewWithPrefix(s, strings.Split(strings.Trim(addition, "/"), "/")...)
}

// closingStore keeps the Close method of a store which has been wrapped.
type closingStore struct {
	store.Store
	Closer interface{ Close() error }
}

func (cs closingStore) Close() error {
	return cs.Closer.Close()
}
