package util

import (
	"bytes"
	"crypto/md5"
	"crypto/sha256"
	"hash"
	"io"

	"github.com/pkg/errors"
)

// ErrChecksumMismatch means a stream did not have the checksum it was
// expected to have.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// A HashReader wraps an io.Reader and calculates the MD5 and SHA256 hashes of
// the bytes read through it.
//
// If given an expected MD5, the final Read returns ErrChecksumMismatch
// instead of io.EOF when the data does not match. A consumer which treats any
// error as a failed stream, such as a store's Put, will then reject the data.
type HashReader struct {
	r        io.Reader
	md5      hash.Hash
	sha256   hash.Hash
	expected []byte // expected md5, if any
}

// NewHashReader returns a HashReader over r. Pass a nil or empty expectedMD5
// to skip verification.
func NewHashReader(r io.Reader, expectedMD5 []byte) *HashReader {
	return &HashReader{
		r:        r,
		md5:      md5.New(),
		sha256:   sha256.New(),
		expected: expectedMD5,
	}
}

func (hr *HashReader) Read(p []byte) (int, error) {
	n, err := hr.r.Read(p)
	hr.md5.Write(p[:n])
	hr.sha256.Write(p[:n])
	if err == io.EOF && len(hr.expected) > 0 && !bytes.Equal(hr.expected, hr.md5.Sum(nil)) {
		err = errors.Wrapf(ErrChecksumMismatch, "md5 %x", hr.md5.Sum(nil))
	}
	return n, err
}

// MD5 returns the MD5 hash of everything read so far.
func (hr *HashReader) MD5() []byte {
	return hr.md5.Sum(nil)
}

// SHA256 returns the SHA256 hash of everything read so far.
func (hr *HashReader) SHA256() []byte {
	return hr.sha256.Sum(nil)
}
