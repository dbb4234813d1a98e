package store_test

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndlib/ioxstore/store"
)

// fakeS3 answers the read side of the S3 API from a map. Calls to anything
// else panic on the nil embedded interface.
type fakeS3 struct {
	s3iface.S3API
	objects  map[string]string
	maxkeys  int
	failWith error
	listed   int // number of list requests made
}

func (f *fakeS3) GetObjectWithContext(ctx aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	v, ok := f.objects[*in.Key]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "The specified key does not exist.", nil)
	}
	return &s3.GetObjectOutput{Body: ioutil.NopCloser(strings.NewReader(v))}, nil
}

func (f *fakeS3) DeleteObjectWithContext(ctx aws.Context, in *s3.DeleteObjectInput, _ ...request.Option) (*s3.DeleteObjectOutput, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2WithContext(ctx aws.Context, in *s3.ListObjectsV2Input, _ ...request.Option) (*s3.ListObjectsV2Output, error) {
	f.listed++
	if f.failWith != nil {
		return nil, f.failWith
	}
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.StringValue(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	start := 0
	if in.ContinuationToken != nil {
		fmt.Sscan(*in.ContinuationToken, &start)
	}
	end := start + f.maxkeys
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	if end < len(keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(fmt.Sprint(end))
	} else {
		end = len(keys)
	}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, &s3.Object{Key: aws.String(k)})
	}
	return out, nil
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		maxkeys: 2,
		objects: map[string]string{
			"pre/1/clouds/data/a":         "A",
			"pre/1/clouds/data/b":         "B",
			"pre/1/clouds/data2/c":        "C",
			"pre/1/clouds/transactions/t": "T",
			"other/1/clouds/data/z":       "Z",
		},
	}
}

func TestS3Get(t *testing.T) {
	s := store.NewS3WithClient("bucket", "pre/", newFakeS3())
	rc, err := s.Get(context.Background(), store.NewPath("1", "clouds", "data").SetFile("a"))
	require.NoError(t, err)
	data, _ := ioutil.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "A", string(data))

	_, err = s.Get(context.Background(), store.NewPath("1", "clouds", "data").SetFile("z"))
	assert.True(t, store.IsNotFound(err), "got %v", err)
}

func TestS3ListPages(t *testing.T) {
	fake := newFakeS3()
	s := store.NewS3WithClient("bucket", "pre/", fake)
	ctx := context.Background()

	l, err := s.List(ctx, store.NewPath("1", "clouds", "data"))
	require.NoError(t, err)
	assert.Equal(t, 0, fake.listed, "nothing is fetched before Next")

	// the string prefix also matches data2/c, which must be dropped. It
	// sits alone on the second page, so Next moves on to report io.EOF
	batch, err := l.Next(ctx)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, "1/clouds/data/a", batch[0].Key())
	assert.Equal(t, "1/clouds/data/b", batch[1].Key())
	_, err = l.Next(ctx)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 2, fake.listed)

	l, err = s.List(ctx, store.Path{})
	require.NoError(t, err)
	paths, err := store.ListAll(ctx, l)
	require.NoError(t, err)
	assert.Len(t, paths, 4)
}

func TestS3Delete(t *testing.T) {
	fake := newFakeS3()
	s := store.NewS3WithClient("bucket", "pre/", fake)
	p := store.NewPath("1", "clouds", "data").SetFile("a")
	require.NoError(t, s.Delete(context.Background(), p))
	require.NoError(t, s.Delete(context.Background(), p))
	_, ok := fake.objects["pre/1/clouds/data/a"]
	assert.False(t, ok)
}

func TestS3Failure(t *testing.T) {
	fake := newFakeS3()
	fake.failWith = awserr.NewRequestFailure(awserr.New("AccessDenied", "Access Denied", nil), http.StatusForbidden, "req-1")
	s := store.NewS3WithClient("bucket", "pre/", fake)
	ctx := context.Background()
	p := store.NewPath("1").SetFile("a")

	_, err := s.Get(ctx, p)
	assert.True(t, store.IsStorageError(err))
	assert.False(t, store.IsNotFound(err))

	assert.True(t, store.IsStorageError(s.Delete(ctx, p)))

	l, err := s.List(ctx, store.Path{})
	require.NoError(t, err)
	_, err = l.Next(ctx)
	assert.True(t, store.IsStorageError(err))
}
