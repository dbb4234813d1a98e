package store

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"go.uber.org/zap"
)

// A S3 store represents a store that is kept on AWS S3 storage.
// Do not change Bucket or Prefix concurrently with calls using the structure.
type S3 struct {
	Bucket string
	Prefix string

	// MaxKeys limits the number of keys S3 returns per list request.
	// Zero uses the service default of 1000.
	MaxKeys int64

	// Log receives backend failures. May be nil.
	Log *zap.Logger

	svc      s3iface.S3API
	uploader *s3manager.Uploader
}

var (
	// ensure S3 satisfies the Store interface
	_ Store = &S3{}
)

// NewS3 creates a new S3 store. It will use the given bucket and will prepend
// prefix to all keys. This is to allow for a bucket to be used for more than
// one store. For example if prefix were "cache/" then a Get of the path
// "1/clouds/data/x" would look for the key "cache/1/clouds/data/x" in the
// bucket. The authorization method and credentials in the session are used
// for all accesses.
func NewS3(bucket, prefix string, awsSession *session.Session) *S3 {
	return NewS3WithClient(bucket, prefix, s3.New(awsSession))
}

// NewS3WithClient is like NewS3 but uses the given client. This is mostly
// useful for testing with a stub client.
func NewS3WithClient(bucket, prefix string, svc s3iface.S3API) *S3 {
	return &S3{
		Bucket:   bucket,
		Prefix:   prefix,
		svc:      svc,
		uploader: s3manager.NewUploaderWithClient(svc),
	}
}

// NewPath returns the empty path.
func (s *S3) NewPath() Path {
	return Path{}
}

// Put uploads r to the key for location. The uploader switches to the
// multipart interface for large streams, so the length hint is only used to
// verify the stream.
func (s *S3) Put(ctx context.Context, location Path, r io.Reader, length int64) error {
	key := location.Key()
	body := &countingReader{r: r, expected: length}
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Prefix + key),
		Body:   body,
	})
	if err != nil {
		if body.err != nil {
			// the stream failed, not S3
			return streamFailure("put", key, body, err)
		}
		s.logerror("S3 Put", key, err)
		return failure("put", key, err)
	}
	return nil
}

// Get returns the body of the object for location. The data is streamed
// from S3 as the reader is read.
func (s *S3) Get(ctx context.Context, location Path) (io.ReadCloser, error) {
	key := location.Key()
	output, err := s.svc.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Prefix + key),
	})
	if isS3NotFound(err) {
		return nil, notFound("get", key)
	} else if err != nil {
		s.logerror("S3 Get", key, err)
		return nil, failure("get", key, err)
	}
	return output.Body, nil
}

// List returns a Lister which asks S3 for one page of keys on each call to
// Next. Only keys starting with the store's Prefix are seen, so it is safe
// to use this on a bucket containing other items.
func (s *S3) List(ctx context.Context, prefix Path) (Lister, error) {
	return &s3Lister{s: s, prefix: prefix}, nil
}

type s3Lister struct {
	s      *S3
	prefix Path
	token  *string // continuation token for the next page
	done   bool
}

func (l *s3Lister) Next(ctx context.Context) ([]Path, error) {
	s := l.s
	for !l.done {
		input := &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.Bucket),
			Prefix:            aws.String(s.Prefix + l.prefix.Key()),
			ContinuationToken: l.token,
		}
		if s.MaxKeys > 0 {
			input.MaxKeys = aws.Int64(s.MaxKeys)
		}
		page, err := s.svc.ListObjectsV2WithContext(ctx, input)
		if err != nil {
			s.logerror("S3 List", l.prefix.Key(), err)
			return nil, failure("list", l.prefix.Key(), err)
		}
		l.token = page.NextContinuationToken
		l.done = !aws.BoolValue(page.IsTruncated) || l.token == nil
		var result []Path
		for _, item := range page.Contents {
			p := ParseKey(strings.TrimPrefix(aws.StringValue(item.Key), s.Prefix))
			// S3 matches prefixes by string, so drop siblings such as
			// "data2" when listing "data"
			if p.HasPrefix(l.prefix) {
				result = append(result, p)
			}
		}
		if len(result) > 0 {
			return result, nil
		}
	}
	return nil, io.EOF
}

func (l *s3Lister) Close() error {
	l.done = true
	return nil
}

// Delete will remove the given key from the store. The store's Prefix is
// prepended first. It is not an error to delete something that doesn't exist.
func (s *S3) Delete(ctx context.Context, location Path) error {
	key := location.Key()
	_, err := s.svc.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Prefix + key),
	})
	if isS3NotFound(err) {
		return nil
	} else if err != nil {
		s.logerror("S3 Delete", key, err)
		return failure("delete", key, err)
	}
	return nil
}

func (s *S3) logerror(op, key string, err error) {
	if s.Log != nil {
		s.Log.Error(op,
			zap.String("bucket", s.Bucket),
			zap.String("prefix", s.Prefix),
			zap.String("key", key),
			zap.Error(err))
	}
	report(err, map[string]string{"Bucket": s.Bucket, "Prefix": s.Prefix, "Key": key})
}

// isS3NotFound is true for the errors S3 returns for a missing key.
func isS3NotFound(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(awserr.RequestFailure); ok && e.StatusCode() == http.StatusNotFound {
		return true
	}
	if e, ok := err.(awserr.Error); ok {
		return e.Code() == s3.ErrCodeNoSuchKey
	}
	return false
}
