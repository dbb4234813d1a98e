// +build s3

package store_test

// tests the S3 store with an external service. Can use amazon s3, or can run a
// local service with the same API (e.g. Minio).
//
// To run from the command line
//
//    env "AWS_ACCESS_KEY_ID=XXXXX" "AWS_SECRET_ACCESS_KEY=YYYY" go test -tags=s3 -run S3

import (
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"

	"github.com/ndlib/ioxstore/store"
	"github.com/ndlib/ioxstore/store/storetest"
)

func getSession() *session.Session {
	s3Config := &aws.Config{
		Endpoint:         aws.String("http://localhost:9000"),
		Region:           aws.String("us-east-1"),
		DisableSSL:       aws.Bool(true),
		S3ForcePathStyle: aws.Bool(true),
	}
	return session.New(s3Config)
}

func TestS3Conformance(t *testing.T) {
	s := store.NewS3("zoo", "conformance/", getSession())
	s.MaxKeys = 4
	storetest.Conformance(t, s, store.NewPath("base"), 4)
}

func TestS3Stress(t *testing.T) {
	s := store.NewS3("zoo", "stress/", getSession())
	storetest.Stress(t, s, store.NewPath("stress"), 0)
}
