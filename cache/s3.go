package cache

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// S3 keeps entries as objects under a bucket prefix.  Objects are only
// uploaded on Complete so a failed query never creates one.
type S3 struct {
	client       *s3.S3
	uploader     *s3manager.Uploader
	bucket       string
	prefix       string
	maxEntrySize int64
}

var _ Cache = (*S3)(nil)

// NewS3 uses the default AWS credential chain.  An empty region falls
// back to the environment.
func NewS3(bucket, prefix, region, endpoint string, maxEntrySize int64) (*S3, error) {
	if bucket == "" {
		return nil, errors.New("s3 cache needs a bucket")
	}
	cfg := aws.NewConfig()
	if region != "" {
		cfg = cfg.WithRegion(region)
	}
	if endpoint != "" {
		cfg = cfg.WithEndpoint(endpoint).WithS3ForcePathStyle(true)
	}
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            *cfg,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, err
	}
	return &S3{
		client:       s3.New(sess),
		uploader:     s3manager.NewUploader(sess),
		bucket:       bucket,
		prefix:       prefix,
		maxEntrySize: maxEntrySize,
	}, nil
}

func (s *S3) objectKey(key string) *string {
	return aws.String(path.Join(s.prefix, key))
}

func (s *S3) IsCached(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    s.objectKey(key),
	})
	if isNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

func (s *S3) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    s.objectKey(key),
	})
	if isNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

func (s *S3) Create(ctx context.Context, key string) (Writer, error) {
	return newBufferWriter(s.maxEntrySize, func(b []byte) error {
		return s.upload(ctx, key, bytes.NewReader(b))
	}), nil
}

// WriteFromFile streams the file without buffering it in memory.
func (s *S3) WriteFromFile(ctx context.Context, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return s.upload(ctx, key, f)
}

func (s *S3) upload(ctx context.Context, key string, r io.Reader) error {
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    s.objectKey(key),
		Body:   r,
	})
	return err
}

func isNotFound(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}
