package templates

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// S3Source reads phase templates from an S3-compatible bucket.
type S3Source struct {
	client *minio.Client
	bucket string
	prefix string

	checkOnce sync.Once
	checkErr  error
}

func NewS3Source(cfg S3Config) (*S3Source, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3Source{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(strings.TrimSpace(cfg.Prefix), "/"),
	}, nil
}

func (s *S3Source) checkBucket(ctx context.Context) error {
	s.checkOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.checkErr = err
			return
		}
		if !exists {
			s.checkErr = fmt.Errorf("bucket %s does not exist", s.bucket)
		}
	})
	return s.checkErr
}

func (s *S3Source) key(phase int) string {
	if s.prefix == "" {
		return FileName(phase)
	}
	return s.prefix + "/" + FileName(phase)
}

func (s *S3Source) PhaseTemplate(ctx context.Context, phase int) (string, error) {
	if err := s.checkBucket(ctx); err != nil {
		return "", &RetrievalError{Phase: phase, Err: err}
	}
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(phase), minio.GetObjectOptions{})
	if err != nil {
		return "", &RetrievalError{Phase: phase, Err: err}
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		if code := minio.ToErrorResponse(err).Code; code == "NoSuchKey" || code == "NoSuchBucket" {
			err = ErrTemplateNotFound
		}
		return "", &RetrievalError{Phase: phase, Err: err}
	}
	return string(data), nil
}
