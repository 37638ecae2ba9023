package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"ppesuite/internal/domain/compliance"
	"ppesuite/internal/errs"
	"ppesuite/internal/ports"
)

// S3Store is the production blob store. The detection pipeline is triggered by
// object creation under the upload prefix.
type S3Store struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
}

var _ ports.BlobStore = (*S3Store)(nil)

// NewS3Store builds a store over awsCfg. endpoint overrides the S3 endpoint and
// switches to path-style addressing, which local emulators need.
func NewS3Store(awsCfg aws.Config, bucket string, endpoint *string) *S3Store {
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != nil {
			o.BaseEndpoint = endpoint
			o.UsePathStyle = true
		}
	})
	return &S3Store{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
	}
}

func (s *S3Store) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return errs.WithStack(errs.Wrapf(err, "put s3://%s/%s", s.bucket, key))
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		var notFound *types.NotFound
		if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %s", compliance.ErrBlobNotFound, key)
		}
		return nil, errs.WithStack(errs.Wrapf(err, "get s3://%s/%s", s.bucket, key))
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errs.Wrapf(err, "read s3://%s/%s", s.bucket, key)
	}
	return data, nil
}

func (s *S3Store) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", errs.Wrapf(err, "presign s3://%s/%s", s.bucket, key)
	}
	return req.URL, nil
}
