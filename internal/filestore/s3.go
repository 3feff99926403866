package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const s3KeyPrefix = "uploads/"

// S3 stores uploaded files in an S3-compatible bucket under uploads/<name>.
// Alternative backend for deployments without a persistent local disk.
type S3 struct {
	bucket   string
	s3Client *s3.Client
}

func NewS3(bucket string, s3Client *s3.Client) *S3 {
	return &S3{bucket: bucket, s3Client: s3Client}
}

func (s *S3) Save(ctx context.Context, name, contentType string, r io.Reader) error {
	const op = "filestore.s3.Save"

	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s3KeyPrefix + name),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("%s: put object: %w", op, err)
	}

	return nil
}

func (s *S3) Open(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	const op = "filestore.s3.Open"

	obj, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s3KeyPrefix + name),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, 0, fmt.Errorf("%s: %s: %w", op, name, ErrFileNotExist)
		}
		return nil, 0, fmt.Errorf("%s: get object: %w", op, err)
	}

	var size int64
	if obj.ContentLength != nil {
		size = *obj.ContentLength
	}

	return obj.Body, size, nil
}

func (s *S3) Remove(ctx context.Context, name string) error {
	const op = "filestore.s3.Remove"

	// S3 deletes are idempotent, so probe first to keep the "missing name
	// is an error" contract shared with the local backend.
	_, err := s.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s3KeyPrefix + name),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return fmt.Errorf("%s: %s: %w", op, name, ErrFileNotExist)
		}
		return fmt.Errorf("%s: head object: %w", op, err)
	}

	_, err = s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s3KeyPrefix + name),
	})
	if err != nil {
		return fmt.Errorf("%s: delete object: %w", op, err)
	}

	return nil
}
