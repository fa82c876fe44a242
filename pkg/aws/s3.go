package aws

import (
	"bytes"
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectWriter stores small documents (receipts, exports) in a bucket.
type ObjectWriter interface {
	PutJSON(ctx context.Context, key string, body []byte) error
}

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3ObjectWriter writes objects into a single bucket.
type S3ObjectWriter struct {
	client s3API
	bucket string
}

// NewS3ObjectWriter creates a writer for bucket. Path-style addressing is used
// so LocalStack endpoints resolve.
func NewS3ObjectWriter(cfg sdkaws.Config, bucket string) *S3ObjectWriter {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return &S3ObjectWriter{client: client, bucket: bucket}
}

func (w *S3ObjectWriter) PutJSON(ctx context.Context, key string, body []byte) error {
	if w.bucket == "" {
		return fmt.Errorf("s3 bucket not configured")
	}
	_, err := w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      sdkaws.String(w.bucket),
		Key:         sdkaws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: sdkaws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s/%s failed: %w", w.bucket, key, err)
	}
	return nil
}
