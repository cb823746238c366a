package s3

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
)

// Mirror uploads written inventory files to a bucket under an optional prefix.
type Mirror struct {
	api    ObjectAPI
	bucket string
	prefix string
	logger *slog.Logger
}

// NewMirror creates a mirror into bucket. Objects are keyed by prefix plus
// the local file's base name.
func NewMirror(api ObjectAPI, bucket, prefix string, logger *slog.Logger) *Mirror {
	return &Mirror{api: api, bucket: bucket, prefix: prefix, logger: logger}
}

// Key returns the object key used for a local file.
func (m *Mirror) Key(localPath string) string {
	return path.Join(m.prefix, filepath.Base(localPath))
}

// Upload copies the file at localPath to the bucket.
func (m *Mirror) Upload(ctx context.Context, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	key := m.Key(localPath)
	if _, err := m.api.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("application/gzip"),
	}); err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", m.bucket, key, err)
	}

	m.logger.Info("inventory mirrored", "bucket", m.bucket, "key", key)
	return nil
}
