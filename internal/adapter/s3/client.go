// Package s3 reads HRRR index files from the public NOAA bucket and mirrors
// written inventories to an S3-compatible bucket.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/couchcryptid/hrrr-inventory/internal/domain"
)

// ClientConfig selects the bucket endpoint and credentials. An empty Endpoint
// uses AWS; static keys are optional and fall back to the default chain, then
// to anonymous access.
type ClientConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Timeout         time.Duration
}

// NewClient builds an S3 client with path-style addressing so that MinIO and
// other S3-compatible stores work unchanged.
func NewClient(ctx context.Context, cfg ClientConfig) (*awss3.Client, error) {
	var creds aws.CredentialsProvider
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		creds = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	awsCfg, err := loadConfig(ctx, cfg.Region, creds)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	// The NOAA bucket is public; without usable credentials sign nothing.
	if _, err := awsCfg.Credentials.Retrieve(ctx); err != nil {
		awsCfg, err = loadConfig(ctx, cfg.Region, aws.AnonymousCredentials{})
		if err != nil {
			return nil, fmt.Errorf("load aws config with anonymous credentials: %w", err)
		}
	}

	return awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		o.UsePathStyle = true
		if cfg.Timeout > 0 {
			o.HTTPClient = awshttp.NewBuildableClient().WithTimeout(cfg.Timeout)
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		}
	}), nil
}

func loadConfig(ctx context.Context, region string, creds aws.CredentialsProvider) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if creds != nil {
		opts = append(opts, awsconfig.WithCredentialsProvider(creds))
	}
	return awsconfig.LoadDefaultConfig(ctx, opts...)
}

// ObjectAPI is the subset of the S3 client used here.
type ObjectAPI interface {
	GetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
}

// Source serves index files from a bucket laid out like noaa-hrrr-bdp-pds.
type Source struct {
	api    ObjectAPI
	bucket string
	logger *slog.Logger
}

// NewSource creates an index source over bucket.
func NewSource(api ObjectAPI, bucket string, logger *slog.Logger) *Source {
	return &Source{api: api, bucket: bucket, logger: logger}
}

// Name is the priority-list name of this source.
func (s *Source) Name() string { return "aws" }

// Fetch returns the object body at path, or domain.ErrIndexNotFound.
func (s *Source) Fetch(ctx context.Context, path string) (io.ReadCloser, error) {
	out, err := s.api.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if isNotFound(err) {
			s.logger.Debug("index object missing", "bucket", s.bucket, "key", path)
			return nil, domain.ErrIndexNotFound
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, path, err)
	}
	return out.Body, nil
}

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey") {
		return true
	}
	var respErr *smithyhttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}
