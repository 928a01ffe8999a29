package archive

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// contentType is what every archived object carries; retired wallpapers are
// always the store's PNG rendition.
const contentType = "image/png"

// Config holds the S3-compatible endpoint a retired wallpaper goes to.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Region    string
}

// Archive uploads retired wallpapers to S3-compatible object storage so the
// apply stage can delete them from the local pool without losing them.
type Archive struct {
	client *s3.Client
	bucket string
}

// New creates an Archive client for the configured endpoint.
// Parameters:
//   - cfg: endpoint, credentials and bucket; an empty region defaults to
//     us-east-1, which S3-compatible services accept for signing.
// Returns:
//   - *Archive: initialized client.
//   - error: non-nil if the AWS config cannot be assembled.
func New(cfg *Config) (*Archive, error) {
	endpoint := normalizeEndpoint(cfg.Endpoint)

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	endpointURL := fmt.Sprintf("%s://%s", scheme, endpoint)

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Path-style addressing works across minio, R2 and the rest of the
	// S3-compatible family.
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpointURL)
		o.UsePathStyle = true
	})

	return &Archive{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// normalizeEndpoint removes protocol prefix and path from an endpoint.
func normalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")

	if idx := strings.Index(endpoint, "/"); idx != -1 {
		endpoint = endpoint[:idx]
	}

	return strings.TrimSuffix(endpoint, "/")
}

// EnsureBucket creates the archive bucket if it does not exist yet.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - error: non-nil if the bucket is absent and cannot be created.
func (a *Archive) EnsureBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(a.bucket),
	})
	if err == nil {
		return nil
	}

	_, err = a.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(a.bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Put uploads one retired wallpaper under the given key.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - key: object key; the store filename keeps the identity recoverable.
//   - data: image bytes.
// Returns:
//   - error: non-nil if the upload fails.
func (a *Archive) Put(ctx context.Context, key string, data []byte) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	return nil
}
